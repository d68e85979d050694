package stepflow

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow/event"
)

func TestMetrics(t *testing.T) {
	t.Run("total tracks every token path", func(t *testing.T) {
		var m Metrics
		m.AddTokens(10, 5)
		m.AddPromptTokens(3)
		m.AddCompletionTokens(2)

		assert.Equal(t, 13, m.PromptTokens)
		assert.Equal(t, 7, m.CompletionTokens)
		assert.Equal(t, 20, m.Total())
		assert.Equal(t, m.PromptTokens+m.CompletionTokens, m.TotalTokens)
	})

	t.Run("Clone is independent", func(t *testing.T) {
		var m Metrics
		m.RecordFailure("first")
		c := m.Clone()
		m.RecordFailure("second")

		assert.Equal(t, []string{"first"}, c.Failures)
		assert.True(t, c.HasFailures())
	})

	t.Run("Clone of empty metrics has empty failures", func(t *testing.T) {
		c := Metrics{}.Clone()
		assert.NotNil(t, c.Failures)
		assert.False(t, c.HasFailures())
	})
}

func TestExecutionContext(t *testing.T) {
	t.Run("generates run id", func(t *testing.T) {
		a := NewExecutionContext()
		b := NewExecutionContext()
		assert.NotEmpty(t, a.ID())
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("WithRunID overrides id", func(t *testing.T) {
		ec := NewExecutionContext(WithRunID("run-1"))
		assert.Equal(t, "run-1", ec.ID())
	})

	t.Run("single-sided token recorders keep total", func(t *testing.T) {
		ec := NewExecutionContext()
		ec.RecordPromptTokens(7)
		ec.RecordCompletionTokens(4)

		m := ec.Snapshot()
		assert.Equal(t, 7, m.PromptTokens)
		assert.Equal(t, 4, m.CompletionTokens)
		assert.Equal(t, 11, m.TotalTokens)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		ec := NewExecutionContext()
		ec.RecordStep()
		snap := ec.Snapshot()
		ec.RecordStep()

		assert.Equal(t, 1, snap.StepsCompleted)
		assert.Equal(t, 2, ec.Snapshot().StepsCompleted)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		ec := NewExecutionContext()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ec.RecordTokens(2, 1)
				ec.RecordStep()
				ec.Emit(event.StepStart{StepName: "s"})
			}()
		}
		wg.Wait()

		m := ec.Snapshot()
		assert.Equal(t, 100, m.PromptTokens)
		assert.Equal(t, 50, m.CompletionTokens)
		assert.Equal(t, 150, m.TotalTokens)
		assert.Equal(t, 50, m.StepsCompleted)
		assert.Len(t, ec.Traces(), 50)
	})

	t.Run("traces keep emission order", func(t *testing.T) {
		ec := NewExecutionContext()
		ec.Emit(event.StepStart{StepName: "a", InputType: "int"})
		ec.EmitArtifact("a", "score", map[string]int{"value": 95})
		ec.Emit(event.Error{StepName: "a", Message: "boom"})

		traces := ec.Traces()
		require.Len(t, traces, 3)
		assert.Equal(t, event.StepStartType, traces[0].Event.Type())
		assert.Equal(t, event.ArtifactType, traces[1].Event.Type())
		assert.Equal(t, event.ErrorType, traces[2].Event.Type())
		assert.Equal(t, map[string]any{"value": float64(95)}, traces[1].Event.(event.Artifact).Data)
		assert.LessOrEqual(t, traces[0].Timestamp, traces[2].Timestamp)
	})

	t.Run("unencodable artifact uses placeholder", func(t *testing.T) {
		ec := NewExecutionContext()
		ec.EmitArtifact("a", "ch", make(chan int))
		art := ec.Traces()[0].Event.(event.Artifact)
		assert.Equal(t, SerializationPlaceholder, art.Data)
	})

	t.Run("ClearTraces keeps metrics", func(t *testing.T) {
		ec := NewExecutionContext()
		ec.RecordStep()
		ec.Emit(event.StepStart{StepName: "a"})
		ec.ClearTraces()

		assert.Empty(t, ec.Traces())
		assert.Equal(t, 1, ec.Snapshot().StepsCompleted)
	})

	t.Run("listeners and logger observe events", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		var seen []event.TraceEntry
		ec := NewExecutionContext(
			WithRunID("run-7"),
			WithLogger(logger),
			WithListener(func(e event.TraceEntry) { seen = append(seen, e) }),
		)
		ec.Emit(event.StepEnd{StepName: "done"})

		require.Len(t, seen, 1)
		assert.Equal(t, "done", seen[0].Event.Step())
		assert.Contains(t, buf.String(), "run_id=run-7")
		assert.Contains(t, buf.String(), "type=StepEnd")
	})
}
