package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
)

func newRecorderProvider() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()

	t.Run("success emits start and end", func(t *testing.T) {
		sr, tp := newRecorderProvider()
		ec := stepflow.NewExecutionContext()
		step := Instrument(double(), "Double", WithTracerProvider(tp))

		out, err := step.Run(ctx, ec, 21)
		require.NoError(t, err)
		assert.Equal(t, 42, out)

		traces := ec.Traces()
		require.Len(t, traces, 2)
		start, ok := traces[0].Event.(event.StepStart)
		require.True(t, ok)
		assert.Equal(t, "Double", start.StepName)
		assert.Equal(t, "int", start.InputType)

		end, ok := traces[1].Event.(event.StepEnd)
		require.True(t, ok)
		assert.Equal(t, "Double", end.StepName)
		assert.GreaterOrEqual(t, end.Duration.Milliseconds(), int64(0))

		m := ec.Snapshot()
		assert.Equal(t, 1, m.StepsCompleted)
		assert.False(t, m.HasFailures())

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "Double", spans[0].Name())
		assert.Equal(t, codes.Ok, spans[0].Status().Code)
	})

	t.Run("failure emits error and records failure", func(t *testing.T) {
		sr, tp := newRecorderProvider()
		ec := stepflow.NewExecutionContext()
		step := Instrument[int, int](&recorder{name: "r", fail: true}, "Flaky", WithTracerProvider(tp))

		_, err := step.Run(ctx, ec, 1)
		require.Error(t, err)

		traces := ec.Traces()
		require.Len(t, traces, 2)
		assert.Equal(t, event.StepStartType, traces[0].Event.Type())
		errEv, ok := traces[1].Event.(event.Error)
		require.True(t, ok)
		assert.Equal(t, "Execution error: r failed", errEv.Message)

		m := ec.Snapshot()
		assert.Equal(t, 0, m.StepsCompleted)
		assert.Equal(t, []string{"Execution error: r failed"}, m.Failures)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("checkpoint is not a span error", func(t *testing.T) {
		sr, tp := newRecorderProvider()
		ec := stepflow.NewExecutionContext()
		step := Instrument[string, string](NewCheckpoint[string]("Review"), "Review", WithTracerProvider(tp))

		_, err := step.Run(ctx, ec, "draft")
		require.True(t, stepflow.IsCheckpoint(err))

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
		require.Len(t, spans[0].Events(), 1)
		assert.Equal(t, "checkpoint", spans[0].Events()[0].Name)
	})

	t.Run("returns inner result untouched", func(t *testing.T) {
		want := stepflow.NewValidationError("nope")
		inner := NewFunc("v", func(context.Context, int) (int, error) { return 0, want })
		_, err := Instrument(inner, "V").Run(ctx, stepflow.NewExecutionContext(), 1)
		assert.Same(t, want, err)
	})

	t.Run("nested instrumentation records each level", func(t *testing.T) {
		ec := stepflow.NewExecutionContext()
		pipeline := Instrument(Then(Instrument(double(), "inner-a"), Instrument(addTen(), "inner-b")), "outer")
		_, err := pipeline.Run(ctx, ec, 1)
		require.NoError(t, err)

		assert.Equal(t, 3, ec.Snapshot().StepsCompleted)
		names := make([]string, 0)
		for _, e := range ec.Traces() {
			names = append(names, string(e.Event.Type())+":"+e.Event.Step())
		}
		assert.Equal(t, []string{
			"StepStart:outer",
			"StepStart:inner-a",
			"StepEnd:inner-a",
			"StepStart:inner-b",
			"StepEnd:inner-b",
			"StepEnd:outer",
		}, names)
	})

	t.Run("name and inner", func(t *testing.T) {
		s := Instrument(double(), "Doubler")
		assert.Equal(t, "Doubler", s.Name())
		assert.Equal(t, "double", s.Inner().Name())
	})
}

func TestCheckpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("always pauses with snapshot", func(t *testing.T) {
		type draft struct {
			Title string `json:"title"`
			Words int    `json:"words"`
		}
		cp := NewCheckpoint[draft]("Approve")
		_, err := cp.Run(ctx, stepflow.NewExecutionContext(), draft{Title: "Q3", Words: 120})

		got, ok := stepflow.AsCheckpoint(err)
		require.True(t, ok)
		assert.Equal(t, "Approve", got.StepName)
		assert.Equal(t, map[string]any{"title": "Q3", "words": float64(120)}, got.Snapshot)
		assert.Equal(t, "Checkpoint reached at step 'Approve'", err.Error())
	})

	t.Run("conditional passes through when false", func(t *testing.T) {
		cp := NewConditionalCheckpoint("Long", func(s string) bool { return len(s) > 5 })
		out, err := cp.Run(ctx, stepflow.NewExecutionContext(), "short")
		require.NoError(t, err)
		assert.Equal(t, "short", out)

		_, err = cp.Run(ctx, stepflow.NewExecutionContext(), "much longer")
		assert.True(t, stepflow.IsCheckpoint(err))
	})

	t.Run("unencodable input uses placeholder", func(t *testing.T) {
		cp := NewCheckpoint[chan int]("Chan")
		_, err := cp.Run(ctx, stepflow.NewExecutionContext(), make(chan int))
		got, ok := stepflow.AsCheckpoint(err)
		require.True(t, ok)
		assert.Equal(t, stepflow.SerializationPlaceholder, got.Snapshot)
	})

	t.Run("stops a chain", func(t *testing.T) {
		after := &recorder{name: "after"}
		chain := Then[int, int, int](NewCheckpoint[int]("Gate"), after)
		_, err := chain.Run(ctx, stepflow.NewExecutionContext(), 7)
		assert.True(t, stepflow.IsCheckpoint(err))
		assert.Empty(t, after.Calls())
	})
}
