package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/sink"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, err error) sink.Report {
	ec := stepflow.NewExecutionContext(stepflow.WithRunID(id))
	ec.RecordTokens(7, 3)
	ec.Emit(event.StepStart{StepName: "Summarize", InputType: "string"})
	ec.EmitArtifact("Summarize", "usage", map[string]any{"input_tokens": 7})
	ec.Emit(event.StepEnd{StepName: "Summarize", Duration: 1500 * time.Millisecond})
	if err == nil {
		ec.RecordStep()
	}
	return sink.NewReport("digest", ec, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("write and read back", func(t *testing.T) {
		s := newTestStore(t)
		want := sampleReport("run-1", nil)
		require.NoError(t, s.Write(ctx, want))

		got, err := s.Run(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "digest", got.Workflow)
		assert.Equal(t, want.Metrics, got.Metrics)
		assert.Equal(t, want.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
		assert.Nil(t, got.Checkpoint)

		require.Len(t, got.Traces, 3)
		assert.Equal(t, want.Traces[0], got.Traces[0])
		end, ok := got.Traces[2].Event.(event.StepEnd)
		require.True(t, ok)
		assert.Equal(t, 1500*time.Millisecond, end.Duration)
		art, ok := got.Traces[1].Event.(event.Artifact)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"input_tokens": float64(7)}, art.Data)
	})

	t.Run("checkpoint is stored", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Write(ctx, sampleReport("run-cp", stepflow.NewCheckpointError("Review", "long text"))))

		got, err := s.Run(ctx, "run-cp")
		require.NoError(t, err)
		require.NotNil(t, got.Checkpoint)
		assert.Equal(t, "Review", got.Checkpoint.StepName)
		assert.Equal(t, "long text", got.Checkpoint.Data)
		assert.Equal(t, "checkpoint", got.Status())
	})

	t.Run("rewrite replaces traces", func(t *testing.T) {
		s := newTestStore(t)
		r := sampleReport("run-2", nil)
		require.NoError(t, s.Write(ctx, r))
		r.Traces = r.Traces[:1]
		require.NoError(t, s.Write(ctx, r))

		traces, err := s.Traces(ctx, "run-2")
		require.NoError(t, err)
		assert.Len(t, traces, 1)
	})

	t.Run("runs lists newest first", func(t *testing.T) {
		s := newTestStore(t)
		older := sampleReport("old", nil)
		older.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, s.Write(ctx, older))
		require.NoError(t, s.Write(ctx, sampleReport("new", stepflow.NewMessageError("boom"))))

		runs, err := s.Runs(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "new", runs[0].RunID)
		assert.Equal(t, "boom", runs[0].Err)
		assert.Equal(t, "old", runs[1].RunID)
		assert.Nil(t, runs[0].Traces)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := newTestStore(t).Run(ctx, "missing")
		assert.ErrorIs(t, err, sink.ErrNotFound)
	})

	t.Run("unknown run has no traces", func(t *testing.T) {
		traces, err := newTestStore(t).Traces(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, traces)
	})
}
