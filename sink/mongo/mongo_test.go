package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/internal/testutil"
	"github.com/spetersoncode/stepflow/sink"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Connect(ctx, testutil.MongoURI(t), "stepflow_test", "runs_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.coll.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("write and read back", func(t *testing.T) {
		id := uuid.NewString()
		ec := stepflow.NewExecutionContext(stepflow.WithRunID(id))
		ec.RecordTokens(4, 1)
		ec.Emit(event.StepStart{StepName: "Review", InputType: "string"})
		ec.Emit(event.StepEnd{StepName: "Review", Duration: 3 * time.Millisecond})
		r := sink.NewReport("digest", ec, stepflow.NewCheckpointError("Review", map[string]any{"n": 1}))
		require.NoError(t, s.Write(ctx, r))

		got, err := s.Run(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "digest", got.Workflow)
		assert.Equal(t, r.Metrics, got.Metrics)
		assert.WithinDuration(t, r.CreatedAt, got.CreatedAt, time.Millisecond)
		require.NotNil(t, got.Checkpoint)
		assert.Equal(t, "Review", got.Checkpoint.StepName)
		assert.Equal(t, r.Traces, got.Traces)
		assert.Equal(t, "checkpoint", got.Status())
	})

	t.Run("write replaces an existing run", func(t *testing.T) {
		id := uuid.NewString()
		ec := stepflow.NewExecutionContext(stepflow.WithRunID(id))
		require.NoError(t, s.Write(ctx, sink.NewReport("w", ec, nil)))

		ec.Emit(event.Error{StepName: "s", Message: "boom"})
		require.NoError(t, s.Write(ctx, sink.NewReport("w", ec, stepflow.NewExecutionError("boom", nil))))

		got, err := s.Run(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "failed", got.Status())

		traces, err := s.Traces(ctx, id)
		require.NoError(t, err)
		require.Len(t, traces, 1)
		assert.Equal(t, event.ErrorType, traces[0].Event.Type())
	})

	t.Run("runs omit traces", func(t *testing.T) {
		runs, err := s.Runs(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, r := range runs {
			assert.Empty(t, r.Traces)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := s.Run(ctx, uuid.NewString())
		assert.ErrorIs(t, err, sink.ErrNotFound)

		_, err = s.Traces(ctx, uuid.NewString())
		assert.ErrorIs(t, err, sink.ErrNotFound)
	})
}
