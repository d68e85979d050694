package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// Checkpoint pauses a pipeline for human review.
//
// It reports a checkpoint error carrying its name and a structured snapshot
// of the input. To resume, the caller inspects the snapshot and runs the
// rest of the pipeline with the (possibly edited) value.
type Checkpoint[I any] struct {
	name string
	pred func(I) bool
}

// NewCheckpoint creates a checkpoint that always pauses.
func NewCheckpoint[I any](name string) *Checkpoint[I] {
	return &Checkpoint[I]{name: name}
}

// NewConditionalCheckpoint creates a checkpoint that pauses only when pred
// returns true and otherwise passes its input through.
func NewConditionalCheckpoint[I any](name string, pred func(I) bool) *Checkpoint[I] {
	return &Checkpoint[I]{name: name, pred: pred}
}

// Name returns the checkpoint name.
func (c *Checkpoint[I]) Name() string { return c.name }

// Run returns a checkpoint error, or the input when the condition is false.
func (c *Checkpoint[I]) Run(_ context.Context, _ *stepflow.ExecutionContext, input I) (I, error) {
	if c.pred != nil && !c.pred(input) {
		return input, nil
	}
	var zero I
	return zero, stepflow.NewCheckpointError(c.name, stepflow.ToValue(input))
}
