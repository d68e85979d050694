package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// Branch runs one of two steps depending on a predicate over the input.
type Branch[I, O any] struct {
	pred  func(I) bool
	left  Step[I, O]
	right Step[I, O]
}

// NewBranch creates a branch. left runs when pred returns true, right otherwise.
// The predicate is evaluated exactly once per run.
func NewBranch[I, O any](pred func(I) bool, left, right Step[I, O]) *Branch[I, O] {
	return &Branch[I, O]{pred: pred, left: left, right: right}
}

// Name returns "left | right".
func (b *Branch[I, O]) Name() string {
	return b.left.Name() + " | " + b.right.Name()
}

// Run evaluates the predicate and runs the chosen step.
func (b *Branch[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	if b.pred(input) {
		return b.left.Run(ctx, ec, input)
	}
	return b.right.Run(ctx, ec, input)
}
