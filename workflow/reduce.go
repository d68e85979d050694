package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// Reduce aggregates a slice into a single value. It never fails.
type Reduce[I, O any] struct {
	name string
	fn   func([]I) O
}

// NewReduce creates a reduction step. An empty name defaults to "Reduce".
func NewReduce[I, O any](name string, fn func([]I) O) *Reduce[I, O] {
	if name == "" {
		name = "Reduce"
	}
	return &Reduce[I, O]{name: name, fn: fn}
}

// Name returns the step name.
func (r *Reduce[I, O]) Name() string { return r.name }

// Run applies the reduction.
func (r *Reduce[I, O]) Run(_ context.Context, _ *stepflow.ExecutionContext, input []I) (O, error) {
	return r.fn(input), nil
}
