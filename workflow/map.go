package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// Map applies a pure transform to the output of a step.
type Map[I, M, O any] struct {
	inner Step[I, M]
	fn    func(M) O
}

// NewMap creates a mapping step. fn only runs on success.
func NewMap[I, M, O any](step Step[I, M], fn func(M) O) *Map[I, M, O] {
	return &Map[I, M, O]{inner: step, fn: fn}
}

// Name returns the inner step name.
func (m *Map[I, M, O]) Name() string { return m.inner.Name() }

// Run executes the inner step and transforms its output.
func (m *Map[I, M, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	out, err := m.inner.Run(ctx, ec, input)
	if err != nil {
		var zero O
		return zero, err
	}
	return m.fn(out), nil
}

// Tap observes the output of a step without changing it.
type Tap[I, O any] struct {
	inner Step[I, O]
	fn    func(context.Context, *stepflow.ExecutionContext, O) error
}

// NewTap creates a tap that calls fn on every successful output.
// A panic in fn is not recovered.
func NewTap[I, O any](step Step[I, O], fn func(O)) *Tap[I, O] {
	return &Tap[I, O]{inner: step, fn: func(_ context.Context, _ *stepflow.ExecutionContext, out O) error {
		fn(out)
		return nil
	}}
}

// NewTapErr creates a tap whose observer may fail. The observer error is
// returned unchanged and the output is dropped.
func NewTapErr[I, O any](step Step[I, O], fn func(context.Context, *stepflow.ExecutionContext, O) error) *Tap[I, O] {
	return &Tap[I, O]{inner: step, fn: fn}
}

// Name returns the inner step name.
func (t *Tap[I, O]) Name() string { return t.inner.Name() }

// Run executes the inner step and then the observer.
func (t *Tap[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	out, err := t.inner.Run(ctx, ec, input)
	if err != nil {
		var zero O
		return zero, err
	}
	if err := t.fn(ctx, ec, out); err != nil {
		var zero O
		return zero, err
	}
	return out, nil
}
