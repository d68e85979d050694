package workflow

import (
	"context"
	"sync"

	"github.com/spetersoncode/stepflow"
)

// StateStep is a step that threads an explicit state value through each run.
// It receives the current state and returns its output with the next state.
type StateStep[S, I, O any] interface {
	Name() string
	Run(ctx context.Context, ec *stepflow.ExecutionContext, state S, input I) (O, S, error)
}

// StateFunc wraps a closure as a StateStep.
type StateFunc[S, I, O any] struct {
	name string
	fn   func(ctx context.Context, ec *stepflow.ExecutionContext, state S, input I) (O, S, error)
}

// NewStateFunc creates a stateful step from a function.
func NewStateFunc[S, I, O any](name string, fn func(ctx context.Context, ec *stepflow.ExecutionContext, state S, input I) (O, S, error)) *StateFunc[S, I, O] {
	if name == "" {
		name = "StateFunc[" + TypeName[S]() + "]"
	}
	return &StateFunc[S, I, O]{name: name, fn: fn}
}

// Name returns the step name.
func (f *StateFunc[S, I, O]) Name() string { return f.name }

// Run executes the function.
func (f *StateFunc[S, I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, state S, input I) (O, S, error) {
	return f.fn(ctx, ec, state, input)
}

// Cloner is implemented by state types that hold references and need a deep
// copy to be snapshotted.
type Cloner[S any] interface {
	Clone() S
}

// Adapter owns a state cell and exposes a StateStep as a plain Step.
//
// Each run snapshots the state, runs the inner step, and stores the new state
// only on success. The state starts at the zero value of S. Concurrent runs
// each work on their own snapshot and the last one to finish wins, so the
// adapter is meant for sequential use.
type Adapter[S, I, O any] struct {
	inner StateStep[S, I, O]

	mu    sync.Mutex
	state S
}

// NewAdapter wraps a stateful step.
func NewAdapter[S, I, O any](step StateStep[S, I, O]) *Adapter[S, I, O] {
	return &Adapter[S, I, O]{inner: step}
}

// Name returns the inner step name.
func (a *Adapter[S, I, O]) Name() string { return a.inner.Name() }

// Run executes the inner step against the current state.
func (a *Adapter[S, I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	current := a.State()

	out, next, err := a.inner.Run(ctx, ec, current, input)
	if err != nil {
		var zero O
		return zero, err
	}

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()
	return out, nil
}

// State returns a snapshot of the current state.
func (a *Adapter[S, I, O]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return snapshot(a.state)
}

// Reset restores the state to the zero value.
func (a *Adapter[S, I, O]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	var zero S
	a.state = zero
}

func snapshot[S any](s S) S {
	if c, ok := any(s).(Cloner[S]); ok {
		return c.Clone()
	}
	return s
}

// StateWorkflow runs a stateful step with caller-supplied state.
type StateWorkflow[S, I, O any] struct {
	name string
	step StateStep[S, I, O]
	opts *Options
}

// NewStateWorkflow creates a stateful workflow named "state_workflow" unless
// WithName is given.
func NewStateWorkflow[S, I, O any](step StateStep[S, I, O], opts ...Option) *StateWorkflow[S, I, O] {
	o := ApplyOptions(opts...)
	name := o.Name
	if name == "" {
		name = "state_workflow"
	}
	return &StateWorkflow[S, I, O]{name: name, step: step, opts: o}
}

// Name returns the workflow name.
func (w *StateWorkflow[S, I, O]) Name() string { return w.name }

// Run executes the step with a fresh execution context.
func (w *StateWorkflow[S, I, O]) Run(ctx context.Context, state S, input I) (O, S, error) {
	return w.step.Run(ctx, w.opts.newContext(), state, input)
}

// RunWithContext executes the step with the given execution context.
func (w *StateWorkflow[S, I, O]) RunWithContext(ctx context.Context, ec *stepflow.ExecutionContext, state S, input I) (O, S, error) {
	return w.step.Run(ctx, ec, state, input)
}
