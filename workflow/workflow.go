package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// DefaultName is the name of a workflow created without WithName.
const DefaultName = "workflow"

// Workflow is the top-level entry point that wraps a root step.
type Workflow[I, O any] struct {
	name string
	root Step[I, O]
	opts *Options
}

// New creates a workflow around root.
func New[I, O any](root Step[I, O], opts ...Option) *Workflow[I, O] {
	o := ApplyOptions(opts...)
	name := o.Name
	if name == "" {
		name = DefaultName
	}
	return &Workflow[I, O]{name: name, root: root, opts: o}
}

// Name returns the workflow name.
func (w *Workflow[I, O]) Name() string { return w.name }

// Inner returns the root step.
func (w *Workflow[I, O]) Inner() Step[I, O] { return w.root }

// Run executes the workflow with a fresh execution context.
//
// On success one completed step is recorded for the workflow as a whole and
// the output is returned with a metrics snapshot. On failure the snapshot
// still reflects whatever the steps recorded before failing.
func (w *Workflow[I, O]) Run(ctx context.Context, input I) (O, stepflow.Metrics, error) {
	ec := w.opts.newContext()
	out, err := w.root.Run(ctx, ec, input)
	if err != nil {
		var zero O
		return zero, ec.Snapshot(), err
	}
	ec.RecordStep()
	return out, ec.Snapshot(), nil
}

// RunWithContext executes the workflow with the given execution context.
// No extra step is recorded.
func (w *Workflow[I, O]) RunWithContext(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	return w.root.Run(ctx, ec, input)
}
