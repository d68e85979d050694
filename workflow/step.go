package workflow

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spetersoncode/stepflow"
)

// Step represents a single unit of work that turns an I into an O.
//
// Steps are built once and run many times. They hold no per-run mutable data
// and are safe to share between goroutines. Run returns either a complete
// output or an error, never both.
type Step[I, O any] interface {
	// Name returns a human-readable identifier for the step.
	Name() string

	// Run executes the step.
	Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error)
}

// StepFunc is the signature of a closure usable as a step.
type StepFunc[I, O any] func(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error)

// Func wraps a closure as a Step.
type Func[I, O any] struct {
	name string
	fn   StepFunc[I, O]
}

// NewFunc creates a step from a function that does not need the execution
// context. An empty name defaults to a label derived from the types.
func NewFunc[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) *Func[I, O] {
	return NewStepFunc(name, func(ctx context.Context, _ *stepflow.ExecutionContext, input I) (O, error) {
		return fn(ctx, input)
	})
}

// NewStepFunc creates a step from a function that receives the execution
// context, for closures that record tokens or emit artifacts.
func NewStepFunc[I, O any](name string, fn StepFunc[I, O]) *Func[I, O] {
	if name == "" {
		name = fmt.Sprintf("Func[%s,%s]", TypeName[I](), TypeName[O]())
	}
	return &Func[I, O]{name: name, fn: fn}
}

// Name returns the step name.
func (f *Func[I, O]) Name() string { return f.name }

// Run executes the function.
func (f *Func[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	return f.fn(ctx, ec, input)
}

// TypeName returns a readable label for T.
func TypeName[T any]() string {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		return "any"
	}
	return t.String()
}

// named overrides the name of another step.
type named[I, O any] struct {
	name  string
	inner Step[I, O]
}

// Named returns step under a different name.
func Named[I, O any](step Step[I, O], name string) Step[I, O] {
	return &named[I, O]{name: name, inner: step}
}

func (n *named[I, O]) Name() string { return n.name }

func (n *named[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	return n.inner.Run(ctx, ec, input)
}

// Dynamic is a step with erased input and output types.
type Dynamic = Step[any, any]

type erased[I, O any] struct {
	inner Step[I, O]
}

// Erase converts step into a Dynamic step. Passing an input that is not an I
// fails with a validation error wrapping ErrTypeMismatch. A nil input is
// treated as the zero I.
func Erase[I, O any](step Step[I, O]) Dynamic {
	return &erased[I, O]{inner: step}
}

func (e *erased[I, O]) Name() string { return e.inner.Name() }

func (e *erased[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input any) (any, error) {
	in, err := assertType[I](input, e.inner.Name(), "input")
	if err != nil {
		return nil, err
	}
	return e.inner.Run(ctx, ec, in)
}

type typed[I, O any] struct {
	inner Dynamic
}

// Typed restores static types on a Dynamic step. An output that is not an O
// fails with a validation error wrapping ErrTypeMismatch.
func Typed[I, O any](step Dynamic) Step[I, O] {
	return &typed[I, O]{inner: step}
}

func (t *typed[I, O]) Name() string { return t.inner.Name() }

func (t *typed[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	out, err := t.inner.Run(ctx, ec, input)
	if err != nil {
		var zero O
		return zero, err
	}
	return assertType[O](out, t.inner.Name(), "output")
}

func assertType[T any](v any, stepName, what string) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	if out, ok := v.(T); ok {
		return out, nil
	}
	var zero T
	return zero, &stepflow.Error{
		Kind: stepflow.KindValidation,
		Msg: fmt.Sprintf("step %q %s: got %T, want %s",
			stepName, what, v, TypeName[T]()),
		Cause: ErrTypeMismatch,
	}
}

func joinNames(names ...string) string {
	return strings.Join(names, " -> ")
}
