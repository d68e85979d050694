package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
)

// Chain runs two steps in sequence, feeding the first output to the second.
type Chain[I, M, O any] struct {
	first  Step[I, M]
	second Step[M, O]
}

// Then chains first and second. If first fails, second never runs and the
// error is returned unchanged.
func Then[I, M, O any](first Step[I, M], second Step[M, O]) *Chain[I, M, O] {
	return &Chain[I, M, O]{first: first, second: second}
}

// Name returns "first -> second".
func (c *Chain[I, M, O]) Name() string {
	return joinNames(c.first.Name(), c.second.Name())
}

// Run executes the chain.
func (c *Chain[I, M, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	mid, err := c.first.Run(ctx, ec, input)
	if err != nil {
		var zero O
		return zero, err
	}
	return c.second.Run(ctx, ec, mid)
}

// Sequence runs any number of same-typed steps in order.
type Sequence[T any] struct {
	name  string
	steps []Step[T, T]
}

// NewSequence creates a sequence. An empty name joins the step names.
// A sequence with no steps returns its input.
func NewSequence[T any](name string, steps ...Step[T, T]) *Sequence[T] {
	if name == "" {
		names := make([]string, len(steps))
		for i, s := range steps {
			names[i] = s.Name()
		}
		name = joinNames(names...)
	}
	return &Sequence[T]{name: name, steps: steps}
}

// Name returns the sequence name.
func (s *Sequence[T]) Name() string { return s.name }

// Run executes each step in turn, stopping at the first error.
func (s *Sequence[T]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input T) (T, error) {
	cur := input
	for _, step := range s.steps {
		out, err := step.Run(ctx, ec, cur)
		if err != nil {
			var zero T
			return zero, err
		}
		cur = out
	}
	return cur, nil
}

// Pair holds the outputs of a Tuple.
type Pair[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

// Tuple runs two steps on the same input, strictly one after the other.
type Tuple[I, A, B any] struct {
	first  Step[I, A]
	second Step[I, B]
}

// NewTuple creates a tuple step. Each step receives its own copy of the input.
func NewTuple[I, A, B any](first Step[I, A], second Step[I, B]) *Tuple[I, A, B] {
	return &Tuple[I, A, B]{first: first, second: second}
}

// Name returns "(first, second)".
func (t *Tuple[I, A, B]) Name() string {
	return "(" + t.first.Name() + ", " + t.second.Name() + ")"
}

// Run executes first then second. If first fails, second never runs.
func (t *Tuple[I, A, B]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (Pair[A, B], error) {
	a, err := t.first.Run(ctx, ec, input)
	if err != nil {
		return Pair[A, B]{}, err
	}
	b, err := t.second.Run(ctx, ec, input)
	if err != nil {
		return Pair[A, B]{}, err
	}
	return Pair[A, B]{First: a, Second: b}, nil
}
