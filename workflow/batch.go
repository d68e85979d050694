package workflow

import (
	"context"
	"fmt"

	"github.com/spetersoncode/stepflow"
)

// ForEach lifts a single-item step to a slice step, processing items in order.
type ForEach[I, O any] struct {
	inner Step[I, O]
}

// NewForEach creates a sequential slice adapter. The first failure aborts the
// remaining items and no partial results are returned.
func NewForEach[I, O any](step Step[I, O]) *ForEach[I, O] {
	return &ForEach[I, O]{inner: step}
}

// Name returns "ForEach(inner)".
func (f *ForEach[I, O]) Name() string { return "ForEach(" + f.inner.Name() + ")" }

// Run processes each item.
func (f *ForEach[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input []I) ([]O, error) {
	out := make([]O, 0, len(input))
	for _, item := range input {
		o, err := f.inner.Run(ctx, ec, item)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Batch feeds a slice to a slice step in fixed-size chunks.
type Batch[I, O any] struct {
	inner Step[[]I, []O]
	size  int
}

// NewBatch creates a batch step. size must be positive.
func NewBatch[I, O any](step Step[[]I, []O], size int) (*Batch[I, O], error) {
	if size <= 0 {
		return nil, stepflow.NewValidationError(fmt.Sprintf("batch size must be greater than zero, got %d", size))
	}
	return &Batch[I, O]{inner: step, size: size}, nil
}

// MustBatch is like NewBatch but panics on an invalid size.
func MustBatch[I, O any](step Step[[]I, []O], size int) *Batch[I, O] {
	b, err := NewBatch(step, size)
	if err != nil {
		panic(err)
	}
	return b
}

// Name returns "Batch(inner)".
func (b *Batch[I, O]) Name() string { return "Batch(" + b.inner.Name() + ")" }

// Size returns the chunk size.
func (b *Batch[I, O]) Size() int { return b.size }

// Run processes the chunks in order and concatenates their outputs.
// The last chunk may be smaller than the size. A failing chunk aborts the
// remaining ones.
func (b *Batch[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input []I) ([]O, error) {
	out := make([]O, 0, len(input))
	for start := 0; start < len(input); start += b.size {
		end := min(start+b.size, len(input))
		chunk, err := b.inner.Run(ctx, ec, input[start:end:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}
