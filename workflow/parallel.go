package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spetersoncode/stepflow"
)

// ParallelMap runs a step on every item of a slice concurrently.
//
// All items share the same execution context. Output i corresponds to input
// i regardless of completion order. When items fail, the error of the lowest
// failing index is returned after every launched item has finished. Side
// effects of successful items are kept.
type ParallelMap[I, O any] struct {
	inner          Step[I, O]
	maxConcurrency int
}

// NewParallelMap creates a parallel fan-out over step.
// WithMaxConcurrency bounds the number of items in flight.
func NewParallelMap[I, O any](step Step[I, O], opts ...Option) *ParallelMap[I, O] {
	o := ApplyOptions(opts...)
	return &ParallelMap[I, O]{inner: step, maxConcurrency: o.MaxConcurrency}
}

// Name returns "ParallelMap(inner)".
func (p *ParallelMap[I, O]) Name() string { return "ParallelMap(" + p.inner.Name() + ")" }

// Inner returns the wrapped step.
func (p *ParallelMap[I, O]) Inner() Step[I, O] { return p.inner }

// Run processes all items and waits for them to finish. Once ctx is done no
// further items are started; those items report ctx.Err().
func (p *ParallelMap[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input []I) ([]O, error) {
	results := make([]O, len(input))
	errs := make([]error, len(input))

	var g errgroup.Group
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}

	for i, item := range input {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			out, err := p.inner.Run(ctx, ec, item)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
