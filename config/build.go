package config

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/workflow"
)

// Build assembles a workflow from cfg using steps registered in reg. Stages
// run in order, each receiving the previous stage's output. opts apply to the
// workflow and to instrumented stages; cfg.Name takes precedence over
// workflow.WithName.
func Build(reg *Registry, cfg *PipelineConfig, opts ...workflow.Option) (*workflow.Workflow[any, any], error) {
	if cfg == nil {
		return nil, stepflow.NewValidationError("config is nil")
	}
	o := workflow.ApplyOptions(opts...)
	defaultConcurrency := cfg.MaxConcurrency
	if defaultConcurrency == 0 {
		defaultConcurrency = o.MaxConcurrency
	}

	stages := make([]workflow.Dynamic, 0, len(cfg.Stages)*2)
	for i, ref := range cfg.Stages {
		if ref.Name == "" {
			return nil, stepflow.NewValidationError(fmt.Sprintf("stage %d: name required", i))
		}
		step, ok := reg.Get(ref.Name)
		if !ok {
			return nil, stepflow.NewValidationError(fmt.Sprintf("stage %d: %q not in registry", i, ref.Name))
		}
		wrapped, err := wrapStage(reg, step, ref, defaultConcurrency, opts)
		if err != nil {
			return nil, &stepflow.Error{
				Kind:  stepflow.KindValidation,
				Msg:   fmt.Sprintf("stage %d (%q)", i, ref.Name),
				Cause: err,
			}
		}
		stages = append(stages, wrapped...)
	}

	wfOpts := slices.Clone(opts)
	if cfg.Name != "" {
		wfOpts = append(wfOpts, workflow.WithName(cfg.Name))
	}
	return workflow.New(workflow.Dynamic(workflow.NewSequence("", stages...)), wfOpts...), nil
}

// BuildAll builds a workflow for each entry in multi. If a pipeline's Name
// is empty, its map key is used.
func BuildAll(reg *Registry, multi *MultiPipelineConfig, opts ...workflow.Option) (map[string]*workflow.Workflow[any, any], error) {
	if multi == nil {
		return nil, stepflow.NewValidationError("pipeline config is nil")
	}
	out := make(map[string]*workflow.Workflow[any, any], len(multi.Pipelines))
	for name, cfg := range multi.Pipelines {
		if cfg.Name == "" {
			cfg.Name = name
		}
		wf, err := Build(reg, &cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", name, err)
		}
		out[name] = wf
	}
	return out, nil
}

// RegisterAll builds every pipeline in multi and adds a JSON runner for each
// to runners.
func RegisterAll(runners *workflow.Registry, reg *Registry, multi *MultiPipelineConfig, opts ...workflow.Option) error {
	built, err := BuildAll(reg, multi, opts...)
	if err != nil {
		return err
	}
	for _, wf := range built {
		runners.Register(workflow.NewRunner(wf))
	}
	return nil
}

// wrapStage applies the options of ref to step and returns the stage plus an
// optional trailing checkpoint.
func wrapStage(reg *Registry, step workflow.Dynamic, ref StageRef, defaultConcurrency int, opts []workflow.Option) ([]workflow.Dynamic, error) {
	modes := 0
	for _, on := range []bool{ref.Parallel, ref.ForEach, ref.Batch != 0} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return nil, stepflow.NewValidationError("parallel, for_each and batch are mutually exclusive")
	}

	switch {
	case ref.Batch != 0:
		b, err := workflow.NewBatch[any, any](&listStep{inner: step}, ref.Batch)
		if err != nil {
			return nil, err
		}
		step = &fromList{inner: b}
	case ref.Parallel:
		n := ref.MaxConcurrency
		if n == 0 {
			n = defaultConcurrency
		}
		step = &fromList{inner: workflow.NewParallelMap(step, workflow.WithMaxConcurrency(n))}
	case ref.ForEach:
		step = &fromList{inner: workflow.NewForEach(step)}
	}

	if d := ref.Timeout.Duration(); d > 0 {
		step = &timeoutStep{inner: step, d: d}
	}
	if ref.As != "" {
		step = workflow.Named(step, ref.As)
	}
	if ref.Instrument {
		step = workflow.Instrument(step, ref.DisplayName(), opts...)
	}

	out := []workflow.Dynamic{step}
	switch {
	case ref.CheckpointIf != "":
		pred, ok := reg.Predicate(ref.CheckpointIf)
		if !ok {
			return nil, stepflow.NewValidationError(fmt.Sprintf("predicate %q not in registry", ref.CheckpointIf))
		}
		name := ref.Checkpoint
		if name == "" {
			name = ref.CheckpointIf
		}
		out = append(out, workflow.NewConditionalCheckpoint[any](name, pred))
	case ref.Checkpoint != "":
		out = append(out, workflow.NewCheckpoint[any](ref.Checkpoint))
	}
	return out, nil
}

// toList converts any slice value into []any.
func toList(stepName string, v any) ([]any, error) {
	switch l := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return l, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &stepflow.Error{
			Kind:  stepflow.KindValidation,
			Msg:   fmt.Sprintf("step %q: expected a list, got %T", stepName, v),
			Cause: workflow.ErrTypeMismatch,
		}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// fromList exposes a list step as a Dynamic step.
type fromList struct {
	inner workflow.Step[[]any, []any]
}

func (f *fromList) Name() string { return f.inner.Name() }

func (f *fromList) Run(ctx context.Context, ec *stepflow.ExecutionContext, input any) (any, error) {
	items, err := toList(f.inner.Name(), input)
	if err != nil {
		return nil, err
	}
	out, err := f.inner.Run(ctx, ec, items)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// listStep exposes a Dynamic step that handles whole chunks as a list step.
type listStep struct {
	inner workflow.Dynamic
}

func (l *listStep) Name() string { return l.inner.Name() }

func (l *listStep) Run(ctx context.Context, ec *stepflow.ExecutionContext, input []any) ([]any, error) {
	out, err := l.inner.Run(ctx, ec, input)
	if err != nil {
		return nil, err
	}
	return toList(l.inner.Name(), out)
}

type timeoutStep struct {
	inner workflow.Dynamic
	d     time.Duration
}

func (t *timeoutStep) Name() string { return t.inner.Name() }

func (t *timeoutStep) Run(ctx context.Context, ec *stepflow.ExecutionContext, input any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Run(ctx, ec, input)
}
