package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
)

// Runner is a type-erased interface for executing workflows.
// It allows workflows with different input and output types to be stored
// and dispatched by name with JSON input, as servers and tool adapters need.
type Runner interface {
	// Name returns the workflow's unique identifier.
	Name() string

	// Run decodes input, executes the workflow with a fresh execution context,
	// and returns the run report. The report is non-nil whenever the input
	// could be decoded, including when the workflow fails.
	Run(ctx context.Context, input json.RawMessage, opts ...Option) (*RunResult, error)
}

// CheckpointInfo describes a checkpoint a run stopped at.
type CheckpointInfo struct {
	StepName string         `json:"step_name"`
	Data     stepflow.Value `json:"data"`
}

// RunResult is the report of a single run.
type RunResult struct {
	Workflow   string             `json:"workflow"`
	RunID      string             `json:"run_id"`
	Output     any                `json:"output,omitempty"`
	Metrics    stepflow.Metrics   `json:"metrics"`
	Traces     []event.TraceEntry `json:"traces"`
	Checkpoint *CheckpointInfo    `json:"checkpoint,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type runner[I, O any] struct {
	wf   *Workflow[I, O]
	opts []Option
}

// NewRunner creates a Runner that decodes JSON input into I.
// An empty input decodes to the zero I.
//
// Example:
//
//	type Query struct {
//	    Text string `json:"text"`
//	}
//
//	runner := workflow.NewRunner(workflow.New(search, workflow.WithName("search")))
func NewRunner[I, O any](wf *Workflow[I, O], opts ...Option) Runner {
	return &runner[I, O]{wf: wf, opts: opts}
}

// Name returns the workflow name.
func (r *runner[I, O]) Name() string {
	return r.wf.Name()
}

// Run executes the workflow.
func (r *runner[I, O]) Run(ctx context.Context, input json.RawMessage, opts ...Option) (*RunResult, error) {
	var in I
	if len(input) > 0 && string(input) != "null" {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, stepflow.NewJSONError(fmt.Errorf("decode input for %q: %w", r.wf.Name(), err))
		}
	}

	o := ApplyOptions(append(slices.Clone(r.opts), opts...)...)
	ec := o.newContext()

	out, err := r.wf.RunWithContext(ctx, ec, in)
	if err == nil {
		ec.RecordStep()
	}

	result := &RunResult{
		Workflow: r.wf.Name(),
		RunID:    ec.ID(),
		Metrics:  ec.Snapshot(),
		Traces:   ec.Traces(),
	}
	if err != nil {
		result.Error = err.Error()
		if cp, ok := stepflow.AsCheckpoint(err); ok {
			result.Checkpoint = &CheckpointInfo{StepName: cp.StepName, Data: cp.Snapshot}
		}
		return result, err
	}
	result.Output = out
	return result, nil
}

// Registry stores and retrieves Runners by name.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry creates a new workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
	}
}

// Register adds a Runner to the registry.
// If a runner with the same name already exists, it is replaced.
func (r *Registry) Register(runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[runner.Name()] = runner
}

// Get retrieves a Runner by name.
// Returns nil if no runner with the given name exists.
func (r *Registry) Get(name string) Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runners[name]
}

// Has returns true if a runner with the given name exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.runners[name]
	return ok
}

// Unregister removes a Runner from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runners, name)
}

// Names returns all registered workflow names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered runners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runners)
}

// Run executes the named workflow.
func (r *Registry) Run(ctx context.Context, name string, input json.RawMessage, opts ...Option) (*RunResult, error) {
	runner := r.Get(name)
	if runner == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	return runner.Run(ctx, input, opts...)
}
