// Package config builds workflows from human-readable YAML pipeline
// definitions over a registry of named steps.
package config

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/workflow"
)

// Predicate decides whether a conditional checkpoint pauses on a value.
type Predicate func(v any) bool

// Registry maps stage names to steps and predicate names to predicates.
// Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	steps      map[string]workflow.Dynamic
	predicates map[string]Predicate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps:      make(map[string]workflow.Dynamic),
		predicates: make(map[string]Predicate),
	}
}

// Register adds a step under the given name. Overwrites any existing registration.
func (r *Registry) Register(name string, step workflow.Dynamic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[name] = step
}

// RegisterPredicate adds a checkpoint predicate under the given name.
func (r *Registry) RegisterPredicate(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = p
}

// Get returns the step for name, or nil and false if not found.
func (r *Registry) Get(name string) (workflow.Dynamic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// MustGet returns the step for name, or panics if not found.
func (r *Registry) MustGet(name string) workflow.Dynamic {
	s, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("config: step %q not registered", name))
	}
	return s
}

// Predicate returns the predicate for name.
func (r *Registry) Predicate(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[name]
	return p, ok
}

// Names returns all registered step names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for n := range r.steps {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Register adds a typed step to reg under name. Inputs that are not already
// an I are converted through their JSON form, so steps receive proper types
// when the pipeline input was decoded from JSON.
func Register[I, O any](reg *Registry, name string, step workflow.Step[I, O]) {
	reg.Register(name, Adapt(step))
}

// Adapt erases step like workflow.Erase but converts JSON-shaped inputs
// (maps, []any, float64) into I instead of rejecting them.
func Adapt[I, O any](step workflow.Step[I, O]) workflow.Dynamic {
	return &adapted[I, O]{inner: step}
}

type adapted[I, O any] struct {
	inner workflow.Step[I, O]
}

func (a *adapted[I, O]) Name() string { return a.inner.Name() }

func (a *adapted[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input any) (any, error) {
	var in I
	switch v := input.(type) {
	case nil:
	case I:
		in = v
	default:
		decoded, err := stepflow.DecodeValue[I](v)
		if err != nil {
			return nil, &stepflow.Error{
				Kind:  stepflow.KindValidation,
				Msg:   fmt.Sprintf("step %q: cannot convert %T to %s", a.inner.Name(), input, workflow.TypeName[I]()),
				Cause: err,
			}
		}
		in = decoded
	}
	return a.inner.Run(ctx, ec, in)
}
