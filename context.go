package stepflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/spetersoncode/stepflow/event"
)

// Listener observes trace entries as they are emitted.
// Listeners run synchronously on the emitting goroutine.
type Listener func(event.TraceEntry)

// ExecutionContext is the shared handle passed to every step of a run. It
// accumulates metrics and a trace log. Steps running concurrently share the
// same pointer; all mutations are serialized.
type ExecutionContext struct {
	id        string
	logger    *slog.Logger
	listeners []Listener

	metricsMu sync.Mutex
	metrics   Metrics

	tracesMu sync.Mutex
	traces   []event.TraceEntry
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithRunID overrides the generated run ID.
func WithRunID(id string) ContextOption {
	return func(ec *ExecutionContext) {
		if id != "" {
			ec.id = id
		}
	}
}

// WithLogger sets the logger that receives a debug record for every emitted event.
func WithLogger(l *slog.Logger) ContextOption {
	return func(ec *ExecutionContext) {
		if l != nil {
			ec.logger = l
		}
	}
}

// WithListener registers a listener for emitted trace entries.
func WithListener(l Listener) ContextOption {
	return func(ec *ExecutionContext) {
		if l != nil {
			ec.listeners = append(ec.listeners, l)
		}
	}
}

// NewExecutionContext creates a context with empty metrics and traces.
func NewExecutionContext(opts ...ContextOption) *ExecutionContext {
	ec := &ExecutionContext{
		id:     uuid.NewString(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// ID returns the run identifier.
func (ec *ExecutionContext) ID() string {
	return ec.id
}

// Logger returns the context logger, annotated with the run ID.
func (ec *ExecutionContext) Logger() *slog.Logger {
	return ec.logger.With("run_id", ec.id)
}

// RecordTokens adds prompt and completion tokens.
func (ec *ExecutionContext) RecordTokens(prompt, completion int) {
	ec.metricsMu.Lock()
	defer ec.metricsMu.Unlock()
	ec.metrics.AddTokens(prompt, completion)
}

// RecordPromptTokens adds prompt tokens. The total is kept in step.
func (ec *ExecutionContext) RecordPromptTokens(n int) {
	ec.RecordTokens(n, 0)
}

// RecordCompletionTokens adds completion tokens. The total is kept in step.
func (ec *ExecutionContext) RecordCompletionTokens(n int) {
	ec.RecordTokens(0, n)
}

// RecordStep counts one successful step.
func (ec *ExecutionContext) RecordStep() {
	ec.metricsMu.Lock()
	defer ec.metricsMu.Unlock()
	ec.metrics.RecordStep()
}

// RecordFailure appends a failure description.
func (ec *ExecutionContext) RecordFailure(msg string) {
	ec.metricsMu.Lock()
	defer ec.metricsMu.Unlock()
	ec.metrics.RecordFailure(msg)
}

// Snapshot returns a copy of the current metrics.
func (ec *ExecutionContext) Snapshot() Metrics {
	ec.metricsMu.Lock()
	defer ec.metricsMu.Unlock()
	return ec.metrics.Clone()
}

// Emit appends e to the trace log with the current timestamp.
func (ec *ExecutionContext) Emit(e event.Event) {
	entry := event.NewEntry(e)

	ec.tracesMu.Lock()
	ec.traces = append(ec.traces, entry)
	ec.tracesMu.Unlock()

	ec.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace event",
		slog.String("run_id", ec.id),
		slog.String("type", string(e.Type())),
		slog.String("step", e.Step()),
	)
	for _, l := range ec.listeners {
		l(entry)
	}
}

// EmitArtifact records a named intermediate value produced by a step.
// Values that cannot be captured are recorded as SerializationPlaceholder.
func (ec *ExecutionContext) EmitArtifact(stepName, key string, data any) {
	ec.Emit(event.Artifact{StepName: stepName, Key: key, Data: ToValue(data)})
}

// Traces returns a copy of the trace log in emission order.
func (ec *ExecutionContext) Traces() []event.TraceEntry {
	ec.tracesMu.Lock()
	defer ec.tracesMu.Unlock()
	out := make([]event.TraceEntry, len(ec.traces))
	copy(out, ec.traces)
	return out
}

// ClearTraces empties the trace log. Metrics are untouched.
func (ec *ExecutionContext) ClearTraces() {
	ec.tracesMu.Lock()
	defer ec.tracesMu.Unlock()
	ec.traces = nil
}
