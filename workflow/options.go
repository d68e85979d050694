package workflow

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/spetersoncode/stepflow"
)

// Options contains configuration for combinators and runs.
type Options struct {
	// MaxConcurrency limits in-flight items in a ParallelMap (0 = unlimited).
	MaxConcurrency int

	// Name overrides the default name of a workflow.
	Name string

	// Logger is attached to execution contexts created by a run.
	Logger *slog.Logger

	// Listeners observe trace entries of contexts created by a run.
	Listeners []stepflow.Listener

	// TracerProvider receives spans from instrumented steps.
	TracerProvider trace.TracerProvider
}

// Option is a functional option for workflow configuration.
type Option func(*Options)

// WithMaxConcurrency limits parallel execution.
// A value of 0 means unlimited concurrency.
func WithMaxConcurrency(n int) Option {
	return func(o *Options) {
		o.MaxConcurrency = n
	}
}

// WithName sets the workflow name.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithLogger sets the logger for execution contexts created by a run.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithListener registers a trace listener for execution contexts created by a run.
func WithListener(l stepflow.Listener) Option {
	return func(o *Options) {
		o.Listeners = append(o.Listeners, l)
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for instrumented steps.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// ApplyOptions applies functional options with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Options) tracerProvider() trace.TracerProvider {
	if o.TracerProvider != nil {
		return o.TracerProvider
	}
	return otel.GetTracerProvider()
}

func (o *Options) newContext() *stepflow.ExecutionContext {
	ctxOpts := []stepflow.ContextOption{stepflow.WithLogger(o.Logger)}
	for _, l := range o.Listeners {
		ctxOpts = append(ctxOpts, stepflow.WithListener(l))
	}
	return stepflow.NewExecutionContext(ctxOpts...)
}
