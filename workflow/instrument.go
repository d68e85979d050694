package workflow

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
)

const instrumentationName = "github.com/spetersoncode/stepflow/workflow"

// Instrumented wraps a step with tracing and metrics.
//
// Each run emits StepStart, then StepEnd and one completed step on success,
// or an Error event and a recorded failure otherwise. The inner result is
// returned untouched. A span is opened around the run on the configured
// tracer provider.
type Instrumented[I, O any] struct {
	inner  Step[I, O]
	name   string
	tracer trace.Tracer
}

// Instrument wraps step under name. WithTracerProvider selects the span
// destination; the global provider is used otherwise.
func Instrument[I, O any](step Step[I, O], name string, opts ...Option) *Instrumented[I, O] {
	o := ApplyOptions(opts...)
	return &Instrumented[I, O]{
		inner:  step,
		name:   name,
		tracer: o.tracerProvider().Tracer(instrumentationName),
	}
}

// Name returns the instrumentation name.
func (s *Instrumented[I, O]) Name() string { return s.name }

// Inner returns the wrapped step.
func (s *Instrumented[I, O]) Inner() Step[I, O] { return s.inner }

// Run executes the inner step with tracing.
func (s *Instrumented[I, O]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (O, error) {
	inputType := TypeName[I]()
	ctx, span := s.tracer.Start(ctx, s.name, trace.WithAttributes(
		attribute.String("stepflow.run_id", ec.ID()),
		attribute.String("stepflow.input_type", inputType),
	))
	defer span.End()

	ec.Emit(event.StepStart{StepName: s.name, InputType: inputType})

	start := time.Now()
	out, err := s.inner.Run(ctx, ec, input)
	elapsed := time.Since(start)

	logger := ec.Logger()
	if err != nil {
		ec.RecordFailure(err.Error())
		ec.Emit(event.Error{StepName: s.name, Message: err.Error()})
		if cp, ok := stepflow.AsCheckpoint(err); ok {
			span.AddEvent("checkpoint", trace.WithAttributes(attribute.String("stepflow.checkpoint", cp.StepName)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "step failed",
			slog.String("step", s.name),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return out, err
	}

	ec.RecordStep()
	ec.Emit(event.StepEnd{StepName: s.name, Duration: elapsed})
	span.SetStatus(codes.Ok, "")
	logger.LogAttrs(ctx, slog.LevelDebug, "step completed",
		slog.String("step", s.name),
		slog.Duration("duration", elapsed),
	)
	return out, nil
}
