// Package sink exports finished run reports to external storage.
//
// A report bundles a run's metrics snapshot and trace log with its outcome.
// The subpackages write reports to SQLite, PostgreSQL, MongoDB, Kafka, Redis
// streams and S3-compatible object storage. Sinks are called after a run ends; they
// never participate in step execution.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/workflow"
)

// Sink receives finished run reports.
type Sink interface {
	Write(ctx context.Context, r Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Report) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, r Report) error { return f(ctx, r) }

// Report is the exported record of one run.
type Report struct {
	RunID      string                   `json:"run_id"`
	Workflow   string                   `json:"workflow"`
	Metrics    stepflow.Metrics         `json:"metrics"`
	Traces     []event.TraceEntry       `json:"traces"`
	Err        string                   `json:"error,omitempty"`
	Checkpoint *workflow.CheckpointInfo `json:"checkpoint,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// Status returns "completed", "checkpoint" or "failed".
func (r Report) Status() string {
	switch {
	case r.Checkpoint != nil:
		return "checkpoint"
	case r.Err != "":
		return "failed"
	default:
		return "completed"
	}
}

// Summary is a report without its trace log.
type Summary struct {
	RunID      string                   `json:"run_id"`
	Workflow   string                   `json:"workflow"`
	Status     string                   `json:"status"`
	Metrics    stepflow.Metrics         `json:"metrics"`
	Err        string                   `json:"error,omitempty"`
	Checkpoint *workflow.CheckpointInfo `json:"checkpoint,omitempty"`
	TraceCount int                      `json:"trace_count"`
	CreatedAt  time.Time                `json:"created_at"`
}

// Summary drops the trace log from r.
func (r Report) Summary() Summary {
	return Summary{
		RunID:      r.RunID,
		Workflow:   r.Workflow,
		Status:     r.Status(),
		Metrics:    r.Metrics,
		Err:        r.Err,
		Checkpoint: r.Checkpoint,
		TraceCount: len(r.Traces),
		CreatedAt:  r.CreatedAt,
	}
}

// NewReport captures the state of ec after a run of the named workflow
// ended with err.
func NewReport(name string, ec *stepflow.ExecutionContext, err error) Report {
	r := Report{
		RunID:     ec.ID(),
		Workflow:  name,
		Metrics:   ec.Snapshot(),
		Traces:    ec.Traces(),
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		r.Err = err.Error()
		if cp, ok := stepflow.AsCheckpoint(err); ok {
			r.Checkpoint = &workflow.CheckpointInfo{StepName: cp.StepName, Data: cp.Snapshot}
		}
	}
	return r
}

// FromResult converts a runner result into a report.
func FromResult(res *workflow.RunResult) Report {
	return Report{
		RunID:      res.RunID,
		Workflow:   res.Workflow,
		Metrics:    res.Metrics,
		Traces:     res.Traces,
		Err:        res.Error,
		Checkpoint: res.Checkpoint,
		CreatedAt:  time.Now().UTC(),
	}
}

type multi []Sink

// Multi returns a sink that writes to every sink in order. All sinks are
// attempted; their errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a sink that drops every report.
var Discard Sink = SinkFunc(func(context.Context, Report) error { return nil })

// ErrNotFound is returned by queryable sinks for an unknown run ID.
var ErrNotFound = errors.New("run not found")
