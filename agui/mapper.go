package agui

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/workflow"
)

// Mapper converts stepflow trace entries to AG-UI events.
//
// Create a new Mapper for each run using NewMapper.
type Mapper struct {
	threadID string
	runID    string
}

// NewMapper creates a new Mapper for a single run.
// The threadID and runID are used in lifecycle events (RUN_STARTED, RUN_FINISHED).
func NewMapper(threadID, runID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	if runID == "" {
		runID = events.GenerateRunID()
	}
	return &Mapper{
		threadID: threadID,
		runID:    runID,
	}
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the run ID for this mapper.
func (m *Mapper) RunID() string {
	return m.runID
}

// RunStarted returns a RUN_STARTED event.
func (m *Mapper) RunStarted() events.Event {
	return events.NewRunStartedEvent(m.threadID, m.runID)
}

// RunFinished returns a RUN_FINISHED event.
func (m *Mapper) RunFinished() events.Event {
	return events.NewRunFinishedEvent(m.threadID, m.runID)
}

// RunError returns a RUN_ERROR event.
func (m *Mapper) RunError(err error) events.Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return events.NewRunErrorEvent(msg)
}

// MapEntry converts a trace entry to an AG-UI event.
// Returns nil for events that have no AG-UI equivalent (artifacts and
// errors; failures surface through RunError).
func (m *Mapper) MapEntry(e event.TraceEntry) events.Event {
	switch ev := e.Event.(type) {
	case event.StepStart:
		return events.NewStepStartedEvent(ev.StepName)
	case event.StepEnd:
		return events.NewStepFinishedEvent(ev.StepName)
	default:
		return nil
	}
}

// MapEntries converts entries in order, skipping those without an equivalent.
func (m *Mapper) MapEntries(entries []event.TraceEntry) []events.Event {
	out := make([]events.Event, 0, len(entries))
	for _, e := range entries {
		if ev := m.MapEntry(e); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

// Terminal returns the event that closes a run ending with err. A checkpoint
// is a deliberate pause, so it finishes the run rather than failing it.
func (m *Mapper) Terminal(err error) events.Event {
	if err == nil || stepflow.IsCheckpoint(err) {
		return m.RunFinished()
	}
	return m.RunError(err)
}

// MapRun converts a finished run to a complete AG-UI event sequence:
// RUN_STARTED, one event per mapped trace entry, then RUN_FINISHED or RUN_ERROR.
func (m *Mapper) MapRun(result *workflow.RunResult, err error) []events.Event {
	out := []events.Event{m.RunStarted()}
	if result != nil {
		out = append(out, m.MapEntries(result.Traces)...)
	}
	return append(out, m.Terminal(err))
}

// Run executes runner and passes AG-UI events to emit while the run
// progresses. emit is never called concurrently. After the first emit error
// no further events are delivered; the run itself continues to completion
// and the emit error is returned if the run succeeded.
func (m *Mapper) Run(ctx context.Context, runner workflow.Runner, input json.RawMessage, emit func(events.Event) error, opts ...workflow.Option) (*workflow.RunResult, error) {
	var (
		mu      sync.Mutex
		emitErr error
	)
	send := func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		if emitErr != nil {
			return
		}
		emitErr = emit(ev)
	}

	send(m.RunStarted())
	listener := func(e event.TraceEntry) {
		if ev := m.MapEntry(e); ev != nil {
			send(ev)
		}
	}
	result, err := runner.Run(ctx, input, append(opts, workflow.WithListener(listener))...)
	send(m.Terminal(err))

	if err != nil {
		return result, err
	}
	mu.Lock()
	defer mu.Unlock()
	return result, emitErr
}
