// Package event defines the closed set of trace events recorded while a
// pipeline runs, and the timestamped entries that hold them.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	// StepStartType fires when an instrumented step begins.
	StepStartType Type = "StepStart"

	// StepEndType fires when an instrumented step completes successfully.
	StepEndType Type = "StepEnd"

	// ArtifactType carries a named intermediate value produced by a step.
	ArtifactType Type = "Artifact"

	// ErrorType fires when an instrumented step fails.
	ErrorType Type = "Error"
)

// Event is one of StepStart, StepEnd, Artifact or Error.
type Event interface {
	Type() Type
	Step() string
	sealed()
}

// StepStart marks the beginning of a step.
type StepStart struct {
	StepName  string `json:"step_name"`
	InputType string `json:"input_type"`
}

// StepEnd marks the successful end of a step.
type StepEnd struct {
	StepName string
	Duration time.Duration
}

// Artifact carries a named value emitted by a step.
type Artifact struct {
	StepName string `json:"step_name"`
	Key      string `json:"key"`
	Data     any    `json:"data"`
}

// Error records a step failure.
type Error struct {
	StepName string `json:"step_name"`
	Message  string `json:"message"`
}

func (StepStart) Type() Type { return StepStartType }
func (StepEnd) Type() Type   { return StepEndType }
func (Artifact) Type() Type  { return ArtifactType }
func (Error) Type() Type     { return ErrorType }

func (e StepStart) Step() string { return e.StepName }
func (e StepEnd) Step() string   { return e.StepName }
func (e Artifact) Step() string  { return e.StepName }
func (e Error) Step() string     { return e.StepName }

func (StepStart) sealed() {}
func (StepEnd) sealed()   {}
func (Artifact) sealed()  {}
func (Error) sealed()     {}

type stepEndJSON struct {
	StepName   string `json:"step_name"`
	DurationMS int64  `json:"duration_ms"`
}

// MarshalJSON encodes the duration in whole milliseconds.
func (e StepEnd) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepEndJSON{StepName: e.StepName, DurationMS: e.Duration.Milliseconds()})
}

// UnmarshalJSON decodes a millisecond duration.
func (e *StepEnd) UnmarshalJSON(data []byte) error {
	var raw stepEndJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.StepName = raw.StepName
	e.Duration = time.Duration(raw.DurationMS) * time.Millisecond
	return nil
}

// TraceEntry is an event stamped with its emission time in Unix milliseconds.
type TraceEntry struct {
	Timestamp int64
	Event     Event
}

// NewEntry stamps e with the current time.
func NewEntry(e Event) TraceEntry {
	return TraceEntry{Timestamp: time.Now().UnixMilli(), Event: e}
}

// Time returns the timestamp as a time.Time.
func (t TraceEntry) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

type entryJSON struct {
	Timestamp int64           `json:"timestamp"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the entry as {"timestamp", "type", "payload"}.
func (t TraceEntry) MarshalJSON() ([]byte, error) {
	if t.Event == nil {
		return nil, fmt.Errorf("event: trace entry has no event")
	}
	payload, err := json.Marshal(t.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{Timestamp: t.Timestamp, Type: t.Event.Type(), Payload: payload})
}

// UnmarshalJSON decodes an entry produced by MarshalJSON.
func (t *TraceEntry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev, err := Decode(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	t.Timestamp = raw.Timestamp
	t.Event = ev
	return nil
}

// Decode builds an event of type typ from its JSON payload.
func Decode(typ Type, payload []byte) (Event, error) {
	switch typ {
	case StepStartType:
		var e StepStart
		err := json.Unmarshal(payload, &e)
		return e, err
	case StepEndType:
		var e StepEnd
		err := json.Unmarshal(payload, &e)
		return e, err
	case ArtifactType:
		var e Artifact
		err := json.Unmarshal(payload, &e)
		return e, err
	case ErrorType:
		var e Error
		err := json.Unmarshal(payload, &e)
		return e, err
	default:
		return nil, fmt.Errorf("event: unknown type %q", typ)
	}
}

// Filter returns the entries whose event has type typ.
func Filter(entries []TraceEntry, typ Type) []TraceEntry {
	var out []TraceEntry
	for _, e := range entries {
		if e.Event != nil && e.Event.Type() == typ {
			out = append(out, e)
		}
	}
	return out
}
