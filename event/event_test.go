package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceEntryJSON(t *testing.T) {
	t.Run("uses type and payload fields", func(t *testing.T) {
		entry := TraceEntry{Timestamp: 1700000000000, Event: StepStart{StepName: "Summarize", InputType: "string"}}
		data, err := json.Marshal(entry)
		require.NoError(t, err)

		assert.JSONEq(t,
			`{"timestamp":1700000000000,"type":"StepStart","payload":{"step_name":"Summarize","input_type":"string"}}`,
			string(data))
	})

	t.Run("step end duration in milliseconds", func(t *testing.T) {
		entry := TraceEntry{Timestamp: 5, Event: StepEnd{StepName: "s", Duration: 1500 * time.Millisecond}}
		data, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.JSONEq(t, `{"timestamp":5,"type":"StepEnd","payload":{"step_name":"s","duration_ms":1500}}`, string(data))
	})

	t.Run("decodes every event type", func(t *testing.T) {
		entries := []TraceEntry{
			{Timestamp: 1, Event: StepStart{StepName: "a", InputType: "int"}},
			{Timestamp: 2, Event: StepEnd{StepName: "a", Duration: 3 * time.Millisecond}},
			{Timestamp: 3, Event: Artifact{StepName: "a", Key: "score", Data: map[string]any{"value": float64(95)}}},
			{Timestamp: 4, Event: Error{StepName: "a", Message: "boom"}},
		}
		data, err := json.Marshal(entries)
		require.NoError(t, err)

		var decoded []TraceEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entries, decoded)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		var entry TraceEntry
		err := json.Unmarshal([]byte(`{"timestamp":1,"type":"Bogus","payload":{}}`), &entry)
		assert.Error(t, err)
	})

	t.Run("rejects empty entry", func(t *testing.T) {
		_, err := json.Marshal(TraceEntry{})
		assert.Error(t, err)
	})
}

func TestNewEntry(t *testing.T) {
	before := time.Now().UnixMilli()
	entry := NewEntry(Error{StepName: "x", Message: "m"})
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, entry.Timestamp, before)
	assert.LessOrEqual(t, entry.Timestamp, after)
	assert.Equal(t, entry.Timestamp, entry.Time().UnixMilli())
}

func TestFilter(t *testing.T) {
	entries := []TraceEntry{
		NewEntry(StepStart{StepName: "a"}),
		NewEntry(StepEnd{StepName: "a"}),
		NewEntry(StepStart{StepName: "b"}),
	}
	starts := Filter(entries, StepStartType)
	require.Len(t, starts, 2)
	assert.Equal(t, "b", starts[1].Event.Step())
	assert.Empty(t, Filter(entries, ErrorType))
}
