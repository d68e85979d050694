// Package kafka publishes run reports to a Kafka topic.
//
// Every trace entry becomes one message, followed by a summary message. All
// messages of a run share the run ID as key, so they land on one partition
// in order. The "type" header holds the event type or "summary".
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/sink"
)

// SummaryType is the "type" header value of the closing message of a run.
const SummaryType = "summary"

// Writer defines the subset of *kafka.Writer used by the sink.
// This allows for easy mocking in unit tests.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes reports through a Writer.
type Sink struct {
	w Writer
}

var _ sink.Sink = (*Sink)(nil)

// New creates a sink around w.
func New(w Writer) *Sink {
	return &Sink{w: w}
}

// Dial creates a sink writing to topic on the given brokers. Messages are
// partitioned by key hash.
func Dial(topic string, brokers ...string) *Sink {
	return New(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

// Close closes the underlying writer.
func (s *Sink) Close() error {
	return s.w.Close()
}

// Write publishes the trace entries of r and its summary in one batch.
func (s *Sink) Write(ctx context.Context, r sink.Report) error {
	msgs, err := Messages(r)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish run %s: %w", r.RunID, err)
	}
	return nil
}

// Messages encodes r as the messages Write publishes.
func Messages(r sink.Report) ([]kafka.Message, error) {
	key := []byte(r.RunID)
	msgs := make([]kafka.Message, 0, len(r.Traces)+1)
	for _, e := range r.Traces {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, stepflow.NewJSONError(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     key,
			Value:   value,
			Headers: []kafka.Header{{Key: "type", Value: []byte(e.Event.Type())}},
			Time:    e.Time(),
		})
	}
	summary, err := json.Marshal(r.Summary())
	if err != nil {
		return nil, stepflow.NewJSONError(err)
	}
	msgs = append(msgs, kafka.Message{
		Key:     key,
		Value:   summary,
		Headers: []kafka.Header{{Key: "type", Value: []byte(SummaryType)}},
		Time:    r.CreatedAt,
	})
	return msgs, nil
}
