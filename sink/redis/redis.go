// Package redis exports run reports to Redis.
//
// Key layout (prefix defaults to "stepflow:"):
//
//	<prefix>traces:<workflow>   => STREAM of trace entries, one per XADD
//	<prefix>run:<run_id>        => HASH summarizing the run
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/workflow"
)

// Cmdable is the subset of redis.Cmdable used by the sink.
type Cmdable interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ Cmdable = (*redis.Client)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) { s.prefix = prefix }
}

// WithMaxLen caps each trace stream at roughly n entries (0 = unbounded).
func WithMaxLen(n int64) Option {
	return func(s *Sink) { s.maxLen = n }
}

// WithTTL expires run hashes after d (0 = never).
func WithTTL(d time.Duration) Option {
	return func(s *Sink) { s.ttl = d }
}

// Sink writes reports to Redis.
type Sink struct {
	client Cmdable
	prefix string
	maxLen int64
	ttl    time.Duration
}

var _ sink.Sink = (*Sink)(nil)

// New creates a sink around client.
func New(client Cmdable, opts ...Option) *Sink {
	s := &Sink{client: client, prefix: "stepflow:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial creates a sink from a redis URL such as redis://localhost:6379/0.
func Dial(url string, opts ...Option) (*Sink, *redis.Client, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	return New(client, opts...), client, nil
}

// StreamKey returns the stream key for workflow.
func (s *Sink) StreamKey(workflow string) string {
	return s.prefix + "traces:" + workflow
}

// RunKey returns the hash key for runID.
func (s *Sink) RunKey(runID string) string {
	return s.prefix + "run:" + runID
}

// Write appends each trace entry of r to the workflow stream and stores the
// run summary hash.
func (s *Sink) Write(ctx context.Context, r sink.Report) error {
	stream := s.StreamKey(r.Workflow)
	for _, e := range r.Traces {
		payload, err := json.Marshal(e.Event)
		if err != nil {
			return stepflow.NewJSONError(err)
		}
		args := &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{
				"run_id":    r.RunID,
				"timestamp": e.Timestamp,
				"type":      string(e.Event.Type()),
				"step":      e.Event.Step(),
				"payload":   string(payload),
			},
		}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		if err := s.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", stream, err)
		}
	}

	fields, err := summaryFields(r)
	if err != nil {
		return err
	}
	key := s.RunKey(r.RunID)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// Summary reads back the run hash written for runID.
func (s *Sink) Summary(ctx context.Context, runID string) (sink.Summary, error) {
	key := s.RunKey(runID)
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return sink.Summary{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(vals) == 0 {
		return sink.Summary{}, fmt.Errorf("%w: %s", sink.ErrNotFound, runID)
	}
	return parseSummary(vals)
}

func summaryFields(r sink.Report) (map[string]any, error) {
	sum := r.Summary()
	failures, err := json.Marshal(sum.Metrics.Failures)
	if err != nil {
		return nil, stepflow.NewJSONError(err)
	}
	fields := map[string]any{
		"run_id":                 sum.RunID,
		"workflow":               sum.Workflow,
		"status":                 sum.Status,
		"error":                  sum.Err,
		"prompt_token_count":     sum.Metrics.PromptTokens,
		"completion_token_count": sum.Metrics.CompletionTokens,
		"total_token_count":      sum.Metrics.TotalTokens,
		"steps_completed":        sum.Metrics.StepsCompleted,
		"failures":               string(failures),
		"trace_count":            sum.TraceCount,
		"created_at":             sum.CreatedAt.UnixMilli(),
		"checkpoint":             "",
	}
	if sum.Checkpoint != nil {
		cp, err := json.Marshal(sum.Checkpoint)
		if err != nil {
			return nil, stepflow.NewJSONError(err)
		}
		fields["checkpoint"] = string(cp)
	}
	return fields, nil
}

func parseSummary(vals map[string]string) (sink.Summary, error) {
	sum := sink.Summary{
		RunID:    vals["run_id"],
		Workflow: vals["workflow"],
		Status:   vals["status"],
		Err:      vals["error"],
	}
	ints := map[string]*int{
		"prompt_token_count":     &sum.Metrics.PromptTokens,
		"completion_token_count": &sum.Metrics.CompletionTokens,
		"total_token_count":      &sum.Metrics.TotalTokens,
		"steps_completed":        &sum.Metrics.StepsCompleted,
		"trace_count":            &sum.TraceCount,
	}
	for field, dst := range ints {
		n, err := strconv.Atoi(vals[field])
		if err != nil {
			return sink.Summary{}, fmt.Errorf("field %s: %w", field, err)
		}
		*dst = n
	}
	created, err := strconv.ParseInt(vals["created_at"], 10, 64)
	if err != nil {
		return sink.Summary{}, fmt.Errorf("field created_at: %w", err)
	}
	sum.CreatedAt = time.UnixMilli(created).UTC()
	if err := json.Unmarshal([]byte(vals["failures"]), &sum.Metrics.Failures); err != nil {
		return sink.Summary{}, stepflow.NewJSONError(err)
	}
	if cp := vals["checkpoint"]; cp != "" {
		sum.Checkpoint = &workflow.CheckpointInfo{}
		if err := json.Unmarshal([]byte(cp), sum.Checkpoint); err != nil {
			return sink.Summary{}, stepflow.NewJSONError(err)
		}
	}
	return sum, nil
}
