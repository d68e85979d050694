// Package mongo stores run reports as MongoDB documents.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/workflow"
)

// Store is a sink.Sink writing one document per run.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ sink.Sink = (*Store)(nil)

// Connect dials uri and returns a Store using the given database and
// collection. dbName defaults to "stepflow" and collName to "runs".
func Connect(ctx context.Context, uri, dbName, collName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	return New(client, dbName, collName), nil
}

// New returns a Store on an existing client.
func New(client *mongo.Client, dbName, collName string) *Store {
	if dbName == "" {
		dbName = "stepflow"
	}
	if collName == "" {
		collName = "runs"
	}
	return &Store{client: client, coll: client.Database(dbName).Collection(collName)}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type runDoc struct {
	ID          string    `bson:"_id"`
	Workflow    string    `bson:"workflow"`
	Status      string    `bson:"status"`
	TotalTokens int       `bson:"total_tokens"`
	Metrics     []byte    `bson:"metrics"`
	Error       string    `bson:"error,omitempty"`
	Checkpoint  []byte    `bson:"checkpoint,omitempty"`
	Traces      []byte    `bson:"traces,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

// Write upserts the document for r.
func (s *Store) Write(ctx context.Context, r sink.Report) error {
	doc := runDoc{
		ID:          r.RunID,
		Workflow:    r.Workflow,
		Status:      r.Status(),
		TotalTokens: r.Metrics.TotalTokens,
		Error:       r.Err,
		CreatedAt:   r.CreatedAt,
	}
	var err error
	if doc.Metrics, err = json.Marshal(r.Metrics); err != nil {
		return stepflow.NewJSONError(err)
	}
	if r.Checkpoint != nil {
		if doc.Checkpoint, err = json.Marshal(r.Checkpoint); err != nil {
			return stepflow.NewJSONError(err)
		}
	}
	traces := r.Traces
	if traces == nil {
		traces = []event.TraceEntry{}
	}
	if doc.Traces, err = json.Marshal(traces); err != nil {
		return stepflow.NewJSONError(err)
	}

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": r.RunID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write run %s: %w", r.RunID, err)
	}
	return nil
}

// Runs lists stored reports, newest first. Traces are not loaded.
func (s *Store) Runs(ctx context.Context) ([]sink.Report, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"traces": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []sink.Report
	for cur.Next(ctx) {
		var doc runDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		r, err := doc.report()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, cur.Err()
}

// Run returns the report for runID including its traces, or sink.ErrNotFound.
func (s *Store) Run(ctx context.Context, runID string) (sink.Report, error) {
	doc, err := s.find(ctx, runID, nil)
	if err != nil {
		return sink.Report{}, err
	}
	r, err := doc.report()
	if err != nil {
		return sink.Report{}, err
	}
	if r.Traces, err = doc.traces(); err != nil {
		return sink.Report{}, err
	}
	return r, nil
}

// Traces returns the trace entries of runID in emission order.
func (s *Store) Traces(ctx context.Context, runID string) ([]event.TraceEntry, error) {
	doc, err := s.find(ctx, runID, bson.M{"traces": 1})
	if err != nil {
		return nil, err
	}
	return doc.traces()
}

func (s *Store) find(ctx context.Context, runID string, projection any) (*runDoc, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	var doc runDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", sink.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *runDoc) report() (sink.Report, error) {
	r := sink.Report{
		RunID:     d.ID,
		Workflow:  d.Workflow,
		Err:       d.Error,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(d.Metrics, &r.Metrics); err != nil {
		return sink.Report{}, stepflow.NewJSONError(err)
	}
	if len(d.Checkpoint) > 0 {
		r.Checkpoint = &workflow.CheckpointInfo{}
		if err := json.Unmarshal(d.Checkpoint, r.Checkpoint); err != nil {
			return sink.Report{}, stepflow.NewJSONError(err)
		}
	}
	return r, nil
}

func (d *runDoc) traces() ([]event.TraceEntry, error) {
	out := []event.TraceEntry{}
	if len(d.Traces) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(d.Traces, &out); err != nil {
		return nil, stepflow.NewJSONError(err)
	}
	return out, nil
}
