// Package sqlite stores run reports in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/workflow"
)

// Store is a sink.Sink backed by SQLite.
//
// It expects an *sql.DB using the "sqlite" driver from modernc.org/sqlite,
// which this package registers.
type Store struct {
	db *sql.DB
}

var _ sink.Sink = (*Store)(nil)

// Open opens the database at dsn (":memory:" or a file path) and prepares
// the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the required schema in db and returns a Store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		status TEXT NOT NULL,
		metrics TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		checkpoint TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trace_entries (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		type TEXT NOT NULL,
		step_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write stores r, replacing any earlier report with the same run ID.
func (s *Store) Write(ctx context.Context, r sink.Report) error {
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return stepflow.NewJSONError(err)
	}
	var checkpoint sql.NullString
	if r.Checkpoint != nil {
		data, err := json.Marshal(r.Checkpoint)
		if err != nil {
			return stepflow.NewJSONError(err)
		}
		checkpoint = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, workflow, status, metrics, error, checkpoint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Workflow, r.Status(), string(metrics), r.Err, checkpoint, r.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trace_entries WHERE run_id = ?`, r.RunID); err != nil {
		return err
	}
	for i, e := range r.Traces {
		payload, err := json.Marshal(e.Event)
		if err != nil {
			return stepflow.NewJSONError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trace_entries (run_id, seq, timestamp, type, step_name, payload)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, i, e.Timestamp, string(e.Event.Type()), e.Event.Step(), string(payload),
		); err != nil {
			return fmt.Errorf("insert trace entry %d of %s: %w", i, r.RunID, err)
		}
	}
	return tx.Commit()
}

// Runs lists stored reports, newest first. Traces are not loaded.
func (s *Store) Runs(ctx context.Context) ([]sink.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, workflow, metrics, error, checkpoint, created_at
		FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sink.Report
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns the report for runID including its traces, or sink.ErrNotFound.
func (s *Store) Run(ctx context.Context, runID string) (sink.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, workflow, metrics, error, checkpoint, created_at
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sink.Report{}, fmt.Errorf("%w: %s", sink.ErrNotFound, runID)
	}
	if err != nil {
		return sink.Report{}, err
	}
	r.Traces, err = s.Traces(ctx, runID)
	if err != nil {
		return sink.Report{}, err
	}
	return r, nil
}

// Traces returns the trace entries of runID in emission order.
func (s *Store) Traces(ctx context.Context, runID string) ([]event.TraceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, type, payload FROM trace_entries
		WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []event.TraceEntry{}
	for rows.Next() {
		var (
			ts      int64
			typ     string
			payload string
		)
		if err := rows.Scan(&ts, &typ, &payload); err != nil {
			return nil, err
		}
		ev, err := event.Decode(event.Type(typ), []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, event.TraceEntry{Timestamp: ts, Event: ev})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (sink.Report, error) {
	var (
		r          sink.Report
		metrics    string
		checkpoint sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&r.RunID, &r.Workflow, &metrics, &r.Err, &checkpoint, &createdAt); err != nil {
		return sink.Report{}, err
	}
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return sink.Report{}, stepflow.NewJSONError(err)
	}
	if checkpoint.Valid {
		r.Checkpoint = &workflow.CheckpointInfo{}
		if err := json.Unmarshal([]byte(checkpoint.String), r.Checkpoint); err != nil {
			return sink.Report{}, stepflow.NewJSONError(err)
		}
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return r, nil
}
