package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/agui"
	"github.com/spetersoncode/stepflow/event"
	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/workflow"
)

// WorkflowHandler handles AG-UI workflow requests over SSE.
type WorkflowHandler struct {
	registry *workflow.Registry
	sink     sink.Sink
	config   *Config
}

// NewWorkflowHandler creates a new handler for the given workflow registry.
// Every finished run is written to s.
func NewWorkflowHandler(r *workflow.Registry, s sink.Sink, cfg *Config) *WorkflowHandler {
	return &WorkflowHandler{registry: r, sink: s, config: cfg}
}

// ServeHTTP handles POST requests to run a workflow and stream events via SSE.
func (h *WorkflowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Only accept POST
	if r.Method != http.MethodPost {
		slog.Warn("method not allowed", "method", r.Method, "path", r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse request body
	var input agui.RunWorkflowInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		slog.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Create request-scoped logger
	log := slog.With(
		"run_id", input.RunID,
		"thread_id", input.ThreadID,
		"workflow", input.WorkflowName,
	)

	// Validate input
	prepared, err := input.Prepare()
	if err != nil {
		log.Warn("invalid input", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runner := h.registry.Get(prepared.WorkflowName)
	if runner == nil {
		log.Warn("workflow not found")
		http.Error(w, fmt.Sprintf("workflow not found: %s", prepared.WorkflowName), http.StatusNotFound)
		return
	}

	log.Info("workflow request started")

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Get flusher for streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	mapper := agui.NewMapper(prepared.ThreadID, prepared.RunID)

	ctx := r.Context()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	var eventCount int
	emit := func(ev aguievents.Event) error {
		eventCount++
		log.Debug("sending SSE event",
			"event_type", ev.Type(),
			"event_num", eventCount,
		)
		return writeSSE(w, flusher, ev)
	}

	result, err := mapper.Run(ctx, runner, prepared.Input, emit,
		workflow.WithLogger(log),
	)
	exportResult(ctx, h.sink, result)

	duration := time.Since(start)
	switch {
	case err == nil:
		log.Info("workflow request completed",
			"duration_ms", duration.Milliseconds(),
			"events_sent", eventCount,
		)
	case stepflow.IsCheckpoint(err):
		cp, _ := stepflow.AsCheckpoint(err)
		log.Info("workflow request paused at checkpoint",
			"duration_ms", duration.Milliseconds(),
			"events_sent", eventCount,
			"step", cp.StepName,
		)
	default:
		log.Error("workflow request failed",
			"duration_ms", duration.Milliseconds(),
			"events_sent", eventCount,
			"error", err,
		)
	}
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	// Write SSE format: event: TYPE\ndata: {json}\n\n
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	flusher.Flush()
	return nil
}

// RunStore is the read side of a persistent sink.
type RunStore interface {
	Runs(ctx context.Context) ([]sink.Report, error)
	Run(ctx context.Context, runID string) (sink.Report, error)
	Traces(ctx context.Context, runID string) ([]event.TraceEntry, error)
}

// RunsHandler serves stored run reports as JSON.
type RunsHandler struct {
	store RunStore
}

// NewRunsHandler creates a handler reading from store.
func NewRunsHandler(store RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// List handles GET /runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs(r.Context())
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summaries := make([]sink.Summary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, run.Summary())
	}
	writeJSON(w, summaries)
}

// Get handles GET /runs/{id}, including the run's traces.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.store.Run(r.Context(), id)
	if errors.Is(err, sink.ErrNotFound) {
		http.Error(w, fmt.Sprintf("run not found: %s", id), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("failed to load run", "run_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run.Traces, err = h.store.Traces(r.Context(), id); err != nil {
		slog.Error("failed to load traces", "run_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

// workflowsHandler lists the registered workflow names.
func workflowsHandler(registry *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string][]string{"workflows": registry.Names()})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthHandler returns a simple health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
