package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow/provider"
	"github.com/spetersoncode/stepflow/sink"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []sink.Report
}

func (s *recordingSink) Write(_ context.Context, r sink.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func testConfig() *Config {
	return &Config{MaxConcurrency: 2, LogLevel: "info"}
}

func echoGenerator() provider.Generator {
	return provider.GeneratorFunc(func(_ context.Context, req provider.Request) (*provider.Response, error) {
		return &provider.Response{
			Text:  "summary(" + strings.Fields(req.Prompt)[0] + ")",
			Usage: provider.Usage{InputTokens: 3, OutputTokens: 2},
		}, nil
	})
}

func TestWorkflowHandler(t *testing.T) {
	registry, err := SetupWorkflows(testConfig(), echoGenerator())
	require.NoError(t, err)

	post := func(t *testing.T, body string) (*httptest.ResponseRecorder, *recordingSink) {
		t.Helper()
		rec := &recordingSink{}
		h := NewWorkflowHandler(registry, rec, testConfig())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workflow", strings.NewReader(body)))
		return w, rec
	}

	t.Run("streams a successful run", func(t *testing.T) {
		w, rec := post(t, `{"thread_id":"t1","run_id":"r1","workflow_name":"word_stats","input":"one two\nthree"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.True(t, strings.HasPrefix(body, "event: RUN_STARTED\n"))
		assert.Contains(t, body, "event: STEP_STARTED\n")
		assert.Contains(t, body, "SplitLines")
		assert.Contains(t, body, "event: RUN_FINISHED\n")
		assert.NotContains(t, body, "RUN_ERROR")

		require.Len(t, rec.reports, 1)
		assert.Equal(t, "word_stats", rec.reports[0].Workflow)
		assert.Equal(t, "completed", rec.reports[0].Status())
	})

	t.Run("checkpoint finishes the run", func(t *testing.T) {
		text := strings.Repeat(strings.Repeat("word ", 600)+"\n\n", 2)
		gen := provider.GeneratorFunc(func(_ context.Context, req provider.Request) (*provider.Response, error) {
			return &provider.Response{Text: req.Prompt}, nil
		})
		reg, err := SetupWorkflows(testConfig(), gen)
		require.NoError(t, err)

		rec := &recordingSink{}
		w := httptest.NewRecorder()
		body := `{"workflow_name":"digest","input":{"text":"` + strings.ReplaceAll(text, "\n", `\n`) + `"}}`
		NewWorkflowHandler(reg, rec, testConfig()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workflow", strings.NewReader(body)))

		assert.Contains(t, w.Body.String(), "event: RUN_FINISHED\n")
		require.Len(t, rec.reports, 1)
		assert.Equal(t, "checkpoint", rec.reports[0].Status())
		assert.Equal(t, "Review", rec.reports[0].Checkpoint.StepName)
	})

	t.Run("failure streams run error", func(t *testing.T) {
		w, rec := post(t, `{"workflow_name":"digest","input":{"text":"  "}}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "event: RUN_ERROR\n")
		require.Len(t, rec.reports, 1)
		assert.Equal(t, "failed", rec.reports[0].Status())
	})

	t.Run("rejects bad requests", func(t *testing.T) {
		w, _ := post(t, `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = post(t, `{"input":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = post(t, `{"workflow_name":"missing"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)

		h := NewWorkflowHandler(registry, sink.Discard, testConfig())
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/workflow", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
	})
}

func TestSetupWorkflows(t *testing.T) {
	ctx := context.Background()

	t.Run("digest requires a generator", func(t *testing.T) {
		registry, err := SetupWorkflows(testConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"word_stats"}, registry.Names())
	})

	t.Run("word stats", func(t *testing.T) {
		registry, err := SetupWorkflows(testConfig(), nil)
		require.NoError(t, err)

		res, err := registry.Run(ctx, "word_stats", []byte(`"a b c\n\nd e"`))
		require.NoError(t, err)
		assert.Equal(t, WordStats{Lines: 2, Words: 5}, res.Output)
	})

	t.Run("digest summarizes each paragraph", func(t *testing.T) {
		registry, err := SetupWorkflows(testConfig(), echoGenerator())
		require.NoError(t, err)

		res, err := registry.Run(ctx, "digest", []byte(`{"text":"alpha one\n\nbeta two\n\ngamma three"}`))
		require.NoError(t, err)
		assert.Equal(t, "summary(alpha)\n\nsummary(beta)\n\nsummary(gamma)", res.Output)
		assert.Equal(t, 15, res.Metrics.TotalTokens)
	})

	t.Run("loads pipelines file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipelines.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
pipelines:
  shout_lines:
    stages:
      - split_lines
      - name: upper
        for_each: true
      - join
  summarize_long:
    stages:
      - trim
      - name: summarize
        checkpoint_if: long_text
`), 0o644))

		cfg := testConfig()
		cfg.PipelinesFile = path
		registry, err := SetupWorkflows(cfg, echoGenerator())
		require.NoError(t, err)
		assert.Equal(t, []string{"digest", "shout_lines", "summarize_long", "word_stats"}, registry.Names())

		res, err := registry.Run(ctx, "shout_lines", []byte(`"a\nb"`))
		require.NoError(t, err)
		assert.Equal(t, "A\n\nB", res.Output)
	})

	t.Run("unknown step in pipelines file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipelines.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipelines:\n  bad:\n    stages: [summarize]\n"), 0o644))

		cfg := testConfig()
		cfg.PipelinesFile = path
		_, err := SetupWorkflows(cfg, nil)
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "no provider", cfg: Config{MaxConcurrency: 1}},
		{name: "anthropic with key", cfg: Config{Provider: "anthropic", AnthropicKey: "k", MaxConcurrency: 1}},
		{name: "missing key", cfg: Config{Provider: "openai", MaxConcurrency: 1}, wantErr: "OPENAI_API_KEY"},
		{name: "unknown provider", cfg: Config{Provider: "acme", MaxConcurrency: 1}, wantErr: "unknown provider"},
		{name: "bad concurrency", cfg: Config{}, wantErr: "STEPFLOW_MAX_CONCURRENCY"},
		{name: "unknown sink", cfg: Config{MaxConcurrency: 1, Sinks: []string{"ftp"}}, wantErr: "unknown sink"},
		{name: "postgres without dsn", cfg: Config{MaxConcurrency: 1, Sinks: []string{"postgres"}}, wantErr: "STEPFLOW_POSTGRES_DSN"},
		{name: "kafka without brokers", cfg: Config{MaxConcurrency: 1, Sinks: []string{"kafka"}}, wantErr: "STEPFLOW_KAFKA_BROKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STEPFLOW_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("STEPFLOW_SINKS", "sqlite, redis")
	t.Setenv("STEPFLOW_MAX_CONCURRENCY", "8")
	t.Setenv("STEPFLOW_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.APIKey())
	assert.Equal(t, []string{"sqlite", "redis"}, cfg.Sinks)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestOpenSinks(t *testing.T) {
	cfg := testConfig()
	cfg.Sinks = []string{"sqlite"}
	cfg.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

	sinks, err := openSinks(context.Background(), cfg)
	require.NoError(t, err)
	defer sinks.Close()
	require.NotNil(t, sinks.Store)

	registry, err := SetupWorkflows(cfg, nil)
	require.NoError(t, err)
	res, err := registry.Run(context.Background(), "word_stats", []byte(`"x y"`))
	require.NoError(t, err)
	exportResult(context.Background(), sinks, res)

	stored, err := sinks.Store.Run(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "word_stats", stored.Workflow)
}
