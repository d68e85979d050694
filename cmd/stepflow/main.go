// Command stepflow runs stepflow workflows from the command line, over
// AG-UI server-sent events, or as an MCP server.
//
// Usage:
//
//	stepflow serve                          # HTTP server with AG-UI streaming
//	stepflow run -workflow digest -input '{"text":"..."}'
//	stepflow mcp                            # MCP server over stdio
//	stepflow list                           # registered workflows
//	stepflow runs [run_id]                  # stored runs (sqlite, postgres or mongo sink)
//
// Configuration is read from the environment (and a .env file if present):
//
//	STEPFLOW_PROVIDER   anthropic, openai or google; enables the digest workflow
//	STEPFLOW_MODEL      model override
//	STEPFLOW_PIPELINES  YAML file of additional pipelines
//	STEPFLOW_SINKS      comma-separated exporters: sqlite, postgres, mongo, kafka, redis, s3
//	STEPFLOW_PORT       HTTP port (default 8000)
//	STEPFLOW_LOG_LEVEL  debug, info, warn or error
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/client"
	"github.com/spetersoncode/stepflow/mcp"
	"github.com/spetersoncode/stepflow/provider"
	"github.com/spetersoncode/stepflow/sink"
	"github.com/spetersoncode/stepflow/workflow"
)

const usage = `usage: stepflow <command> [flags]

commands:
  serve   serve workflows over HTTP with AG-UI streaming
  run     run one workflow and print the result
  mcp     serve workflows as MCP tools over stdio
  list    list registered workflows
  runs    list stored runs, or show one run
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays clean for results and MCP.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if !stepflow.IsCheckpoint(err) {
			slog.Error("command failed", "command", os.Args[1], "error", err)
			os.Exit(1)
		}
		os.Exit(3)
	}
}

// run dispatches a subcommand.
func run(ctx context.Context, cfg *Config, command string, args []string, stdout io.Writer) error {
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	registry, err := SetupWorkflows(cfg, gen, workflow.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	switch command {
	case "serve":
		return serve(ctx, cfg, registry, sinks)
	case "run":
		return runOnce(ctx, registry, sinks, args, stdout)
	case "mcp":
		return mcp.ServeStdio(registry,
			mcp.WithName("stepflow"),
			mcp.WithVersion("1.0.0"),
			mcp.WithDescription("word_stats", "Count the lines and words of a text"),
			mcp.WithDescription("digest", "Summarize each paragraph of a text and join the summaries"),
			mcp.WithResultHook(func(ctx context.Context, res *workflow.RunResult) {
				exportResult(ctx, sinks, res)
			}),
		)
	case "list":
		for _, name := range registry.Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case "runs":
		return showRuns(ctx, sinks.Store, args, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

// newGenerator creates the configured LLM backend, or nil when no provider is set.
func newGenerator(ctx context.Context, cfg *Config) (provider.Generator, error) {
	if cfg.Provider == "" {
		slog.Info("no provider configured, LLM workflows disabled")
		return nil, nil
	}
	gen, err := client.New(ctx, client.Config{
		Provider:   provider.Name(cfg.Provider),
		APIKey:     cfg.APIKey(),
		Model:      cfg.Model,
		MaxRetries: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	slog.Info("provider configured", "provider", cfg.Provider, "model", cfg.Model)
	return gen, nil
}

func serve(ctx context.Context, cfg *Config, registry *workflow.Registry, sinks *sinkSet) error {
	mux := http.NewServeMux()
	mux.Handle("/workflow", corsMiddleware(NewWorkflowHandler(registry, sinks, cfg)))
	mux.Handle("GET /workflows", corsMiddleware(workflowsHandler(registry)))
	mux.HandleFunc("/health", healthHandler)
	if sinks.Store != nil {
		runs := NewRunsHandler(sinks.Store)
		mux.HandleFunc("GET /runs", runs.List)
		mux.HandleFunc("GET /runs/{id}", runs.Get)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "workflows", registry.Names())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runOnce(ctx context.Context, registry *workflow.Registry, sinks *sinkSet, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	name := fs.String("workflow", "", "workflow to run")
	input := fs.String("input", "", "workflow input as JSON")
	inputFile := fs.String("input-file", "", "read workflow input from a file (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("run: -workflow is required")
	}

	raw := json.RawMessage(*input)
	if *inputFile != "" {
		var (
			data []byte
			err  error
		)
		if *inputFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(*inputFile)
		}
		if err != nil {
			return fmt.Errorf("run: reading input: %w", err)
		}
		raw = data
	}

	res, err := registry.Run(ctx, *name, raw)
	exportResult(ctx, sinks, res)
	if res != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
	}
	return err
}

func showRuns(ctx context.Context, store RunStore, args []string, stdout io.Writer) error {
	if store == nil {
		return errors.New("runs: requires a sqlite, postgres or mongo sink")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if len(args) == 0 {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		summaries := make([]sink.Summary, 0, len(runs))
		for _, r := range runs {
			summaries = append(summaries, r.Summary())
		}
		return enc.Encode(summaries)
	}

	report, err := store.Run(ctx, args[0])
	if err != nil {
		return err
	}
	if report.Traces, err = store.Traces(ctx, args[0]); err != nil {
		return err
	}
	return enc.Encode(report)
}
