package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/config"
	"github.com/spetersoncode/stepflow/provider"
	"github.com/spetersoncode/stepflow/workflow"
)

// longDigestChars is the digest length above which a human review is requested.
const longDigestChars = 2000

// DigestInput is the input of the digest workflow.
type DigestInput struct {
	Text string `json:"text"`
}

// WordStats is the output of the word_stats workflow.
type WordStats struct {
	Lines int `json:"lines"`
	Words int `json:"words"`
}

// newStepRegistry returns the steps and predicates available to pipeline
// files. The summarize step exists only when gen is non-nil.
func newStepRegistry(gen provider.Generator) *config.Registry {
	reg := config.NewRegistry()

	config.Register(reg, "trim", workflow.NewFunc("trim", func(_ context.Context, s string) (string, error) {
		return strings.TrimSpace(s), nil
	}))
	config.Register(reg, "upper", workflow.NewFunc("upper", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	}))
	config.Register(reg, "lower", workflow.NewFunc("lower", func(_ context.Context, s string) (string, error) {
		return strings.ToLower(s), nil
	}))
	config.Register(reg, "split_lines", splitLines())
	config.Register(reg, "split_paragraphs", splitParagraphs())
	config.Register(reg, "word_count", wordCount())
	config.Register(reg, "sum", workflow.NewReduce("sum", sum))
	config.Register(reg, "join", workflow.NewReduce("join", joinParagraphs))

	if gen != nil {
		config.Register(reg, "summarize", summarize(gen, 0))
	}

	reg.RegisterPredicate("long_text", func(v any) bool {
		s, ok := v.(string)
		return ok && len(s) > longDigestChars
	})
	reg.RegisterPredicate("empty", func(v any) bool {
		switch x := v.(type) {
		case nil:
			return true
		case string:
			return strings.TrimSpace(x) == ""
		case []any:
			return len(x) == 0
		}
		return false
	})

	return reg
}

// SetupWorkflows creates the workflow registry served by the command:
// the built-in workflows plus those declared in the pipelines file.
func SetupWorkflows(cfg *Config, gen provider.Generator, opts ...workflow.Option) (*workflow.Registry, error) {
	registry := workflow.NewRegistry()

	registry.Register(workflow.NewRunner(createWordStatsWorkflow(cfg), opts...))
	if gen != nil {
		registry.Register(workflow.NewRunner(createDigestWorkflow(cfg, gen), opts...))
	}

	if cfg.PipelinesFile != "" {
		multi, err := config.LoadFile(cfg.PipelinesFile)
		if err != nil {
			return nil, err
		}
		steps := newStepRegistry(gen)
		buildOpts := append([]workflow.Option{workflow.WithMaxConcurrency(cfg.MaxConcurrency)}, opts...)
		if err := config.RegisterAll(registry, steps, multi, buildOpts...); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// createWordStatsWorkflow counts lines and words without calling a model.
func createWordStatsWorkflow(cfg *Config) *workflow.Workflow[string, WordStats] {
	counts := workflow.NewParallelMap(workflow.Instrument(wordCount(), "CountWords"),
		workflow.WithMaxConcurrency(cfg.MaxConcurrency))
	stats := workflow.NewReduce("stats", func(words []int) WordStats {
		return WordStats{Lines: len(words), Words: sum(words)}
	})
	return workflow.New(workflow.Then(workflow.Instrument(splitLines(), "SplitLines"),
		workflow.Then(counts, stats)), workflow.WithName("word_stats"))
}

// createDigestWorkflow summarizes each paragraph concurrently, joins the
// summaries and pauses for review when the digest is long.
func createDigestWorkflow(cfg *Config, gen provider.Generator) *workflow.Workflow[DigestInput, string] {
	split := workflow.NewFunc("split", func(_ context.Context, in DigestInput) ([]string, error) {
		if strings.TrimSpace(in.Text) == "" {
			return nil, stepflow.NewValidationError("text is required")
		}
		return paragraphs(in.Text), nil
	})

	summaries := workflow.NewParallelMap(workflow.Instrument(summarize(gen, 80), "Summarize"),
		workflow.WithMaxConcurrency(cfg.MaxConcurrency))
	join := workflow.NewReduce("join", joinParagraphs)
	review := workflow.NewConditionalCheckpoint("Review", func(s string) bool { return len(s) > longDigestChars })

	pipeline := workflow.Then(workflow.Instrument(split, "Split"),
		workflow.Then(summaries, workflow.Then(join, review)))
	return workflow.New(pipeline, workflow.WithName("digest"))
}

func summarize(gen provider.Generator, maxWords int) workflow.Step[string, string] {
	return workflow.NewGenerate("summarize", gen, func(text string) provider.Request {
		system := "Summarize the user's text in one short paragraph. Reply with the summary only."
		if maxWords > 0 {
			system = fmt.Sprintf("Summarize the user's text in at most %d words. Reply with the summary only.", maxWords)
		}
		return provider.Request{System: system, Prompt: text, MaxTokens: 512}
	})
}

func splitLines() workflow.Step[string, []string] {
	return workflow.NewFunc("split_lines", func(_ context.Context, s string) ([]string, error) {
		var lines []string
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		return lines, nil
	})
}

func splitParagraphs() workflow.Step[string, []string] {
	return workflow.NewFunc("split_paragraphs", func(_ context.Context, s string) ([]string, error) {
		return paragraphs(s), nil
	})
}

func wordCount() workflow.Step[string, int] {
	return workflow.NewFunc("word_count", func(_ context.Context, s string) (int, error) {
		return len(strings.Fields(s)), nil
	})
}

// paragraphs splits text on blank lines, dropping empty paragraphs.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinParagraphs(parts []string) string {
	return strings.Join(parts, "\n\n")
}

func sum(ns []int) int {
	total := 0
	for _, n := range ns {
		total += n
	}
	return total
}
