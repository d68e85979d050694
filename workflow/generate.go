package workflow

import (
	"context"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/provider"
)

// PromptFunc builds a generation request from a step input.
type PromptFunc[I any] func(input I) provider.Request

// Generate calls a generator with a prompt built from its input and returns
// the generated text. Token usage is recorded on the execution context and
// emitted as a "usage" artifact.
type Generate[I any] struct {
	name   string
	gen    provider.Generator
	prompt PromptFunc[I]
}

// NewGenerate creates a generation step.
func NewGenerate[I any](name string, gen provider.Generator, prompt PromptFunc[I]) *Generate[I] {
	if name == "" {
		name = "Generate"
	}
	return &Generate[I]{name: name, gen: gen, prompt: prompt}
}

// Name returns the step name.
func (g *Generate[I]) Name() string { return g.name }

// Run executes the generation call.
func (g *Generate[I]) Run(ctx context.Context, ec *stepflow.ExecutionContext, input I) (string, error) {
	resp, err := g.gen.Generate(ctx, g.prompt(input))
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", stepflow.NewExecutionError("generator "+g.name+" returned no response", nil)
	}
	ec.RecordTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	ec.EmitArtifact(g.name, "usage", resp.Usage)
	return resp.Text, nil
}
