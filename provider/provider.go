// Package provider defines the contract between generation steps and the
// LLM backends they call.
//
// Concrete backends for Anthropic, OpenAI and Google live in internal
// packages; use [github.com/spetersoncode/stepflow/client] to construct one.
package provider

import "context"

// Name identifies a generation backend.
type Name string

const (
	Anthropic Name = "anthropic"
	OpenAI    Name = "openai"
	Google    Name = "google"
)

// Usage reports the tokens consumed by one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Request is a single-turn generation request.
type Request struct {
	// Model overrides the backend's default model when non-empty.
	Model string

	// System is an optional system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens caps the response length; 0 uses the backend default.
	MaxTokens int

	// Temperature is optional.
	Temperature *float64
}

// Response is the result of a generation call.
type Response struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
