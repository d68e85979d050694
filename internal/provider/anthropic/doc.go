// Package anthropic implements [provider.Generator] on the Anthropic
// Messages API using the official Anthropic Go SDK.
//
// # Basic Usage
//
//	gen := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), anthropic.WithModel("claude-haiku-4-5"))
//	resp, err := gen.Generate(ctx, provider.Request{Prompt: "Summarize this text."})
package anthropic
