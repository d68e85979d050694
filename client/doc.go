// Package client constructs [provider.Generator] backends by name.
//
// # Basic Usage
//
//	gen, err := client.New(ctx, client.Config{
//	    Provider: provider.Anthropic,
//	    APIKey:   os.Getenv("ANTHROPIC_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summarize := workflow.NewGenerate("Summarize", gen, func(doc string) provider.Request {
//	    return provider.Request{Prompt: "Summarize:\n" + doc}
//	})
package client
