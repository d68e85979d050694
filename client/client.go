package client

import (
	"context"
	"fmt"

	"github.com/spetersoncode/stepflow/internal/provider/anthropic"
	"github.com/spetersoncode/stepflow/internal/provider/google"
	"github.com/spetersoncode/stepflow/internal/provider/openai"
	"github.com/spetersoncode/stepflow/provider"
)

// Config selects and configures a generation backend.
type Config struct {
	// Provider names the backend.
	Provider provider.Name

	// APIKey authenticates with the backend.
	APIKey string

	// Model overrides the backend's default model.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// MaxRetries sets the SDK retry count where supported (0 = no retries).
	MaxRetries int
}

// ErrMissingAPIKey is returned when no API key is configured for the provider.
type ErrMissingAPIKey struct {
	Provider provider.Name
}

func (e *ErrMissingAPIKey) Error() string {
	return fmt.Sprintf("no API key configured for %s", e.Provider)
}

// ErrUnknownProvider is returned for an unsupported provider name.
type ErrUnknownProvider struct {
	Provider provider.Name
}

func (e *ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider %q (want anthropic, openai or google)", e.Provider)
}

// New creates a generator for the configured backend.
func New(ctx context.Context, cfg Config) (provider.Generator, error) {
	switch cfg.Provider {
	case provider.Anthropic, provider.OpenAI, provider.Google:
	default:
		return nil, &ErrUnknownProvider{Provider: cfg.Provider}
	}
	if cfg.APIKey == "" {
		return nil, &ErrMissingAPIKey{Provider: cfg.Provider}
	}

	switch cfg.Provider {
	case provider.Anthropic:
		opts := []anthropic.ClientOption{anthropic.WithMaxRetries(cfg.MaxRetries)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(cfg.APIKey, opts...), nil

	case provider.OpenAI:
		opts := []openai.ClientOption{openai.WithMaxRetries(cfg.MaxRetries)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, opts...), nil

	default:
		var opts []google.ClientOption
		if cfg.Model != "" {
			opts = append(opts, google.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.BaseURL))
		}
		return google.New(ctx, cfg.APIKey, opts...)
	}
}
