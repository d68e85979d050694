// Package google implements [provider.Generator] on the Gemini API using
// the Google GenAI SDK.
package google

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/provider"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gemini-2.5-flash"

// Client wraps the Google GenAI SDK to implement provider.Generator.
type Client struct {
	client *genai.Client
	model  string
}

// ClientOption configures the Google client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model   string
	baseURL string
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, provider.Wrap(provider.Google, err)
	}
	return &Client{client: client, model: cfg.model}, nil
}

// Generate sends a single-turn request and returns the response.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, stepflow.NewExecutionError("google returned no candidates", nil)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				text.WriteString(part.Text)
			}
		}
	}

	out := &provider.Response{
		Text:         text.String(),
		FinishReason: string(candidate.FinishReason),
		Model:        model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Google's APIError does not expose headers, so no Retry-After is available.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.WrapStatus(provider.Google, apiErr.Code, 0, err)
	}
	return provider.Wrap(provider.Google, err)
}

var _ provider.Generator = (*Client)(nil)
