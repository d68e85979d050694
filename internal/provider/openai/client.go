// Package openai implements [provider.Generator] on the OpenAI Chat
// Completions API using the official OpenAI Go SDK.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/provider"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gpt-4o-mini"

// Client wraps the OpenAI SDK to implement provider.Generator.
type Client struct {
	client *openai.Client
	model  string
}

// ClientOption configures the OpenAI client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model      string
	baseURL    string
	maxRetries int
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithBaseURL points the client at a different API endpoint, such as an
// OpenAI-compatible gateway.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithMaxRetries sets the SDK's retry count. The default is 0.
func WithMaxRetries(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	cfg := clientConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(reqOpts...)
	return &Client{client: &client, model: cfg.model}
}

// Generate sends a single-turn chat completion and returns the response.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, stepflow.NewExecutionError("openai returned no choices", nil)
	}

	choice := resp.Choices[0]
	return &provider.Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Model:        resp.Model,
		Usage: provider.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return provider.WrapStatus(provider.OpenAI, apiErr.StatusCode, provider.ParseRetryAfter(apiErr.Response), err)
	}
	return provider.Wrap(provider.OpenAI, err)
}

var _ provider.Generator = (*Client)(nil)
