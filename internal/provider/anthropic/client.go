package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spetersoncode/stepflow/provider"
)

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// Client wraps the Anthropic SDK to implement provider.Generator.
type Client struct {
	client *anthropic.Client
	model  string
}

// ClientOption configures the Anthropic client.
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

// WithBaseURL points the client at a different API endpoint.
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

// New creates a new Anthropic client with the given API key.
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
	client := anthropic.NewClient(reqOpts...)
	return &Client{client: &client, model: cfg.model}
}

// Generate sends a single-turn message and returns the complete response.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &provider.Response{
		Text:         text.String(),
		FinishReason: string(resp.StopReason),
		Model:        string(resp.Model),
		Usage: provider.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return provider.WrapStatus(provider.Anthropic, apiErr.StatusCode, provider.ParseRetryAfter(apiErr.Response), err)
	}
	return provider.Wrap(provider.Anthropic, err)
}

var _ provider.Generator = (*Client)(nil)
