package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow/internal/provider/anthropic"
	"github.com/spetersoncode/stepflow/internal/provider/google"
	"github.com/spetersoncode/stepflow/internal/provider/openai"
	"github.com/spetersoncode/stepflow/provider"
)

func TestErrMissingAPIKey(t *testing.T) {
	err := &ErrMissingAPIKey{Provider: provider.OpenAI}
	assert.Equal(t, "no API key configured for openai", err.Error())
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("selects backend by name", func(t *testing.T) {
		tests := []struct {
			name     provider.Name
			expected any
		}{
			{provider.Anthropic, &anthropic.Client{}},
			{provider.OpenAI, &openai.Client{}},
			{provider.Google, &google.Client{}},
		}
		for _, tt := range tests {
			t.Run(string(tt.name), func(t *testing.T) {
				gen, err := New(ctx, Config{Provider: tt.name, APIKey: "k"})
				require.NoError(t, err)
				assert.IsType(t, tt.expected, gen)
			})
		}
	})

	t.Run("requires api key", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: provider.Anthropic})
		var missing *ErrMissingAPIKey
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, provider.Anthropic, missing.Provider)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "mistral", APIKey: "k"})
		var unknown *ErrUnknownProvider
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("passes base url and model through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"id": "c", "object": "chat.completion", "created": 1, "model": "gpt-x",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
			}`)
		}))
		defer srv.Close()

		gen, err := New(ctx, Config{Provider: provider.OpenAI, APIKey: "k", Model: "gpt-x", BaseURL: srv.URL})
		require.NoError(t, err)
		resp, err := gen.Generate(ctx, provider.Request{Prompt: "ping"})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text)
	})
}
