package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/provider"
)

func TestGenerate(t *testing.T) {
	t.Run("sends system and user messages", func(t *testing.T) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
			data, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(data, &body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"created": 1,
				"model": "gpt-test",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Paris"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 9, "completion_tokens": 1, "total_tokens": 10}
			}`)
		}))
		defer srv.Close()

		c := New("test-key", WithBaseURL(srv.URL))
		resp, err := c.Generate(context.Background(), provider.Request{
			Model:  "gpt-test",
			System: "answer in one word",
			Prompt: "Capital of France?",
		})
		require.NoError(t, err)

		assert.Equal(t, "Paris", resp.Text)
		assert.Equal(t, "stop", resp.FinishReason)
		assert.Equal(t, "gpt-test", resp.Model)
		assert.Equal(t, 10, resp.Usage.Total())

		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "Capital of France?", body.Messages[1].Content)
	})

	t.Run("no choices is an execution error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[],"usage":{}}`)
		}))
		defer srv.Close()

		_, err := New("k", WithBaseURL(srv.URL)).Generate(context.Background(), provider.Request{Prompt: "hi"})
		assert.True(t, stepflow.IsExecution(err))
	})

	t.Run("rate limit is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
		}))
		defer srv.Close()

		_, err := New("k", WithBaseURL(srv.URL)).Generate(context.Background(), provider.Request{Prompt: "hi"})
		require.Error(t, err)
		assert.True(t, provider.IsTransient(err))
		assert.Equal(t, http.StatusTooManyRequests, provider.StatusCode(err))
	})
}
