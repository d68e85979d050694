package anthropic

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
	t.Run("sends prompt and reads usage", func(t *testing.T) {
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
			data, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(data, &body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"model": "claude-test",
				"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " world"}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 12, "output_tokens": 4}
			}`)
		}))
		defer srv.Close()

		c := New("test-key", WithBaseURL(srv.URL), WithModel("claude-test"))
		temp := 0.2
		resp, err := c.Generate(context.Background(), provider.Request{
			System:      "be brief",
			Prompt:      "hi",
			MaxTokens:   64,
			Temperature: &temp,
		})
		require.NoError(t, err)

		assert.Equal(t, "Hello world", resp.Text)
		assert.Equal(t, "end_turn", resp.FinishReason)
		assert.Equal(t, provider.Usage{InputTokens: 12, OutputTokens: 4}, resp.Usage)

		assert.Equal(t, "claude-test", body["model"])
		assert.Equal(t, float64(64), body["max_tokens"])
		assert.Equal(t, 0.2, body["temperature"])
	})

	t.Run("maps api errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`)
		}))
		defer srv.Close()

		c := New("bad", WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), provider.Request{Prompt: "hi"})
		require.Error(t, err)

		assert.True(t, stepflow.IsExecution(err))
		assert.Equal(t, http.StatusUnauthorized, provider.StatusCode(err))
		assert.False(t, provider.IsTransient(err))
	})
}
