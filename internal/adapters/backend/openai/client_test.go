package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/adapters/backend"
	"github.com/ttmouse/node-banana/internal/app/dto"
)

func TestGenerateText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"a ripe banana"},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := NewClient(nil, "sk-test", srv.URL+"/v1", 0)
	resp, err := c.GenerateText(context.Background(), &dto.TextRequest{
		Prompt:      "what is this",
		Images:      []string{"data:image/png;base64,AAAA"},
		Provider:    backend.ProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0.5,
		MaxTokens:   100,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "a ripe banana", resp.Text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	content, ok := messages[0].(map[string]any)["content"].([]any)
	require.True(t, ok, "images are sent as content parts")
	assert.Len(t, content, 2)
}

func TestGenerateText_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, "API error (401): Incorrect API key"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`, backend.MsgRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(nil, "sk-test", srv.URL+"/v1", 0)
			resp, err := c.GenerateText(context.Background(), &dto.TextRequest{Prompt: "x", Provider: "openai", Model: "gpt-4o-mini"})
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		c := NewClient(nil, "", "", 0)
		resp, err := c.GenerateText(context.Background(), &dto.TextRequest{Prompt: "x", Model: "gpt-4o-mini"})
		require.NoError(t, err)
		assert.Equal(t, backend.ErrNoAPIKey.Error(), resp.Error)
	})
}
