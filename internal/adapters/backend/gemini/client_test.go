package gemini

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

type recorded struct {
	path   string
	apiKey string
	body   APIRequest
}

func newServer(t *testing.T, status int, reply any) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.apiKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rec.body))
		w.WriteHeader(status)
		switch v := reply.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		default:
			_ = json.NewEncoder(w).Encode(v)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestGenerateImage(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, APIResponse{Candidates: []Candidate{{
		Content: Content{Parts: []Part{
			{Text: "here you go"},
			{InlineData: &InlineData{MimeType: "image/png", Data: "QUJD"}},
		}},
	}}})
	c := NewClient(nil, "key", srv.URL, 0)

	resp, err := c.GenerateImage(context.Background(), &dto.ImageRequest{
		Prompt:          "a banana",
		Images:          []string{"data:image/jpeg;base64,/9j/"},
		AspectRatio:     "16:9",
		Resolution:      "2K",
		Model:           "nano-banana-pro",
		UseGoogleSearch: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "data:image/png;base64,QUJD", resp.Image)

	assert.Equal(t, "/models/gemini-3-pro-image-preview:generateContent", rec.path)
	assert.Equal(t, "key", rec.apiKey)
	require.Len(t, rec.body.Contents, 1)
	parts := rec.body.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "a banana", parts[0].Text)
	assert.Equal(t, &InlineData{MimeType: "image/jpeg", Data: "/9j/"}, parts[1].InlineData)
	assert.Equal(t, &ImageConfig{AspectRatio: "16:9", ImageSize: "2K"}, rec.body.GenerationConfig.ImageConfig)
	assert.Len(t, rec.body.Tools, 1)
}

func TestGenerateImage_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  any
		want   string
	}{
		{
			name:   "structured error",
			status: http.StatusBadRequest,
			reply:  `{"error":{"code":400,"message":"API key not valid"}}`,
			want:   "API error (400): API key not valid",
		},
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			reply:  "slow down",
			want:   backend.MsgRateLimited,
		},
		{
			name:   "raw text",
			status: http.StatusBadGateway,
			reply:  "upstream exploded",
			want:   "API error (502): upstream exploded",
		},
		{
			name:   "no image",
			status: http.StatusOK,
			reply:  APIResponse{Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: "I cannot"}}}}}},
			want:   "No image in response: I cannot",
		},
		{
			name:   "blocked",
			status: http.StatusOK,
			reply:  APIResponse{PromptFeedback: &PromptFeedback{BlockReason: "SAFETY"}},
			want:   "Prompt was blocked: SAFETY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newServer(t, tt.status, tt.reply)
			c := NewClient(nil, "key", srv.URL, 0)
			resp, err := c.GenerateImage(context.Background(), &dto.ImageRequest{Prompt: "x", Model: "nano-banana"})
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
			assert.Equal(t, "/models/gemini-2.5-flash-image:generateContent", rec.path)
			assert.Empty(t, rec.body.GenerationConfig.ImageConfig.ImageSize)
		})
	}
}

func TestGenerateImage_NoRequestSent(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c := NewClient(nil, "", "http://127.0.0.1:1", 0)
		resp, err := c.GenerateImage(context.Background(), &dto.ImageRequest{Prompt: "x", Model: "nano-banana"})
		require.NoError(t, err)
		assert.Equal(t, backend.ErrNoAPIKey.Error(), resp.Error)
	})
	t.Run("bad input image", func(t *testing.T) {
		c := NewClient(nil, "key", "http://127.0.0.1:1", 0)
		resp, err := c.GenerateImage(context.Background(), &dto.ImageRequest{
			Prompt: "x", Model: "nano-banana", Images: []string{"https://example.com/cat.png"},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Error, "input image 1")
	})
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := NewClient(nil, "key", url, 0)
		resp, err := c.GenerateImage(context.Background(), &dto.ImageRequest{Prompt: "x", Model: "nano-banana"})
		require.NoError(t, err)
		assert.Equal(t, backend.MsgNetwork, resp.Error)
	})
}

func TestGenerateText(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, APIResponse{Candidates: []Candidate{{
		Content: Content{Parts: []Part{{Text: "a yellow "}, {Text: "fruit"}}},
	}}})
	c := NewClient(nil, "key", srv.URL, 0)

	resp, err := c.GenerateText(context.Background(), &dto.TextRequest{
		Prompt: "describe", Provider: "google", Model: "gemini-2.5-flash", Temperature: 0.2, MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "a yellow fruit", resp.Text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", rec.path)
	require.NotNil(t, rec.body.GenerationConfig.Temperature)
	assert.InDelta(t, 0.2, *rec.body.GenerationConfig.Temperature, 1e-9)
	assert.Equal(t, 64, rec.body.GenerationConfig.MaxOutputTokens)
}
