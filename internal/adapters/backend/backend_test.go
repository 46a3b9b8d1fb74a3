package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
)

func TestDescribeHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"nested json", 400, `{"error":{"message":"bad prompt"}}`, "API error (400): bad prompt"},
		{"flat json", 500, `{"error":"boom"}`, "API error (500): boom"},
		{"message json", 403, `{"message":"forbidden here"}`, "API error (403): forbidden here"},
		{"raw text", 502, "gateway down", "API error (502): gateway down"},
		{"empty body", 503, "", "API error (503): Service Unavailable"},
		{"rate limit", 429, "", MsgRateLimited},
		{"rate limit with detail", 429, `{"error":{"message":"quota"}}`, MsgRateLimited + " (quota)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeHTTPError(tt.status, []byte(tt.body)))
		})
	}

	t.Run("long raw text is truncated", func(t *testing.T) {
		msg := DescribeHTTPError(500, []byte(strings.Repeat("x", 1000)))
		assert.True(t, strings.HasSuffix(msg, "..."))
		assert.Less(t, len(msg), 250)
	})
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDescribeTransportError(t *testing.T) {
	assert.Equal(t, MsgTimeout, DescribeTransportError(fmt.Errorf("do: %w", context.DeadlineExceeded)))
	assert.Equal(t, MsgTimeout, DescribeTransportError(timeoutErr{}))
	assert.Equal(t, MsgNetwork, DescribeTransportError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.Equal(t, "odd", DescribeTransportError(errors.New("odd")))
}

type stubImages struct {
	calls int
	resp  *dto.ImageResponse
	err   error
}

func (s *stubImages) GenerateImage(context.Context, *dto.ImageRequest) (*dto.ImageResponse, error) {
	s.calls++
	return s.resp, s.err
}

type stubTexts struct {
	calls int
	text  string
}

func (s *stubTexts) GenerateText(_ context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	s.calls++
	return &dto.TextResponse{Success: true, Text: s.text + req.Prompt}, nil
}

func TestBreaker(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewCollector("test")
	images := &stubImages{resp: &dto.ImageResponse{Error: "API error (500): boom"}}
	cfg := DefaultBreakerConfig("gemini")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	b := NewBreaker(cfg, images, nil, nil, m)

	// Failed responses pass through unchanged while they count.
	for i := 0; i < 2; i++ {
		resp, err := b.GenerateImage(ctx, &dto.ImageRequest{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "API error (500): boom", resp.Error)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	resp, err := b.GenerateImage(ctx, &dto.ImageRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, MsgUnavailable, resp.Error)
	assert.Equal(t, 2, images.calls, "open breaker does not reach the client")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("gemini", "image", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("gemini")))

	_, err = b.GenerateText(ctx, &dto.TextRequest{Prompt: "x"})
	assert.ErrorIs(t, err, dto.ErrBackendUnavailable)
}

func TestBreaker_TransportErrorsPassThrough(t *testing.T) {
	images := &stubImages{err: errors.New("transport")}
	b := NewBreaker(DefaultBreakerConfig("gemini"), images, nil, nil, nil)
	_, err := b.GenerateImage(context.Background(), &dto.ImageRequest{Prompt: "x"})
	assert.EqualError(t, err, "transport")
}

func TestTextRouter(t *testing.T) {
	ctx := context.Background()
	google := &stubTexts{text: "g:"}
	oai := &stubTexts{text: "o:"}
	r := NewTextRouter().Register(ProviderGoogle, google).Register("OpenAI", oai).Register("none", nil)

	assert.Equal(t, []string{"google", "openai"}, r.Providers())
	assert.False(t, r.Empty())

	resp, err := r.GenerateText(ctx, &dto.TextRequest{Provider: "openai", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "o:hi", resp.Text)

	resp, err = r.GenerateText(ctx, &dto.TextRequest{Provider: "google", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "g:hi", resp.Text)

	_, err = r.GenerateText(ctx, &dto.TextRequest{Provider: "anthropic", Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.True(t, NewTextRouter().Empty())
}
