// Package openai generates text through the OpenAI chat completions API
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/adapters/backend"
	"github.com/ttmouse/node-banana/internal/app/dto"
)

// Client wraps the OpenAI client for llmGenerate nodes
type Client struct {
	client *openai.Client
	apiKey string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewClient creates a client. An empty baseURL keeps the library default.
func NewClient(logger *zap.Logger, apiKey, baseURL string, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		logger: logger,
		tracer: otel.Tracer("node-banana/openai"),
	}
}

// GenerateText implements usecases.TextGenerator.
func (c *Client) GenerateText(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	ctx, span := c.tracer.Start(ctx, "openai.GenerateText", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Int("images", len(req.Images)),
	))
	defer span.End()

	if c.apiKey == "" {
		return &dto.TextResponse{Error: backend.ErrNoAPIKey.Error()}, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []openai.ChatCompletionMessage{userMessage(req.Prompt, req.Images)},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("OpenAI request failed", zap.String("model", req.Model), zap.Error(err))
		return &dto.TextResponse{Error: describe(err)}, nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return &dto.TextResponse{Error: "No text in response"}, nil
	}
	c.logger.Debug("OpenAI request completed",
		zap.String("model", req.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return &dto.TextResponse{Success: true, Text: resp.Choices[0].Message.Content}, nil
}

// userMessage sends images as data URL parts after the prompt.
func userMessage(prompt string, images []string) openai.ChatCompletionMessage {
	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	}
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

func describe(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return backend.MsgRateLimited
		}
		return fmt.Sprintf("API error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return backend.MsgRateLimited
		}
		return backend.DescribeHTTPError(reqErr.HTTPStatusCode, []byte(reqErr.Err.Error()))
	}
	return backend.DescribeTransportError(err)
}
