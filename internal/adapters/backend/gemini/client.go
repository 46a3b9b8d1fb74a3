// Package gemini generates images and text through the Gemini REST API
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/adapters/backend"
	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/imaging"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// maxResponseBytes bounds a response body; generated images are inline.
const maxResponseBytes = 64 << 20

// Client calls generateContent for image and text generation.
type Client struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL and a
// zero timeout leaves requests bounded only by their context.
func NewClient(logger *zap.Logger, apiKey, baseURL string, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		logger:  logger,
		tracer:  otel.Tracer("node-banana/gemini"),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GenerateImage implements usecases.ImageGenerator.
func (c *Client) GenerateImage(ctx context.Context, req *dto.ImageRequest) (*dto.ImageResponse, error) {
	model := ResolveModel(req.Model)
	ctx, span := c.tracer.Start(ctx, "gemini.GenerateImage", trace.WithAttributes(
		attribute.String("model", model),
		attribute.Int("images", len(req.Images)),
	))
	defer span.End()

	parts, err := buildParts(req.Prompt, req.Images)
	if err != nil {
		span.RecordError(err)
		return &dto.ImageResponse{Error: err.Error()}, nil
	}
	imageConfig := &ImageConfig{AspectRatio: req.AspectRatio}
	if supportsImageSize(model) {
		imageConfig.ImageSize = req.Resolution
	}
	body := APIRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        imageConfig,
		},
	}
	if req.UseGoogleSearch {
		body.Tools = []Tool{{GoogleSearch: &struct{}{}}}
	}

	resp, msg, err := c.generate(ctx, model, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if msg != "" {
		return &dto.ImageResponse{Error: msg}, nil
	}
	img, text := resp.firstImage()
	if img == nil {
		if text != "" {
			return &dto.ImageResponse{Error: "No image in response: " + text}, nil
		}
		return &dto.ImageResponse{Error: "No image in response"}, nil
	}
	return &dto.ImageResponse{
		Success: true,
		Image:   "data:" + img.MimeType + ";base64," + img.Data,
	}, nil
}

// GenerateText implements usecases.TextGenerator.
func (c *Client) GenerateText(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gemini.GenerateText", trace.WithAttributes(
		attribute.String("model", req.Model),
	))
	defer span.End()

	parts, err := buildParts(req.Prompt, req.Images)
	if err != nil {
		span.RecordError(err)
		return &dto.TextResponse{Error: err.Error()}, nil
	}
	temperature := req.Temperature
	body := APIRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: &GenerationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	resp, msg, err := c.generate(ctx, req.Model, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if msg != "" {
		return &dto.TextResponse{Error: msg}, nil
	}
	text := resp.text()
	if text == "" {
		return &dto.TextResponse{Error: "No text in response"}, nil
	}
	return &dto.TextResponse{Success: true, Text: text}, nil
}

// generate posts one generateContent request. Failures the user should see
// come back as msg; err is reserved for requests that could not be built.
func (c *Client) generate(ctx context.Context, model string, body APIRequest) (*APIResponse, string, error) {
	logger := c.logger.With(zap.String("model", model))
	if c.apiKey == "" {
		return nil, backend.ErrNoAPIKey.Error(), nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	logger.Debug("sending request to Gemini API", zap.Int("bytes", len(payload)))
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.Warn("Gemini request failed", zap.Error(err))
		return nil, backend.DescribeTransportError(err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Warn("failed to read Gemini response", zap.Error(err))
		return nil, backend.DescribeTransportError(err), nil
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn("Gemini API returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))
		return nil, backend.DescribeHTTPError(resp.StatusCode, raw), nil
	}

	var out APIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn("failed to unmarshal Gemini response", zap.Error(err))
		return nil, "Invalid response from Gemini API", nil
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, "Prompt was blocked: " + out.PromptFeedback.BlockReason, nil
	}
	logger.Debug("Gemini request completed", zap.Duration("duration", time.Since(start)))
	return &out, "", nil
}

// buildParts puts the prompt first, then each image as inline data.
func buildParts(prompt string, images []string) ([]Part, error) {
	parts := make([]Part, 0, len(images)+1)
	parts = append(parts, Part{Text: prompt})
	for i, img := range images {
		meta, data, ok := strings.Cut(strings.TrimPrefix(img, "data:"), ",")
		mime, isBase64 := strings.CutSuffix(meta, ";base64")
		if !strings.HasPrefix(img, "data:") || !ok || !isBase64 {
			return nil, fmt.Errorf("input image %d: %w", i+1, imaging.ErrInvalidDataURL)
		}
		parts = append(parts, Part{InlineData: &InlineData{MimeType: mime, Data: data}})
	}
	return parts, nil
}
