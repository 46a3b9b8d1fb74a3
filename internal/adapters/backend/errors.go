// Package backend holds what the generation clients share: error messages,
// the circuit breaker and text provider routing.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrNoAPIKey        = errors.New("backend API key is not configured")
	ErrUnknownProvider = errors.New("unknown text provider")
)

// maxRawErrorLen bounds raw response text copied into a node error.
const maxRawErrorLen = 200

// Messages shown instead of low-level failures.
const (
	MsgRateLimited = "Rate limit exceeded. Please wait a moment and try again."
	MsgNetwork     = "Network error: could not reach the generation service."
	MsgTimeout     = "The generation request timed out."
	MsgUnavailable = "Generation service is temporarily unavailable after repeated failures."
)

// DescribeHTTPError turns a failed response into a user-facing message. A
// structured JSON error body wins; otherwise the raw text is truncated.
func DescribeHTTPError(status int, body []byte) string {
	if status == http.StatusTooManyRequests {
		if msg := structuredMessage(body); msg != "" {
			return MsgRateLimited + " (" + msg + ")"
		}
		return MsgRateLimited
	}
	if msg := structuredMessage(body); msg != "" {
		return fmt.Sprintf("API error (%d): %s", status, msg)
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return fmt.Sprintf("API error (%d): %s", status, http.StatusText(status))
	}
	return fmt.Sprintf("API error (%d): %s", status, truncate(raw, maxRawErrorLen))
}

// DescribeTransportError turns a failure to get any response into a
// user-facing message.
func DescribeTransportError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	case errors.Is(err, context.Canceled):
		return "The generation request was cancelled."
	case errors.As(err, &netErr) && netErr.Timeout():
		return MsgTimeout
	case errors.As(err, &netErr):
		return MsgNetwork
	}
	return truncate(err.Error(), maxRawErrorLen)
}

// structuredMessage extracts the message from the error bodies generation
// services return: {"error":{"message":..}}, {"error":".."} or {"message":".."}.
func structuredMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	return envelope.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
