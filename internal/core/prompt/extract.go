// Package prompt recovers plain prompts from JSON-shaped text produced by
// upstream text nodes.
package prompt

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be found in the text.
var ErrNoJSON = errors.New("no JSON found in text")

// PromptKeys are checked in order when pulling a prompt out of an object.
var PromptKeys = []string{"generated_prompt", "prompt", "subject", "description"}

// Captures: ```language\ncontent\n```
var fencePattern = regexp.MustCompile("(?s)```(\\w+)?\\s*\\n?(.*?)```")

// ExtractJSON finds the first JSON value in text. Strategies are tried in
// order: the whole text, a fenced code block, the span from the first '{'
// to the last '}', then the span from the first '[' to the last ']'.
func ExtractJSON(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if v, ok := parse(trimmed); ok {
		return v, nil
	}
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		if v, ok := parse(strings.TrimSpace(m[2])); ok {
			return v, nil
		}
	}
	if v, ok := parse(span(trimmed, '{', '}')); ok {
		return v, nil
	}
	if v, ok := parse(span(trimmed, '[', ']')); ok {
		return v, nil
	}
	return nil, ErrNoJSON
}

func span(s string, open, close byte) string {
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, close)
	if i < 0 || j <= i {
		return ""
	}
	return s[i : j+1]
}

func parse(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// Extract returns the prompt carried by text. JSON objects are searched for
// the first non-empty string under one of PromptKeys; anything else falls
// back to the raw text.
func Extract(text string) string {
	v, err := ExtractJSON(text)
	if err != nil {
		return text
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return text
	}
	for _, key := range PromptKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return text
}

// Join combines several text inputs with a blank line between them.
func Join(texts []string) string {
	return strings.Join(texts, "\n\n")
}
