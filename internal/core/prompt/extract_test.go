package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    any
		wantErr bool
	}{
		{name: "direct object", text: `{"a":1}`, want: map[string]any{"a": 1.0}},
		{name: "fenced json", text: "here:\n```json\n{\"a\":2}\n```\nthanks", want: map[string]any{"a": 2.0}},
		{name: "fenced without language", text: "```\n[1,2]\n```", want: []any{1.0, 2.0}},
		{name: "braces in prose", text: `The answer is {"a":3} as requested.`, want: map[string]any{"a": 3.0}},
		{name: "brackets in prose", text: `values: [4] end`, want: []any{4.0}},
		{name: "plain text", text: "draw a cat", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"fenced generated prompt", "```json\n{\"generated_prompt\":\"a dog\"}\n```", "a dog"},
		{"key priority", `{"description":"d","prompt":"p"}`, "p"},
		{"subject fallback", `{"subject":"a fox"}`, "a fox"},
		{"no known key", `{"other":"x"}`, `{"other":"x"}`},
		{"empty value skipped", `{"generated_prompt":"  ","prompt":"real"}`, "real"},
		{"array falls back", `["a"]`, `["a"]`},
		{"raw text", "draw a cat", "draw a cat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\nb", Join([]string{"a", "b"}))
	assert.Equal(t, "", Join(nil))
}
