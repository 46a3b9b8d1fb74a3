package gemini

import "strings"

// Models maps the editor's image model names to Gemini model ids. Unknown
// names are sent as given.
var Models = map[string]string{
	"nano-banana":     "gemini-2.5-flash-image",
	"nano-banana-pro": "gemini-3-pro-image-preview",
}

// ResolveModel returns the Gemini model id for name.
func ResolveModel(name string) string {
	if id, ok := Models[name]; ok {
		return id
	}
	return name
}

// supportsImageSize reports whether a model accepts an output resolution.
func supportsImageSize(model string) bool {
	return strings.HasPrefix(model, "gemini-3-pro-image")
}

// APIRequest represents the request format for the Gemini API
type APIRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
}

// Content represents a content object in a Gemini request or response
type Content struct {
	Parts []Part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

// Part is one text or inline binary part
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 data with its MIME type
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerationConfig tunes the output
type GenerationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *ImageConfig `json:"imageConfig,omitempty"`
	Temperature        *float64     `json:"temperature,omitempty"`
	MaxOutputTokens    int          `json:"maxOutputTokens,omitempty"`
}

// ImageConfig sets the generated image shape
type ImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

// Tool enables a server-side tool
type Tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

// APIResponse represents the response from the Gemini API
type APIResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Candidate represents a candidate response
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// PromptFeedback represents feedback about the prompt
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// firstImage returns the first inline image of the first candidate, and any
// text the model returned alongside.
func (r *APIResponse) firstImage() (*InlineData, string) {
	if len(r.Candidates) == 0 {
		return nil, ""
	}
	var text []string
	for _, p := range r.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData, ""
		}
		if p.Text != "" {
			text = append(text, p.Text)
		}
	}
	return nil, strings.Join(text, "")
}

// text concatenates the text parts of the first candidate.
func (r *APIResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
