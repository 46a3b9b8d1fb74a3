package dto

// ImageRequest asks a backend to generate an image.
type ImageRequest struct {
	Images          []string `json:"images,omitempty"`
	Prompt          string   `json:"prompt" validate:"required"`
	AspectRatio     string   `json:"aspectRatio,omitempty"`
	Resolution      string   `json:"resolution,omitempty"`
	Model           string   `json:"model" validate:"required"`
	UseGoogleSearch bool     `json:"useGoogleSearch,omitempty"`
}

// ImageResponse is the terminal result of an image request.
type ImageResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TextRequest asks a backend to generate text.
type TextRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Images      []string `json:"images,omitempty"`
	Provider    string   `json:"provider" validate:"required"`
	Model       string   `json:"model" validate:"required"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"maxTokens"`
}

// TextResponse is the terminal result of a text request.
type TextResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}
