package graph

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Status is the generation status carried by every node payload.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// MaxImageHistory bounds the per-node list of generated images.
const MaxImageHistory = 20

// Defaults applied to new generation nodes.
const (
	DefaultAspectRatio = "1:1"
	DefaultResolution  = "1K"
	DefaultImageModel  = "nano-banana"
	DefaultLLMProvider = "google"
	DefaultLLMModel    = "gemini-2.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 8192
	DefaultGridSize    = 2
)

// RunState is the status block embedded in every payload.
type RunState struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// State returns the run state.
func (r RunState) State() RunState { return r }

// ImageFields holds the binary image values of one payload, keyed by field
// name. Single-valued fields use a one-element slice.
type ImageFields map[string][]string

// Empty reports whether no field carries an image.
func (f ImageFields) Empty() bool {
	for _, v := range f {
		for _, s := range v {
			if s != "" {
				return false
			}
		}
	}
	return true
}

// NodeData is the closed set of per-type node payloads.
// PRINCIPLES:
// - Tagged union: the concrete type is fixed by Type()
// - Value semantics: implementations are plain structs copied on write
type NodeData interface {
	Type() NodeType
	State() RunState
	Clone() NodeData
	// ImageFields returns the binary fields worth caching, or nil.
	ImageFields() ImageFields
	// WithImageFields returns a copy with the given fields restored.
	WithImageFields(ImageFields) NodeData
	// WithoutImageFields returns a copy with binary fields stripped.
	WithoutImageFields() NodeData
	withState(RunState) NodeData
}

// Dimensions are pixel dimensions of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// HistoryImage is one entry of a generation node's image history.
type HistoryImage struct {
	ID          string `json:"id"`
	Image       string `json:"image,omitempty"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	Model       string `json:"model"`
	Timestamp   int64  `json:"timestamp"`
}

// ImageInputData is the payload of an imageInput node.
type ImageInputData struct {
	RunState
	Image      string      `json:"image,omitempty"`
	ImageName  string      `json:"imageName,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// AnnotationData is the payload of an annotation node.
type AnnotationData struct {
	RunState
	SourceImage string          `json:"sourceImage,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
	OutputImage string          `json:"outputImage,omitempty"`
}

// PromptData is the payload of a prompt node.
type PromptData struct {
	RunState
	Prompt string `json:"prompt"`
}

// GenerateImageData is the payload of a nanoBanana node.
type GenerateImageData struct {
	RunState
	InputImages     []string       `json:"inputImages,omitempty"`
	InputPrompt     string         `json:"inputPrompt,omitempty"`
	OutputImage     string         `json:"outputImage,omitempty"`
	AspectRatio     string         `json:"aspectRatio"`
	Resolution      string         `json:"resolution"`
	Model           string         `json:"model"`
	UseGoogleSearch bool           `json:"useGoogleSearch"`
	ImageHistory    []HistoryImage `json:"imageHistory,omitempty"`
}

// LLMGenerateData is the payload of an llmGenerate node.
type LLMGenerateData struct {
	RunState
	InputPrompt string   `json:"inputPrompt,omitempty"`
	InputImages []string `json:"inputImages,omitempty"`
	OutputText  string   `json:"outputText,omitempty"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"maxTokens"`
}

// SplitGridChild references the nodes generated for one grid tile.
type SplitGridChild struct {
	ImageInputID string `json:"imageInputId"`
	PromptID     string `json:"promptId"`
	GenerateID   string `json:"nanoBananaId"`
}

// SplitGridData is the payload of a splitGrid node.
type SplitGridData struct {
	RunState
	SourceImage  string           `json:"sourceImage,omitempty"`
	GridRows     int              `json:"gridRows"`
	GridCols     int              `json:"gridCols"`
	IsConfigured bool             `json:"isConfigured"`
	GroupID      string           `json:"childGroupId,omitempty"`
	ChildNodes   []SplitGridChild `json:"childNodeIds,omitempty"`
}

// OutputData is the payload of an output node.
type OutputData struct {
	RunState
	Image string `json:"image,omitempty"`
}

// NewData returns the default payload for a node type.
func NewData(t NodeType) (NodeData, error) {
	idle := RunState{Status: StatusIdle}
	switch t {
	case NodeTypeImageInput:
		return ImageInputData{RunState: idle}, nil
	case NodeTypeAnnotation:
		return AnnotationData{RunState: idle}, nil
	case NodeTypePrompt:
		return PromptData{RunState: idle}, nil
	case NodeTypeNanoBanana:
		return GenerateImageData{
			RunState:    idle,
			AspectRatio: DefaultAspectRatio,
			Resolution:  DefaultResolution,
			Model:       DefaultImageModel,
		}, nil
	case NodeTypeLLMGenerate:
		return LLMGenerateData{
			RunState:    idle,
			Provider:    DefaultLLMProvider,
			Model:       DefaultLLMModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		}, nil
	case NodeTypeSplitGrid:
		return SplitGridData{RunState: idle, GridRows: DefaultGridSize, GridCols: DefaultGridSize}, nil
	case NodeTypeOutput:
		return OutputData{RunState: idle}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNodeType, t)
}

// WithState returns a copy of data with its run state replaced.
func WithState(data NodeData, s RunState) NodeData {
	return data.withState(s)
}

func single(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func first(f ImageFields, key string, fallback string) string {
	v, ok := f[key]
	if !ok {
		return fallback
	}
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func nonEmpty(f ImageFields) ImageFields {
	if f.Empty() {
		return nil
	}
	return f
}

// --- imageInput ---

func (d ImageInputData) Type() NodeType { return NodeTypeImageInput }

func (d ImageInputData) Clone() NodeData {
	if d.Dimensions != nil {
		dim := *d.Dimensions
		d.Dimensions = &dim
	}
	return d
}

func (d ImageInputData) ImageFields() ImageFields {
	return nonEmpty(ImageFields{"image": single(d.Image)})
}

func (d ImageInputData) WithImageFields(f ImageFields) NodeData {
	c := d.Clone().(ImageInputData)
	c.Image = first(f, "image", c.Image)
	return c
}

func (d ImageInputData) WithoutImageFields() NodeData {
	c := d.Clone().(ImageInputData)
	c.Image = ""
	return c
}

func (d ImageInputData) withState(s RunState) NodeData { d.RunState = s; return d.Clone() }

// --- annotation ---

func (d AnnotationData) Type() NodeType { return NodeTypeAnnotation }

func (d AnnotationData) Clone() NodeData {
	d.Annotations = slices.Clone(d.Annotations)
	return d
}

func (d AnnotationData) ImageFields() ImageFields {
	return nonEmpty(ImageFields{
		"sourceImage": single(d.SourceImage),
		"outputImage": single(d.OutputImage),
	})
}

func (d AnnotationData) WithImageFields(f ImageFields) NodeData {
	c := d.Clone().(AnnotationData)
	c.SourceImage = first(f, "sourceImage", c.SourceImage)
	c.OutputImage = first(f, "outputImage", c.OutputImage)
	return c
}

func (d AnnotationData) WithoutImageFields() NodeData {
	c := d.Clone().(AnnotationData)
	c.SourceImage, c.OutputImage = "", ""
	return c
}

func (d AnnotationData) withState(s RunState) NodeData { d.RunState = s; return d.Clone() }

// --- prompt ---

func (d PromptData) Type() NodeType                       { return NodeTypePrompt }
func (d PromptData) Clone() NodeData                      { return d }
func (d PromptData) ImageFields() ImageFields             { return nil }
func (d PromptData) WithImageFields(ImageFields) NodeData { return d }
func (d PromptData) WithoutImageFields() NodeData         { return d }
func (d PromptData) withState(s RunState) NodeData        { d.RunState = s; return d }

// --- nanoBanana ---

func (d GenerateImageData) Type() NodeType { return NodeTypeNanoBanana }

func (d GenerateImageData) Clone() NodeData {
	d.InputImages = slices.Clone(d.InputImages)
	d.ImageHistory = slices.Clone(d.ImageHistory)
	return d
}

// ImageFields stores history images by position under "imageHistory".
func (d GenerateImageData) ImageFields() ImageFields {
	var history []string
	for _, h := range d.ImageHistory {
		history = append(history, h.Image)
	}
	return nonEmpty(ImageFields{
		"inputImages":  slices.Clone(d.InputImages),
		"outputImage":  single(d.OutputImage),
		"imageHistory": history,
	})
}

func (d GenerateImageData) WithImageFields(f ImageFields) NodeData {
	c := d.Clone().(GenerateImageData)
	if v, ok := f["inputImages"]; ok {
		c.InputImages = slices.Clone(v)
	}
	c.OutputImage = first(f, "outputImage", c.OutputImage)
	if v, ok := f["imageHistory"]; ok {
		for i := range c.ImageHistory {
			if i < len(v) {
				c.ImageHistory[i].Image = v[i]
			}
		}
	}
	return c
}

func (d GenerateImageData) WithoutImageFields() NodeData {
	c := d.Clone().(GenerateImageData)
	c.InputImages = nil
	c.OutputImage = ""
	for i := range c.ImageHistory {
		c.ImageHistory[i].Image = ""
	}
	return c
}

func (d GenerateImageData) withState(s RunState) NodeData { d.RunState = s; return d.Clone() }

// PushHistory prepends an entry, keeping at most MaxImageHistory.
func (d GenerateImageData) PushHistory(h HistoryImage) GenerateImageData {
	c := d.Clone().(GenerateImageData)
	c.ImageHistory = append([]HistoryImage{h}, c.ImageHistory...)
	if len(c.ImageHistory) > MaxImageHistory {
		c.ImageHistory = c.ImageHistory[:MaxImageHistory]
	}
	return c
}

// --- llmGenerate ---

func (d LLMGenerateData) Type() NodeType { return NodeTypeLLMGenerate }

func (d LLMGenerateData) Clone() NodeData {
	d.InputImages = slices.Clone(d.InputImages)
	return d
}

func (d LLMGenerateData) ImageFields() ImageFields {
	return nonEmpty(ImageFields{"inputImages": slices.Clone(d.InputImages)})
}

func (d LLMGenerateData) WithImageFields(f ImageFields) NodeData {
	c := d.Clone().(LLMGenerateData)
	if v, ok := f["inputImages"]; ok {
		c.InputImages = slices.Clone(v)
	}
	return c
}

func (d LLMGenerateData) WithoutImageFields() NodeData {
	c := d.Clone().(LLMGenerateData)
	c.InputImages = nil
	return c
}

func (d LLMGenerateData) withState(s RunState) NodeData { d.RunState = s; return d.Clone() }

// --- splitGrid ---

func (d SplitGridData) Type() NodeType { return NodeTypeSplitGrid }

func (d SplitGridData) Clone() NodeData {
	d.ChildNodes = slices.Clone(d.ChildNodes)
	return d
}

func (d SplitGridData) ImageFields() ImageFields {
	return nonEmpty(ImageFields{"sourceImage": single(d.SourceImage)})
}

func (d SplitGridData) WithImageFields(f ImageFields) NodeData {
	c := d.Clone().(SplitGridData)
	c.SourceImage = first(f, "sourceImage", c.SourceImage)
	return c
}

func (d SplitGridData) WithoutImageFields() NodeData {
	c := d.Clone().(SplitGridData)
	c.SourceImage = ""
	return c
}

func (d SplitGridData) withState(s RunState) NodeData { d.RunState = s; return d.Clone() }

// Unconfigured returns a copy with the child cluster references cleared.
func (d SplitGridData) Unconfigured() SplitGridData {
	c := d.Clone().(SplitGridData)
	c.IsConfigured = false
	c.ChildNodes = nil
	c.GroupID = ""
	return c
}

// --- output ---

func (d OutputData) Type() NodeType  { return NodeTypeOutput }
func (d OutputData) Clone() NodeData { return d }

func (d OutputData) ImageFields() ImageFields {
	return nonEmpty(ImageFields{"image": single(d.Image)})
}

func (d OutputData) WithImageFields(f ImageFields) NodeData {
	d.Image = first(f, "image", d.Image)
	return d
}

func (d OutputData) WithoutImageFields() NodeData {
	d.Image = ""
	return d
}

func (d OutputData) withState(s RunState) NodeData { d.RunState = s; return d }
