package graph

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Patch is a partial update merged into one payload variant.
// Each variant has its own patch type so only fields valid for a node type
// can be merged into it.
type Patch interface {
	// NodeType is the variant the patch applies to, or "" for any.
	NodeType() NodeType
	apply(NodeData) NodeData
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }

// ApplyPatch merges p into data. Nil fields are left untouched.
func ApplyPatch(data NodeData, p Patch) (NodeData, error) {
	if data == nil {
		return nil, ErrInvalidNodeType
	}
	if t := p.NodeType(); t != "" && t != data.Type() {
		return nil, fmt.Errorf("%w: %s patch on %s node", ErrPatchTypeMismatch, t, data.Type())
	}
	return p.apply(data.Clone()), nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// StatePatch updates the run state of any node type.
type StatePatch struct {
	Status *Status
	Error  *string
}

func (StatePatch) NodeType() NodeType { return "" }

func (p StatePatch) apply(d NodeData) NodeData {
	s := d.State()
	set(&s.Status, p.Status)
	set(&s.Error, p.Error)
	return d.withState(s)
}

// ImageInputPatch updates an imageInput payload.
type ImageInputPatch struct {
	StatePatch
	Image      *string
	ImageName  *string
	Dimensions *Dimensions
}

func (ImageInputPatch) NodeType() NodeType { return NodeTypeImageInput }

func (p ImageInputPatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(ImageInputData)
	set(&v.Image, p.Image)
	set(&v.ImageName, p.ImageName)
	if p.Dimensions != nil {
		dim := *p.Dimensions
		v.Dimensions = &dim
	}
	return v
}

// AnnotationPatch updates an annotation payload.
type AnnotationPatch struct {
	StatePatch
	SourceImage *string
	Annotations json.RawMessage
	OutputImage *string
}

func (AnnotationPatch) NodeType() NodeType { return NodeTypeAnnotation }

func (p AnnotationPatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(AnnotationData)
	set(&v.SourceImage, p.SourceImage)
	set(&v.OutputImage, p.OutputImage)
	if p.Annotations != nil {
		v.Annotations = slices.Clone(p.Annotations)
	}
	return v
}

// PromptPatch updates a prompt payload.
type PromptPatch struct {
	StatePatch
	Prompt *string
}

func (PromptPatch) NodeType() NodeType { return NodeTypePrompt }

func (p PromptPatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(PromptData)
	set(&v.Prompt, p.Prompt)
	return v
}

// GenerateImagePatch updates a nanoBanana payload.
type GenerateImagePatch struct {
	StatePatch
	InputImages     *[]string
	InputPrompt     *string
	OutputImage     *string
	AspectRatio     *string
	Resolution      *string
	Model           *string
	UseGoogleSearch *bool
	ImageHistory    *[]HistoryImage
}

func (GenerateImagePatch) NodeType() NodeType { return NodeTypeNanoBanana }

func (p GenerateImagePatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(GenerateImageData)
	if p.InputImages != nil {
		v.InputImages = slices.Clone(*p.InputImages)
	}
	set(&v.InputPrompt, p.InputPrompt)
	set(&v.OutputImage, p.OutputImage)
	set(&v.AspectRatio, p.AspectRatio)
	set(&v.Resolution, p.Resolution)
	set(&v.Model, p.Model)
	set(&v.UseGoogleSearch, p.UseGoogleSearch)
	if p.ImageHistory != nil {
		v.ImageHistory = slices.Clone(*p.ImageHistory)
	}
	return v
}

// LLMGeneratePatch updates an llmGenerate payload.
type LLMGeneratePatch struct {
	StatePatch
	InputPrompt *string
	InputImages *[]string
	OutputText  *string
	Provider    *string
	Model       *string
	Temperature *float64
	MaxTokens   *int
}

func (LLMGeneratePatch) NodeType() NodeType { return NodeTypeLLMGenerate }

func (p LLMGeneratePatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(LLMGenerateData)
	set(&v.InputPrompt, p.InputPrompt)
	if p.InputImages != nil {
		v.InputImages = slices.Clone(*p.InputImages)
	}
	set(&v.OutputText, p.OutputText)
	set(&v.Provider, p.Provider)
	set(&v.Model, p.Model)
	set(&v.Temperature, p.Temperature)
	set(&v.MaxTokens, p.MaxTokens)
	return v
}

// SplitGridPatch updates a splitGrid payload.
type SplitGridPatch struct {
	StatePatch
	SourceImage  *string
	GridRows     *int
	GridCols     *int
	IsConfigured *bool
	GroupID      *string
	ChildNodes   *[]SplitGridChild
}

func (SplitGridPatch) NodeType() NodeType { return NodeTypeSplitGrid }

func (p SplitGridPatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(SplitGridData)
	set(&v.SourceImage, p.SourceImage)
	set(&v.GridRows, p.GridRows)
	set(&v.GridCols, p.GridCols)
	set(&v.IsConfigured, p.IsConfigured)
	set(&v.GroupID, p.GroupID)
	if p.ChildNodes != nil {
		v.ChildNodes = slices.Clone(*p.ChildNodes)
	}
	return v
}

// OutputPatch updates an output payload.
type OutputPatch struct {
	StatePatch
	Image *string
}

func (OutputPatch) NodeType() NodeType { return NodeTypeOutput }

func (p OutputPatch) apply(d NodeData) NodeData {
	v := p.StatePatch.apply(d).(OutputData)
	set(&v.Image, p.Image)
	return v
}

// SetStatus is shorthand for a patch that only changes the run state.
func SetStatus(status Status, msg string) StatePatch {
	return StatePatch{Status: &status, Error: &msg}
}
