package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/core/imaging"
	"github.com/ttmouse/node-banana/internal/core/prompt"
)

// DefaultLLMPrompt is sent when a text node only has images connected.
const DefaultLLMPrompt = "Identify this image"

// Processor executes a single node: it resolves the node's inputs, calls the
// matching backend and writes results back through the store.
// PRINCIPLES:
// - SRP: One node at a time; ordering and halting belong to the Scheduler
// - OCP: One handler per node type
type Processor struct {
	store   GraphStore
	images  ImageGenerator
	texts   TextGenerator
	outputs OutputSink
	logger  *zap.Logger
	now     func() time.Time
}

// NewProcessor creates a processor. Nil backends make the matching node
// types fail with dto.ErrBackendUnavailable; a nil sink disables saving.
func NewProcessor(store GraphStore, images ImageGenerator, texts TextGenerator, outputs OutputSink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:   store,
		images:  images,
		texts:   texts,
		outputs: outputs,
		logger:  logger,
		now:     time.Now,
	}
}

// Process runs one node. With regenerate set, generation nodes fall back to
// their stored inputs when nothing is connected. Failures are recorded on
// the node and returned as *dto.NodeError.
func (p *Processor) Process(ctx context.Context, nodeID string, regenerate bool) error {
	n := p.store.Node(nodeID)
	if n == nil {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}
	var in Inputs
	p.store.Read(func(g *graph.Graph) { in = ResolveInputs(g, nodeID) })

	switch d := n.Data.(type) {
	case graph.AnnotationData:
		return p.annotation(nodeID, d, in)
	case graph.GenerateImageData:
		return p.generateImage(ctx, nodeID, d, in, regenerate)
	case graph.LLMGenerateData:
		return p.generateText(ctx, nodeID, d, in, regenerate)
	case graph.SplitGridData:
		return p.splitGrid(ctx, nodeID, d, in)
	case graph.OutputData:
		return p.output(nodeID, in)
	}
	// imageInput and prompt hold user data only.
	return nil
}

func (p *Processor) annotation(id string, d graph.AnnotationData, in Inputs) error {
	if len(in.Images) == 0 {
		return nil
	}
	patch := graph.AnnotationPatch{SourceImage: &in.Images[0]}
	if d.OutputImage == "" {
		patch.OutputImage = &in.Images[0]
	}
	return p.store.UpdateNodeData(id, patch)
}

func (p *Processor) output(id string, in Inputs) error {
	if len(in.Images) == 0 {
		return nil
	}
	return p.store.UpdateNodeData(id, graph.OutputPatch{Image: &in.Images[0]})
}

func (p *Processor) generateImage(ctx context.Context, id string, d graph.GenerateImageData, in Inputs, regenerate bool) error {
	images := in.Images
	if len(images) == 0 && regenerate {
		images = d.InputImages
	}
	var text string
	if len(in.Texts) > 0 {
		extracted := make([]string, len(in.Texts))
		for i, t := range in.Texts {
			extracted[i] = prompt.Extract(t)
		}
		text = prompt.Join(extracted)
	} else if regenerate {
		text = d.InputPrompt
	}
	if text == "" {
		return p.fail(id, dto.NewValidationError(id, dto.ErrMissingTextInput, "Missing text input"))
	}
	if p.images == nil {
		return p.fail(id, dto.NewBackendError(id, dto.ErrBackendUnavailable, "Image generation backend is not configured"))
	}

	if err := p.store.UpdateNodeData(id, graph.GenerateImagePatch{
		StatePatch:  graph.SetStatus(graph.StatusLoading, ""),
		InputImages: &images,
		InputPrompt: &text,
	}); err != nil {
		return err
	}

	resp, err := p.images.GenerateImage(ctx, &dto.ImageRequest{
		Images:          images,
		Prompt:          text,
		AspectRatio:     d.AspectRatio,
		Resolution:      d.Resolution,
		Model:           d.Model,
		UseGoogleSearch: d.UseGoogleSearch,
	})
	if nodeErr := backendFailure(id, err, resp != nil && resp.Success, responseError(resp)); nodeErr != nil {
		return p.fail(id, nodeErr)
	}
	if resp.Image == "" {
		return p.fail(id, dto.NewBackendError(id, nil, "No image in response"))
	}

	// Push onto the latest history, not the one seen before the call.
	current, ok := p.currentData(id).(graph.GenerateImageData)
	if !ok {
		current = d
	}
	current = current.PushHistory(graph.HistoryImage{
		ID:          uuid.NewString(),
		Image:       resp.Image,
		Prompt:      text,
		AspectRatio: d.AspectRatio,
		Model:       d.Model,
		Timestamp:   p.now().UnixMilli(),
	})
	if err := p.store.UpdateNodeData(id, graph.GenerateImagePatch{
		StatePatch:   graph.SetStatus(graph.StatusComplete, ""),
		OutputImage:  &resp.Image,
		ImageHistory: &current.ImageHistory,
	}); err != nil {
		return err
	}
	if p.outputs != nil {
		p.outputs.SaveOutput(ctx, id, resp.Image)
	}
	return nil
}

func (p *Processor) generateText(ctx context.Context, id string, d graph.LLMGenerateData, in Inputs, regenerate bool) error {
	images := in.Images
	if len(images) == 0 && regenerate {
		images = d.InputImages
	}
	text := prompt.Join(in.Texts)
	if text == "" && regenerate {
		text = d.InputPrompt
	}
	if text == "" && len(images) > 0 {
		text = DefaultLLMPrompt
	}
	if text == "" {
		return p.fail(id, dto.NewValidationError(id, dto.ErrMissingTextInput, "Missing text input"))
	}
	if p.texts == nil {
		return p.fail(id, dto.NewBackendError(id, dto.ErrBackendUnavailable, "Text generation backend is not configured"))
	}

	if err := p.store.UpdateNodeData(id, graph.LLMGeneratePatch{
		StatePatch:  graph.SetStatus(graph.StatusLoading, ""),
		InputPrompt: &text,
		InputImages: &images,
	}); err != nil {
		return err
	}

	resp, err := p.texts.GenerateText(ctx, &dto.TextRequest{
		Prompt:      text,
		Images:      images,
		Provider:    d.Provider,
		Model:       d.Model,
		Temperature: d.Temperature,
		MaxTokens:   d.MaxTokens,
	})
	msg := ""
	if resp != nil {
		msg = resp.Error
	}
	if nodeErr := backendFailure(id, err, resp != nil && resp.Success, msg); nodeErr != nil {
		return p.fail(id, nodeErr)
	}
	return p.store.UpdateNodeData(id, graph.LLMGeneratePatch{
		StatePatch: graph.SetStatus(graph.StatusComplete, ""),
		OutputText: &resp.Text,
	})
}

func (p *Processor) splitGrid(ctx context.Context, id string, d graph.SplitGridData, in Inputs) error {
	src := d.SourceImage
	if len(in.Images) > 0 {
		src = in.Images[0]
	}
	if src == "" {
		return p.fail(id, dto.NewValidationError(id, dto.ErrMissingImageInput, "Missing source image"))
	}
	if !d.IsConfigured || len(d.ChildNodes) != d.GridRows*d.GridCols {
		return p.fail(id, dto.NewValidationError(id, dto.ErrSplitNotConfigured, "Split grid is not configured"))
	}

	if err := p.store.UpdateNodeData(id, graph.SplitGridPatch{
		StatePatch:  graph.SetStatus(graph.StatusLoading, ""),
		SourceImage: &src,
	}); err != nil {
		return err
	}

	tiles, err := imaging.SplitGrid(ctx, src, d.GridRows, d.GridCols)
	if err != nil {
		return p.fail(id, dto.NewValidationError(id, err, fmt.Sprintf("Could not split image: %v", err)))
	}
	for i, tile := range tiles {
		child := d.ChildNodes[i].ImageInputID
		err := p.store.UpdateNodeData(child, graph.ImageInputPatch{
			StatePatch: graph.SetStatus(graph.StatusIdle, ""),
			Image:      graph.Ptr(tile.DataURL),
			ImageName:  graph.Ptr(fmt.Sprintf("tile-%d-%d.png", tile.Row+1, tile.Col+1)),
			Dimensions: &graph.Dimensions{Width: tile.Width, Height: tile.Height},
		})
		if errors.Is(err, graph.ErrNodeNotFound) {
			p.logger.Warn("split grid child missing", zap.String("node_id", id), zap.String("child_id", child))
			continue
		}
		if err != nil {
			return err
		}
	}
	return p.store.UpdateNodeData(id, graph.SetStatus(graph.StatusComplete, ""))
}

// fail records err on the node and returns it.
func (p *Processor) fail(id string, err *dto.NodeError) error {
	if uerr := p.store.UpdateNodeData(id, graph.SetStatus(graph.StatusError, err.Message)); uerr != nil {
		p.logger.Warn("could not record node error", zap.String("node_id", id), zap.Error(uerr))
	}
	return err
}

func (p *Processor) currentData(id string) graph.NodeData {
	if n := p.store.Node(id); n != nil {
		return n.Data
	}
	return nil
}

func responseError(resp *dto.ImageResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Error
}

// backendFailure maps a backend call outcome to a node error, or nil on
// success.
func backendFailure(id string, err error, success bool, msg string) *dto.NodeError {
	switch {
	case err != nil:
		return dto.NewBackendError(id, err, err.Error())
	case !success:
		if msg == "" {
			msg = "Generation failed"
		}
		return dto.NewBackendError(id, nil, msg)
	}
	return nil
}
