package usecases

import "github.com/ttmouse/node-banana/internal/core/graph"

// Inputs are the values flowing into a node over its incoming edges.
type Inputs struct {
	Images []string
	Texts  []string
}

// ResolveInputs collects the image and text values connected to nodeID, in
// edge insertion order. Reference edges carry nothing and empty values are
// skipped.
func ResolveInputs(g *graph.Graph, nodeID string) Inputs {
	var in Inputs
	for _, e := range g.IncomingEdges(nodeID) {
		src := g.Node(e.Source)
		if src == nil {
			continue
		}
		switch e.TargetHandle {
		case graph.HandleImage:
			if v := imageOutput(src.Data); v != "" {
				in.Images = append(in.Images, v)
			}
		case graph.HandleText:
			if v := textOutput(src.Data); v != "" {
				in.Texts = append(in.Texts, v)
			}
		}
	}
	return in
}

func imageOutput(data graph.NodeData) string {
	switch d := data.(type) {
	case graph.ImageInputData:
		return d.Image
	case graph.AnnotationData:
		if d.OutputImage != "" {
			return d.OutputImage
		}
		return d.SourceImage
	case graph.GenerateImageData:
		return d.OutputImage
	}
	return ""
}

func textOutput(data graph.NodeData) string {
	switch d := data.(type) {
	case graph.PromptData:
		return d.Prompt
	case graph.LLMGenerateData:
		return d.OutputText
	}
	return ""
}
