package usecases

import (
	"context"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/graph"
)

// GraphStore is the slice of the store the scheduler needs. Execution only
// ever changes node data and run state, never structure.
// PRINCIPLES:
// - ISP: Reads plus the two kinds of write the scheduler performs
// - DIP: Implemented by services.Store, faked in tests
type GraphStore interface {
	Read(fn func(g *graph.Graph))
	Node(id string) *graph.Node
	UpdateNodeData(id string, patch graph.Patch) error

	BeginRun() error
	EndRun(pausedAt string)
	SetCurrentNode(id string)
	StopRun()
	IsRunning() bool
}

// ImageGenerator produces images. A non-nil error is a transport failure;
// a response with Success false is a failure reported by the service.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *dto.ImageRequest) (*dto.ImageResponse, error)
}

// TextGenerator produces text with the same failure contract as
// ImageGenerator.
type TextGenerator interface {
	GenerateText(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error)
}

// OutputSink receives generated images for best-effort saving.
type OutputSink interface {
	SaveOutput(ctx context.Context, nodeID, image string)
}
