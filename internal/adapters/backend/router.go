package backend

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/app/usecases"
)

// Text providers.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// TextRouter sends each text request to the client registered for its
// provider.
type TextRouter struct {
	providers map[string]usecases.TextGenerator
}

// NewTextRouter creates an empty router.
func NewTextRouter() *TextRouter {
	return &TextRouter{providers: make(map[string]usecases.TextGenerator)}
}

// Register binds provider to gen. A nil gen is ignored.
func (r *TextRouter) Register(provider string, gen usecases.TextGenerator) *TextRouter {
	if gen != nil {
		r.providers[strings.ToLower(provider)] = gen
	}
	return r
}

// Providers lists the registered provider names.
func (r *TextRouter) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Empty reports whether no provider is registered.
func (r *TextRouter) Empty() bool {
	return len(r.providers) == 0
}

// GenerateText implements usecases.TextGenerator.
func (r *TextRouter) GenerateText(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	gen, ok := r.providers[strings.ToLower(req.Provider)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	return gen.GenerateText(ctx, req)
}
