// Package graphrepo provides an in-memory local state repository
package graphrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
	"github.com/ttmouse/node-banana/pkg/validation"
)

// InMemoryStateRepository keeps the working copy in encoded form, so callers
// never share node pointers with it.
// PRINCIPLES:
// - KISS: One encoded blob behind a mutex
// - DIP: Satisfies the store's state repository interface
type InMemoryStateRepository struct {
	mu         sync.RWMutex
	data       []byte
	serializer *serialization.Serializer
}

// NewInMemoryStateRepository creates an empty repository
func NewInMemoryStateRepository() *InMemoryStateRepository {
	s, _ := serialization.StateSerializer(serialization.CompressionNone, nil)
	return &InMemoryStateRepository{serializer: s}
}

// SaveState validates and stores state, replacing what was there
func (r *InMemoryStateRepository) SaveState(ctx context.Context, state *serialization.LocalState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return graph.ErrGraphNotFound
	}
	if err := validation.ValidateCoreGraph(state.Graph()); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	data, err := r.serializer.Serialize(state)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	return nil
}

// LoadState returns a fresh copy of the stored state
func (r *InMemoryStateRepository) LoadState(ctx context.Context) (*serialization.LocalState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	data := r.data
	r.mu.RUnlock()
	if data == nil {
		return nil, graph.ErrGraphNotFound
	}

	var state serialization.LocalState
	if err := r.serializer.Deserialize(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// Clear forgets the stored state
func (r *InMemoryStateRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
}
