// Package cache provides image cache persistence interfaces
package cache

import "context"

// Store interface for binary payload persistence (DIP - Dependency Inversion)
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Core domain depends on interface, not implementations
// - SRP: Single responsibility - binary payload persistence
type Store interface {
	// Save persists the payload for a node, replacing any previous entry
	Save(ctx context.Context, nodeID string, payload *Payload) error

	// Load retrieves the payload for a node or ErrEntryNotFound
	Load(ctx context.Context, nodeID string) (*Payload, error)

	// LoadAll retrieves every payload present for the given ids
	LoadAll(ctx context.Context, nodeIDs []string) (map[string]*Payload, error)

	// Delete removes the entry for a node; missing entries are not an error
	Delete(ctx context.Context, nodeID string) error

	// Clear removes every entry
	Clear(ctx context.Context) error
}
