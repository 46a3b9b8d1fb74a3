// Package memory provides an in-process image cache
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// Config configures an ImageCache.
type Config struct {
	// MaxMemoryMB bounds the serialized size of all entries; 0 means unbounded.
	MaxMemoryMB int64
	Serializer  *serialization.Serializer
}

// ImageCache implements cache.Store with serialized entries held in memory.
// The least recently used entries are evicted once the size bound is hit.
// PRINCIPLES:
// - KISS: One map behind one mutex
// - SRP: Single responsibility for in-memory payload storage
// - DIP: Implements cache.Store interface
type ImageCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	size       int64
	maxBytes   int64
	clock      uint64
	serializer *serialization.Serializer
}

type entry struct {
	data     []byte
	lastUsed uint64
}

// Stats describes cache occupancy.
type Stats struct {
	Entries  int   `json:"entries"`
	Bytes    int64 `json:"bytes"`
	MaxBytes int64 `json:"max_bytes"`
}

// NewImageCache creates a cache; a nil serializer selects msgpack+zstd.
func NewImageCache(cfg Config) *ImageCache {
	s := cfg.Serializer
	if s == nil {
		s = serialization.DefaultSerializer()
	}
	return &ImageCache{
		entries:    make(map[string]*entry),
		maxBytes:   cfg.MaxMemoryMB * 1024 * 1024,
		serializer: s,
	}
}

// Save stores the payload for nodeID, replacing any previous entry.
func (c *ImageCache) Save(ctx context.Context, nodeID string, payload *cache.Payload) error {
	if nodeID == "" {
		return cache.ErrInvalidNodeID
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := c.serializer.Serialize(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrSaveFailed, err)
	}
	size := int64(len(data))
	if c.maxBytes > 0 && size > c.maxBytes {
		return fmt.Errorf("%w: entry of %d bytes exceeds limit", cache.ErrSaveFailed, size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(nodeID)
	for c.maxBytes > 0 && c.size+size > c.maxBytes {
		c.evictOldestLocked()
	}
	c.clock++
	c.entries[nodeID] = &entry{data: data, lastUsed: c.clock}
	c.size += size
	return nil
}

// Load returns the payload for nodeID or cache.ErrEntryNotFound.
func (c *ImageCache) Load(ctx context.Context, nodeID string) (*cache.Payload, error) {
	if nodeID == "" {
		return nil, cache.ErrInvalidNodeID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	e, ok := c.entries[nodeID]
	if ok {
		c.clock++
		e.lastUsed = c.clock
	}
	c.mu.Unlock()
	if !ok {
		return nil, cache.ErrEntryNotFound
	}

	var p cache.Payload
	if err := c.serializer.Deserialize(e.data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	return &p, nil
}

// LoadAll returns every payload present for nodeIDs.
func (c *ImageCache) LoadAll(ctx context.Context, nodeIDs []string) (map[string]*cache.Payload, error) {
	out := make(map[string]*cache.Payload, len(nodeIDs))
	for _, id := range nodeIDs {
		p, err := c.Load(ctx, id)
		if errors.Is(err, cache.ErrEntryNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// Delete removes the entry for nodeID.
func (c *ImageCache) Delete(_ context.Context, nodeID string) error {
	if nodeID == "" {
		return cache.ErrInvalidNodeID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(nodeID)
	return nil
}

// Clear removes every entry.
func (c *ImageCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.size = 0
	return nil
}

// Stats reports the current occupancy.
func (c *ImageCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries), Bytes: c.size, MaxBytes: c.maxBytes}
}

func (c *ImageCache) removeLocked(id string) {
	if e, ok := c.entries[id]; ok {
		c.size -= int64(len(e.data))
		delete(c.entries, id)
	}
}

func (c *ImageCache) evictOldestLocked() {
	var (
		oldestID string
		oldest   uint64
	)
	for id, e := range c.entries {
		if oldestID == "" || e.lastUsed < oldest {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID == "" {
		return
	}
	c.removeLocked(oldestID)
}
