// Package cache provides the binary image cache entities and interfaces
// following Clean Architecture principles with zero external dependencies.
package cache

import (
	"time"

	"github.com/ttmouse/node-banana/internal/core/graph"
)

// Payload is the binary part of one node, stored apart from the graph shape.
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for the cached field values
type Payload struct {
	NodeType  graph.NodeType    `json:"type" msgpack:"type"`
	Fields    graph.ImageFields `json:"fields" msgpack:"fields"`
	UpdatedAt time.Time         `json:"updated_at" msgpack:"updated_at"`
}

// Validate ensures payload integrity
func (p *Payload) Validate() error {
	if p == nil || p.Fields == nil {
		return ErrNilPayload
	}
	if !p.NodeType.Valid() {
		return graph.ErrInvalidNodeType
	}
	return nil
}

// Extract builds a payload from a node's data. It returns nil when the node
// carries no binary fields, in which case any cached entry should be evicted.
func Extract(data graph.NodeData) *Payload {
	if data == nil {
		return nil
	}
	fields := data.ImageFields()
	if fields == nil {
		return nil
	}
	return &Payload{NodeType: data.Type(), Fields: fields, UpdatedAt: time.Now().UTC()}
}

// Restore merges a cached payload back into node data of the same type.
func Restore(data graph.NodeData, p *Payload) graph.NodeData {
	if p == nil || data == nil || p.NodeType != data.Type() {
		return data
	}
	return data.WithImageFields(p.Fields)
}
