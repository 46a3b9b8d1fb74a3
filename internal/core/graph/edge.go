// Package graph provides edge definitions
package graph

import "fmt"

// Handle is a typed port on a node.
type Handle string

const (
	// HandleImage carries image data URLs
	HandleImage Handle = "image"
	// HandleText carries prompt or generated text
	HandleText Handle = "text"
	// HandleReference links a split grid to its tiles; it carries no payload
	HandleReference Handle = "reference"
)

// Valid reports whether h is a known handle.
func (h Handle) Valid() bool {
	switch h {
	case HandleImage, HandleText, HandleReference:
		return true
	}
	return false
}

// Compatible reports whether a source handle may feed a target handle.
// Handles only connect within the same channel.
func Compatible(source, target Handle) bool {
	return source.Valid() && source == target
}

// EdgeStyle is the rendering style persisted with a workflow.
type EdgeStyle string

const (
	EdgeStyleAngular EdgeStyle = "angular"
	EdgeStyleCurved  EdgeStyle = "curved"
)

// Valid reports whether s is a known edge style.
func (s EdgeStyle) Valid() bool {
	return s == EdgeStyleAngular || s == EdgeStyleCurved
}

// EdgeData holds per-edge flags.
type EdgeData struct {
	HasPause bool `json:"hasPause"`
}

// Edge represents a connection between two node handles
// PRINCIPLES:
// - KISS: Simple edge representation
// - SRP: Only responsible for edge data
type Edge struct {
	ID           string   `json:"id" validate:"required"`
	Source       string   `json:"source" validate:"required,node_id"`
	SourceHandle Handle   `json:"sourceHandle" validate:"handle"`
	Target       string   `json:"target" validate:"required,node_id"`
	TargetHandle Handle   `json:"targetHandle" validate:"handle"`
	Data         EdgeData `json:"data"`
}

// Connection is a request to join two handles.
type Connection struct {
	Source       string `json:"source"`
	SourceHandle Handle `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle Handle `json:"targetHandle"`
}

// EdgeID derives the deterministic identifier for a connection, so that
// connecting the same handles twice always yields the same edge.
func EdgeID(source string, sourceHandle Handle, target string, targetHandle Handle) string {
	return fmt.Sprintf("edge-%s-%s-%s-%s", source, target, sourceHandle, targetHandle)
}

// NewEdge builds an edge for a connection after validating its handles.
func NewEdge(c Connection) (*Edge, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Edge{
		ID:           EdgeID(c.Source, c.SourceHandle, c.Target, c.TargetHandle),
		Source:       c.Source,
		SourceHandle: c.SourceHandle,
		Target:       c.Target,
		TargetHandle: c.TargetHandle,
	}, nil
}

// Validate checks the structural rules of a connection. Node existence is
// checked by the owner of the graph.
func (c Connection) Validate() error {
	if c.Source == "" || c.Target == "" {
		return ErrInvalidNodeID
	}
	if c.Source == c.Target {
		return ErrSelfLoop
	}
	if !c.SourceHandle.Valid() || !c.TargetHandle.Valid() {
		return ErrInvalidHandle
	}
	if !Compatible(c.SourceHandle, c.TargetHandle) {
		return ErrIncompatibleHandle
	}
	return nil
}

// Connection returns the connection described by the edge.
func (e *Edge) Connection() Connection {
	return Connection{
		Source:       e.Source,
		SourceHandle: e.SourceHandle,
		Target:       e.Target,
		TargetHandle: e.TargetHandle,
	}
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
