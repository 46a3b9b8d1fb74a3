// Package graph provides node definitions
package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeType represents the type of node
type NodeType string

const (
	// NodeTypeImageInput holds a user supplied image
	NodeTypeImageInput NodeType = "imageInput"
	// NodeTypeAnnotation holds an image plus drawn annotations
	NodeTypeAnnotation NodeType = "annotation"
	// NodeTypePrompt holds prompt text
	NodeTypePrompt NodeType = "prompt"
	// NodeTypeNanoBanana generates an image
	NodeTypeNanoBanana NodeType = "nanoBanana"
	// NodeTypeLLMGenerate generates text
	NodeTypeLLMGenerate NodeType = "llmGenerate"
	// NodeTypeSplitGrid slices an image into a grid of tiles
	NodeTypeSplitGrid NodeType = "splitGrid"
	// NodeTypeOutput displays a final image
	NodeTypeOutput NodeType = "output"
)

// NodeTypes lists every known node type in palette order.
var NodeTypes = []NodeType{
	NodeTypeImageInput,
	NodeTypeAnnotation,
	NodeTypePrompt,
	NodeTypeNanoBanana,
	NodeTypeLLMGenerate,
	NodeTypeSplitGrid,
	NodeTypeOutput,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CarriesImages reports whether payloads of this type hold binary image
// fields that belong in the image cache.
func (t NodeType) CarriesImages() bool {
	return t.Valid() && t != NodeTypePrompt
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Size is a measured node or group extent. The zero value means "not measured".
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the size has not been measured.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// defaultSizes are used whenever a node has no live measurement.
var defaultSizes = map[NodeType]Size{
	NodeTypeImageInput:  {Width: 300, Height: 280},
	NodeTypeAnnotation:  {Width: 300, Height: 280},
	NodeTypePrompt:      {Width: 320, Height: 220},
	NodeTypeNanoBanana:  {Width: 300, Height: 300},
	NodeTypeLLMGenerate: {Width: 320, Height: 360},
	NodeTypeSplitGrid:   {Width: 300, Height: 320},
	NodeTypeOutput:      {Width: 320, Height: 320},
}

// DefaultSize returns the fallback dimensions for a node type.
func DefaultSize(t NodeType) Size {
	if s, ok := defaultSizes[t]; ok {
		return s
	}
	return Size{Width: 300, Height: 300}
}

// Node represents a vertex in the workflow graph
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data
type Node struct {
	ID       string   `json:"id" validate:"required,node_id"`
	Type     NodeType `json:"type" validate:"required,node_type"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Data     NodeData `json:"data"`
	GroupID  string   `json:"groupId,omitempty"`
	Selected bool     `json:"selected"`
}

// NewNode creates a node with the default payload for its type.
func NewNode(id string, t NodeType, pos Position) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidNodeID
	}
	data, err := NewData(t)
	if err != nil {
		return nil, err
	}
	return &Node{ID: id, Type: t, Position: pos, Data: data}, nil
}

// Validate ensures node integrity
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidNodeType, n.Type)
	}
	if n.Data == nil || n.Data.Type() != n.Type {
		return fmt.Errorf("%w: data does not match %s", ErrInvalidNodeType, n.Type)
	}
	return nil
}

// Extent returns the measured size, or the type default when unmeasured.
func (n *Node) Extent() Size {
	if n.Size.IsZero() {
		return DefaultSize(n.Type)
	}
	return n.Size
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Data != nil {
		c.Data = n.Data.Clone()
	}
	return &c
}

// FormatNodeID builds the canonical "{type}-{n}" identifier.
func FormatNodeID(t NodeType, n int) string {
	return fmt.Sprintf("%s-%d", t, n)
}

// FormatGroupID builds the canonical "group-{n}" identifier.
func FormatGroupID(n int) string {
	return fmt.Sprintf("group-%d", n)
}

// NumericSuffix returns the integer after the last '-' of an identifier.
func NumericSuffix(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
