package serialization

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ttmouse/node-banana/internal/core/graph"
)

// WorkflowVersion is the current workflow file format version.
const WorkflowVersion = 1

// ErrUnsupportedVersion is returned for files newer than this build.
var ErrUnsupportedVersion = errors.New("unsupported workflow version")

// WorkflowFile is the on-disk workflow format. ID and Groups are optional
// for files written by older versions.
type WorkflowFile struct {
	Version   int                     `json:"version" validate:"gte=0,lte=1"`
	ID        string                  `json:"id,omitempty"`
	Name      string                  `json:"name"`
	Nodes     []*graph.Node           `json:"nodes"`
	Edges     []*graph.Edge           `json:"edges"`
	EdgeStyle graph.EdgeStyle         `json:"edgeStyle" validate:"omitempty,edge_style"`
	Groups    map[string]*graph.Group `json:"groups,omitempty"`
}

// NewWorkflowFile snapshots a graph into the file format.
func NewWorkflowFile(id, name string, g *graph.Graph, style graph.EdgeStyle) *WorkflowFile {
	c := g.Clone()
	w := &WorkflowFile{
		Version:   WorkflowVersion,
		ID:        id,
		Name:      name,
		Nodes:     c.Nodes,
		Edges:     c.Edges,
		EdgeStyle: style,
	}
	if len(c.Groups) > 0 {
		w.Groups = c.Groups
	}
	return w
}

// Graph returns the graph described by the file. The result is not
// sanitized.
func (w *WorkflowFile) Graph() *graph.Graph {
	g := &graph.Graph{Nodes: w.Nodes, Edges: w.Edges, Groups: w.Groups}
	if g.Groups == nil {
		g.Groups = make(map[string]*graph.Group)
	}
	return g.Clone()
}

// EncodeWorkflow writes the file as indented JSON.
func EncodeWorkflow(w *WorkflowFile) ([]byte, error) {
	if w.Version == 0 {
		w.Version = WorkflowVersion
	}
	if w.EdgeStyle == "" {
		w.EdgeStyle = graph.EdgeStyleCurved
	}
	if w.Nodes == nil {
		w.Nodes = []*graph.Node{}
	}
	if w.Edges == nil {
		w.Edges = []*graph.Edge{}
	}
	return json.MarshalIndent(w, "", "  ")
}

// DecodeWorkflow parses a workflow file. Files without a version are treated
// as version 1; a missing edge style defaults to curved.
func DecodeWorkflow(b []byte) (*WorkflowFile, error) {
	var w WorkflowFile
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	if w.Version > WorkflowVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, w.Version)
	}
	if w.Version == 0 {
		w.Version = WorkflowVersion
	}
	if w.EdgeStyle == "" {
		w.EdgeStyle = graph.EdgeStyleCurved
	}
	return &w, nil
}

// LocalState is the persisted working copy of the editor. Binary fields are
// stripped and live in the image cache; run state, clipboard and history are
// never included.
type LocalState struct {
	Nodes     []*graph.Node           `json:"nodes"`
	Edges     []*graph.Edge           `json:"edges"`
	EdgeStyle graph.EdgeStyle         `json:"edgeStyle"`
	Groups    map[string]*graph.Group `json:"groups,omitempty"`
}

// NewLocalState snapshots g with every binary field stripped.
func NewLocalState(g *graph.Graph, style graph.EdgeStyle) *LocalState {
	c := g.Clone()
	for _, n := range c.Nodes {
		n.Data = n.Data.WithoutImageFields()
	}
	return &LocalState{Nodes: c.Nodes, Edges: c.Edges, EdgeStyle: style, Groups: c.Groups}
}

// Graph returns the stripped graph held by the state.
func (s *LocalState) Graph() *graph.Graph {
	g := &graph.Graph{Nodes: s.Nodes, Edges: s.Edges, Groups: s.Groups}
	if g.Groups == nil {
		g.Groups = make(map[string]*graph.Group)
	}
	return g.Clone()
}

// StateSerializer returns the pipeline for local state. Nodes carry a
// tagged-union payload decoded by type, so the codec is JSON.
func StateSerializer(compression CompressionType, key []byte) (*Serializer, error) {
	return NewSerializer(SerializationConfig{
		Codec:       NewJSONCodec(),
		Compression: compression,
		EncryptKey:  key,
	})
}
