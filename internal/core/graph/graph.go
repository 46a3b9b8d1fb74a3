// Package graph provides the core workflow graph entities
// following Clean Architecture principles with zero external dependencies.
package graph

import "fmt"

// Graph is the structural state of a workflow: nodes, edges and groups.
// It doubles as the history snapshot type, so Clone must be a true deep copy.
// PRINCIPLES:
// - KISS: Slices keep insertion order, which input resolution relies on
// - SRP: Only responsible for graph structure, not execution
type Graph struct {
	Nodes  []*Node           `json:"nodes"`
	Edges  []*Edge           `json:"edges"`
	Groups map[string]*Group `json:"groups,omitempty"`
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Groups: make(map[string]*Group)}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:  make([]*Node, 0, len(g.Nodes)),
		Edges:  make([]*Edge, 0, len(g.Edges)),
		Groups: make(map[string]*Group, len(g.Groups)),
	}
	for _, n := range g.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	for _, e := range g.Edges {
		c.Edges = append(c.Edges, e.Clone())
	}
	for id, grp := range g.Groups {
		c.Groups[id] = grp.Clone()
	}
	return c
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	if i := g.nodeIndex(id); i >= 0 {
		return g.Nodes[i]
	}
	return nil
}

func (g *Graph) nodeIndex(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id string) *Edge {
	for _, e := range g.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// AddNode appends a node after validating it.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return ErrInvalidNodeID
	}
	if err := n.Validate(); err != nil {
		return err
	}
	if g.Node(n.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.Nodes = append(g.Nodes, n)
	return nil
}

// AddEdge inserts an edge between two existing nodes. It reports false when
// an edge with the same id already exists.
func (g *Graph) AddEdge(e *Edge) (bool, error) {
	if err := e.Connection().Validate(); err != nil {
		return false, err
	}
	if g.Node(e.Source) == nil || g.Node(e.Target) == nil {
		return false, ErrNodeNotFound
	}
	if g.Edge(e.ID) != nil {
		return false, nil
	}
	g.Edges = append(g.Edges, e)
	return true, nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) bool {
	i := g.nodeIndex(id)
	if i < 0 {
		return false
	}
	g.Nodes = append(g.Nodes[:i], g.Nodes[i+1:]...)
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	clear(g.Edges[len(kept):])
	g.Edges = kept
	return true
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) bool {
	for i, e := range g.Edges {
		if e.ID == id {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// IncomingEdges returns the edges targeting id in insertion order.
func (g *Graph) IncomingEdges(id string) []*Edge {
	var in []*Edge
	for _, e := range g.Edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// GroupMembers returns the nodes whose GroupID is groupID.
func (g *Graph) GroupMembers(groupID string) []*Node {
	var members []*Node
	for _, n := range g.Nodes {
		if n.GroupID == groupID {
			members = append(members, n)
		}
	}
	return members
}

// MaxNodeSuffix returns the largest numeric id suffix among nodes.
func (g *Graph) MaxNodeSuffix() int {
	m := 0
	for _, n := range g.Nodes {
		if v, ok := NumericSuffix(n.ID); ok && v > m {
			m = v
		}
	}
	return m
}

// MaxGroupSuffix returns the largest numeric id suffix among groups.
func (g *Graph) MaxGroupSuffix() int {
	m := 0
	for id := range g.Groups {
		if v, ok := NumericSuffix(id); ok && v > m {
			m = v
		}
	}
	return m
}
