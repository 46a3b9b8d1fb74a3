package graph

import "fmt"

// TopologicalOrder returns every node id ordered so that each node follows
// all of its sources. Nodes are visited depth first over the
// "target depends on source" relation, in node insertion order, and appended
// post-order. A node reached again while still on the stack is a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	known := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = true
	}
	deps := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if known[e.Source] && known[e.Target] {
			deps[e.Target] = append(deps[e.Target], e.Source)
		}
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	order := make([]string, 0, len(g.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return fmt.Errorf("%w at node %s", ErrCyclicGraph, id)
		}
		visiting[id] = true
		for _, src := range deps[id] {
			if err := visit(src); err != nil {
				return err
			}
		}
		visiting[id] = false
		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, n := range g.Nodes {
		if err := visit(n.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}
