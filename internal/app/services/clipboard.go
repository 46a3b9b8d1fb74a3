package services

import "github.com/ttmouse/node-banana/internal/core/graph"

// CopySelectedNodes copies the selected nodes and the edges running between
// them. It returns the number of nodes copied; with nothing selected the
// clipboard is left as it was.
func (s *Store) CopySelectedNodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make(map[string]bool)
	clip := graph.New()
	for _, n := range s.g.Nodes {
		if n.Selected {
			selected[n.ID] = true
			clip.Nodes = append(clip.Nodes, n.Clone())
		}
	}
	if len(clip.Nodes) == 0 {
		return 0
	}
	for _, e := range s.g.Edges {
		if selected[e.Source] && selected[e.Target] {
			clip.Edges = append(clip.Edges, e.Clone())
		}
	}
	s.clipboard = clip
	return len(clip.Nodes)
}

// PasteNodes inserts the clipboard contents shifted by offset. Pasted nodes
// get fresh ids, leave their groups and become the only selection. It
// returns the new ids in clipboard order.
func (s *Store) PasteNodes(offset graph.Position) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clipboard == nil || len(s.clipboard.Nodes) == 0 {
		return nil
	}
	for _, n := range s.g.Nodes {
		n.Selected = false
	}

	remap := make(map[string]string, len(s.clipboard.Nodes))
	for _, src := range s.clipboard.Nodes {
		remap[src.ID] = s.nextNodeID(src.Type)
	}

	ids := make([]string, 0, len(s.clipboard.Nodes))
	for _, src := range s.clipboard.Nodes {
		n := src.Clone()
		n.ID = remap[src.ID]
		n.Position = n.Position.Add(offset)
		n.GroupID = ""
		n.Selected = true
		if d, ok := n.Data.(graph.SplitGridData); ok {
			n.Data = remapSplitChildren(d, remap)
		}
		if err := s.g.AddNode(n); err != nil {
			continue
		}
		s.mirrorNode(n)
		ids = append(ids, n.ID)
	}

	for _, src := range s.clipboard.Edges {
		c := src.Connection()
		c.Source, c.Target = remap[src.Source], remap[src.Target]
		e, err := graph.NewEdge(c)
		if err != nil {
			continue
		}
		e.Data = src.Data
		_, _ = s.g.AddEdge(e)
	}

	s.touch("paste")
	return ids
}

// remapSplitChildren points a pasted split grid at its pasted children. When
// any child was left behind the copy starts unconfigured, so it never
// drives tiles it does not own.
func remapSplitChildren(d graph.SplitGridData, remap map[string]string) graph.SplitGridData {
	if !d.IsConfigured {
		return d
	}
	children := make([]graph.SplitGridChild, 0, len(d.ChildNodes))
	for _, c := range d.ChildNodes {
		in, ok1 := remap[c.ImageInputID]
		pr, ok2 := remap[c.PromptID]
		gen, ok3 := remap[c.GenerateID]
		if !ok1 || !ok2 || !ok3 {
			return d.Unconfigured()
		}
		children = append(children, graph.SplitGridChild{ImageInputID: in, PromptID: pr, GenerateID: gen})
	}
	d = d.Clone().(graph.SplitGridData)
	d.ChildNodes = children
	d.GroupID = ""
	return d
}
