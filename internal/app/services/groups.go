package services

import (
	"fmt"

	"github.com/ttmouse/node-banana/internal/core/graph"
)

// Split grid child layout, relative to the split node.
const (
	splitOffsetX   = 400.0
	splitCellW     = 700.0
	splitCellH     = 560.0
	splitPromptY   = 300.0
	splitGenerateX = 340.0
	splitGenerateY = 100.0
)

// CreateGroup wraps the given nodes in a new group sized to their bounding
// box. Unknown ids are skipped; with no known ids nothing is created.
func (s *Store) CreateGroup(nodeIDs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.createGroup(nodeIDs, "")
	if err != nil {
		return "", err
	}
	s.touch("create_group")
	return id, nil
}

func (s *Store) createGroup(nodeIDs []string, name string) (string, error) {
	var members []*graph.Node
	for _, id := range nodeIDs {
		if n := s.g.Node(id); n != nil {
			members = append(members, n)
		}
	}
	if len(members) == 0 {
		return "", graph.ErrEmptyGroup
	}

	s.groupCounter = max(s.groupCounter, s.g.MaxGroupSuffix()) + 1
	id := graph.FormatGroupID(s.groupCounter)
	if name == "" {
		name = fmt.Sprintf("Group %d", s.groupCounter)
	}
	pos, size := graph.Bounds(members)
	s.g.Groups[id] = &graph.Group{
		ID:       id,
		Name:     name,
		Color:    graph.NextGroupColor(s.g.Groups),
		Position: pos,
		Size:     size,
	}
	for _, n := range members {
		n.GroupID = id
	}
	return id, nil
}

// DeleteGroup removes a group and releases its members.
func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deleteGroup(id) {
		return false
	}
	s.touch("delete_group")
	return true
}

func (s *Store) deleteGroup(id string) bool {
	if _, ok := s.g.Groups[id]; !ok {
		return false
	}
	delete(s.g.Groups, id)
	for _, n := range s.g.Nodes {
		if n.GroupID == id {
			n.GroupID = ""
		}
	}
	return true
}

// RenameGroup changes a group's display name.
func (s *Store) RenameGroup(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grp, ok := s.g.Groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrGroupNotFound, id)
	}
	grp.Name = name
	s.touch("rename_group")
	return nil
}

// SetGroupColor recolors a group.
func (s *Store) SetGroupColor(id string, c graph.GroupColor) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", graph.ErrInvalidGroupColor, c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	grp, ok := s.g.Groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrGroupNotFound, id)
	}
	grp.Color = c
	s.touch("recolor_group")
	return nil
}

// MoveGroup places a group at pos and moves its members by the same delta.
func (s *Store) MoveGroup(id string, pos graph.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grp, ok := s.g.Groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrGroupNotFound, id)
	}
	delta := graph.Position{X: pos.X - grp.Position.X, Y: pos.Y - grp.Position.Y}
	grp.Position = pos
	for _, n := range s.g.GroupMembers(id) {
		n.Position = n.Position.Add(delta)
	}
	s.touch("move_group")
	return nil
}

// Group returns a copy of a group, or nil.
func (s *Store) Group(id string) *graph.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Groups[id].Clone()
}

// GroupMembers returns the ids of the nodes in a group.
func (s *Store) GroupMembers(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, n := range s.g.GroupMembers(id) {
		ids = append(ids, n.ID)
	}
	return ids
}

// ConfigureSplitGrid builds the child cluster of a split grid node: for every
// tile an imageInput and a prompt feeding a nanoBanana, laid out row-major to
// the right of the split node and wrapped in one group. Any previous cluster
// is removed first.
func (s *Store) ConfigureSplitGrid(id string, rows, cols int) error {
	if rows < 1 || cols < 1 || rows > MaxGridDimension || cols > MaxGridDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGridSize, rows, cols)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	split := s.g.Node(id)
	if split == nil {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	data, ok := split.Data.(graph.SplitGridData)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSplitGrid, id)
	}

	for _, c := range data.ChildNodes {
		s.removeNode(c.ImageInputID)
		s.removeNode(c.PromptID)
		s.removeNode(c.GenerateID)
	}
	if data.GroupID != "" {
		s.deleteGroup(data.GroupID)
	}

	origin := split.Position.Add(graph.Position{X: splitOffsetX})
	children := make([]graph.SplitGridChild, 0, rows*cols)
	var memberIDs []string
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cell := origin.Add(graph.Position{X: float64(c) * splitCellW, Y: float64(r) * splitCellH})
			child, err := s.addSplitCell(id, cell)
			if err != nil {
				return err
			}
			children = append(children, child)
			memberIDs = append(memberIDs, child.ImageInputID, child.PromptID, child.GenerateID)
		}
	}

	groupID, err := s.createGroup(memberIDs, fmt.Sprintf("Split %dx%d", rows, cols))
	if err != nil {
		return err
	}

	data = data.Clone().(graph.SplitGridData)
	data.GridRows, data.GridCols = rows, cols
	data.IsConfigured = true
	data.GroupID = groupID
	data.ChildNodes = children
	split.Data = data
	s.touch("configure_split")
	return nil
}

func (s *Store) addSplitCell(splitID string, cell graph.Position) (graph.SplitGridChild, error) {
	var child graph.SplitGridChild
	specs := []struct {
		t   graph.NodeType
		pos graph.Position
		dst *string
	}{
		{graph.NodeTypeImageInput, cell, &child.ImageInputID},
		{graph.NodeTypePrompt, cell.Add(graph.Position{Y: splitPromptY}), &child.PromptID},
		{graph.NodeTypeNanoBanana, cell.Add(graph.Position{X: splitGenerateX, Y: splitGenerateY}), &child.GenerateID},
	}
	for _, sp := range specs {
		id := s.nextNodeID(sp.t)
		n, err := graph.NewNode(id, sp.t, sp.pos)
		if err != nil {
			return child, err
		}
		if err := s.g.AddNode(n); err != nil {
			return child, err
		}
		if s.mirror != nil {
			s.mirror.evict(id)
		}
		*sp.dst = id
	}

	links := []graph.Connection{
		{Source: splitID, SourceHandle: graph.HandleReference, Target: child.ImageInputID, TargetHandle: graph.HandleReference},
		{Source: child.ImageInputID, SourceHandle: graph.HandleImage, Target: child.GenerateID, TargetHandle: graph.HandleImage},
		{Source: child.PromptID, SourceHandle: graph.HandleText, Target: child.GenerateID, TargetHandle: graph.HandleText},
	}
	for _, c := range links {
		e, err := graph.NewEdge(c)
		if err != nil {
			return child, err
		}
		if _, err := s.g.AddEdge(e); err != nil {
			return child, err
		}
	}
	return child, nil
}
