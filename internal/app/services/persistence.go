package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
	"github.com/ttmouse/node-banana/pkg/validation"
)

// LoadWorkflow replaces the live workflow with w. The graph is sanitized
// first; every repair is logged and returned. Counters resync to the
// largest id suffix, and run state, clipboard and history are reset.
func (s *Store) LoadWorkflow(w *serialization.WorkflowFile) ([]validation.Issue, error) {
	if w == nil {
		return nil, graph.ErrGraphNotFound
	}
	if err := validation.ValidateStruct(w); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	g, issues := validation.SanitizeGraph(w.Graph())
	for _, issue := range issues {
		s.logger.Warn("workflow repaired on load",
			zap.String("kind", string(issue.Kind)),
			zap.String("id", issue.ID),
			zap.String("reason", issue.Reason))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil, dto.ErrRunInProgress
	}

	s.edgeStyle = w.EdgeStyle
	if !s.edgeStyle.Valid() {
		s.edgeStyle = graph.EdgeStyleCurved
	}
	s.workflowID = w.ID
	s.workflowName = w.Name
	s.resetTransient(g)

	if s.mirror != nil {
		s.mirror.clear()
	}
	for _, n := range s.g.Nodes {
		s.mirrorNode(n)
	}
	s.logger.Info("workflow loaded",
		zap.String("workflow_id", s.workflowID),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("issues", len(issues)))
	return issues, nil
}

// resetTransient installs g and resets everything that never outlives a
// load. Callers hold the write lock.
func (s *Store) resetTransient(g *graph.Graph) {
	s.g = g
	s.nodeCounter = g.MaxNodeSuffix()
	s.groupCounter = g.MaxGroupSuffix()
	s.run = dto.RunState{}
	s.active = false
	s.clipboard = nil
	s.history.Reset()
	s.metrics.SetHistoryDepth(0)
	s.unsaved = false
	s.revision++
}

// ExportWorkflow snapshots the live workflow in file form. A workflow with
// no id is assigned a fresh UUID, which sticks for later exports.
func (s *Store) ExportWorkflow() *serialization.WorkflowFile {
	w, _ := s.exportWithRevision()
	return w
}

func (s *Store) exportWithRevision() (*serialization.WorkflowFile, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflowID == "" {
		s.workflowID = uuid.NewString()
	}
	return serialization.NewWorkflowFile(s.workflowID, s.workflowName, s.g, s.edgeStyle), s.revision
}

// Persist writes the stripped working copy to the state repository after
// pending cache writes have landed.
func (s *Store) Persist(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	state := serialization.NewLocalState(s.g, s.edgeStyle)
	s.mu.RUnlock()
	if err := s.repo.SaveState(ctx, state); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// Hydrate restores the working copy in two phases: the stripped shape from
// the state repository, then binary fields from the image cache merged into
// nodes that still exist with the same type.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.repo == nil {
		return graph.ErrGraphNotFound
	}
	state, err := s.repo.LoadState(ctx)
	if err != nil {
		return err
	}
	g, issues := validation.SanitizeGraph(state.Graph())
	for _, issue := range issues {
		s.logger.Warn("local state repaired on hydrate",
			zap.String("kind", string(issue.Kind)),
			zap.String("id", issue.ID))
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return dto.ErrRunInProgress
	}
	s.edgeStyle = state.EdgeStyle
	if !s.edgeStyle.Valid() {
		s.edgeStyle = graph.EdgeStyleCurved
	}
	s.resetTransient(g)
	var ids []string
	for _, n := range g.Nodes {
		if n.Type.CarriesImages() {
			ids = append(ids, n.ID)
		}
	}
	s.mu.Unlock()

	if s.cache == nil || len(ids) == 0 {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	payloads, err := s.cache.LoadAll(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for id, p := range payloads {
		if n := s.g.Node(id); n != nil {
			n.Data = cache.Restore(n.Data, p)
			restored++
		}
	}
	s.logger.Info("state hydrated",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("restored_payloads", restored))
	return nil
}
