package services

import (
	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/graph"
)

// BeginRun claims the store for one execution. Only one run may be active.
func (s *Store) BeginRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return dto.ErrRunInProgress
	}
	s.active = true
	s.run = dto.RunState{IsRunning: true}
	s.metrics.SetRunning(true)
	return nil
}

// EndRun releases the run. pausedAt is recorded when the run stopped at a
// pause edge and cleared otherwise.
func (s *Store) EndRun(pausedAt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.run = dto.RunState{PausedAtNodeID: pausedAt}
	s.metrics.SetRunning(false)
}

// SetCurrentNode records the node being executed.
func (s *Store) SetCurrentNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.CurrentNodeID = id
}

// StopRun asks the active run to stop before its next node. The run stays
// claimed until the scheduler calls EndRun.
func (s *Store) StopRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.IsRunning = false
}

// IsRunning reports whether the active run should keep going.
func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run.IsRunning
}

// IsActive reports whether a run holds the store, including one that was
// asked to stop but has not returned yet.
func (s *Store) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// RunState returns the transient execution state.
func (s *Store) RunState() dto.RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// --- history ---

// SaveToHistory pushes a snapshot of the current graph.
func (s *Store) SaveToHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return dto.ErrRunInProgress
	}
	s.history.Push(s.g)
	s.metrics.SetHistoryDepth(s.history.Len())
	return nil
}

// Undo restores the previous snapshot. It reports false at the bottom of the
// stack.
func (s *Store) Undo() (bool, error) {
	return s.restore(s.history.Undo)
}

// Redo restores the next snapshot. It reports false at the top of the stack.
func (s *Store) Redo() (bool, error) {
	return s.restore(s.history.Redo)
}

// CanUndo reports whether Undo would move.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would move.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

func (s *Store) restore(step func() (*graph.Graph, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false, dto.ErrRunInProgress
	}
	snap, ok := step()
	if !ok {
		return false, nil
	}
	s.replaceGraph(snap)
	s.touch("history")
	return true, nil
}

// replaceGraph swaps in g wholesale and brings the cache in line with it:
// nodes that disappeared are evicted, the rest re-mirrored. Callers hold the
// write lock.
func (s *Store) replaceGraph(g *graph.Graph) {
	if s.mirror != nil {
		for _, n := range s.g.Nodes {
			if g.Node(n.ID) == nil {
				s.mirror.evict(n.ID)
			}
		}
	}
	s.g = g
	for _, n := range s.g.Nodes {
		s.mirrorNode(n)
	}
}
