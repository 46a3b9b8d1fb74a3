package services

import "github.com/ttmouse/node-banana/internal/core/graph"

// DefaultHistoryLimit caps the undo stack.
const DefaultHistoryLimit = 50

// History is a bounded stack of graph snapshots with a cursor.
// PRINCIPLES:
// - KISS: Snapshots are full deep copies, never shared with live state
// - SRP: Only tracks snapshots; the store decides when to push
type History struct {
	snapshots []*graph.Graph
	index     int
	limit     int
}

// NewHistory creates an empty history. A non-positive limit uses the default.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{index: -1, limit: limit}
}

// Push discards any redo branch, appends a copy of g and evicts the oldest
// snapshot beyond the limit.
func (h *History) Push(g *graph.Graph) {
	h.snapshots = append(h.snapshots[:h.index+1], g.Clone())
	if over := len(h.snapshots) - h.limit; over > 0 {
		clear(h.snapshots[:over])
		h.snapshots = h.snapshots[over:]
	}
	h.index = len(h.snapshots) - 1
}

// Undo moves the cursor back and returns a copy of that snapshot.
func (h *History) Undo() (*graph.Graph, bool) {
	if h.index <= 0 {
		return nil, false
	}
	h.index--
	return h.snapshots[h.index].Clone(), true
}

// Redo moves the cursor forward and returns a copy of that snapshot.
func (h *History) Redo() (*graph.Graph, bool) {
	if h.index >= len(h.snapshots)-1 {
		return nil, false
	}
	h.index++
	return h.snapshots[h.index].Clone(), true
}

func (h *History) CanUndo() bool { return h.index > 0 }
func (h *History) CanRedo() bool { return h.index < len(h.snapshots)-1 }

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.snapshots) }

// Index returns the cursor, -1 when empty.
func (h *History) Index() int { return h.index }

// Reset empties the history.
func (h *History) Reset() {
	clear(h.snapshots)
	h.snapshots = h.snapshots[:0]
	h.index = -1
}
