package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// StateRepository persists the stripped working copy of the editor.
// LoadState returns graph.ErrGraphNotFound when nothing has been saved.
type StateRepository interface {
	SaveState(ctx context.Context, state *serialization.LocalState) error
	LoadState(ctx context.Context) (*serialization.LocalState, error)
}

// Store owns the live workflow: graph structure, run state, clipboard and
// undo history. Every accessor returns copies; callers never hold pointers
// into live state.
// PRINCIPLES:
// - SRP: Structure and transient state only; execution lives in usecases
// - DIP: Cache and state persistence are injected interfaces
// - KISS: One RWMutex guards everything
type Store struct {
	mu sync.RWMutex

	g            *graph.Graph
	edgeStyle    graph.EdgeStyle
	workflowID   string
	workflowName string
	nodeCounter  int
	groupCounter int
	clipboard    *graph.Graph
	history      *History
	run          dto.RunState
	active       bool
	unsaved      bool
	revision     uint64

	cache        cache.Store
	mirror       *cacheMirror
	repo         StateRepository
	logger       *zap.Logger
	metrics      *metrics.Collector
	historyLimit int
}

// Option configures a Store.
type Option func(*Store)

// WithCache mirrors binary node fields into c.
func WithCache(c cache.Store) Option {
	return func(s *Store) { s.cache = c }
}

// WithStateRepository enables Persist and Hydrate.
func WithStateRepository(r StateRepository) Option {
	return func(s *Store) { s.repo = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) { s.metrics = m }
}

// WithHistoryLimit overrides the undo stack size.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.historyLimit = n }
}

// WithWorkflowName sets the name used until a workflow is loaded.
func WithWorkflowName(name string) Option {
	return func(s *Store) { s.workflowName = name }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		g:         graph.New(),
		edgeStyle: graph.EdgeStyleCurved,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.history = NewHistory(s.historyLimit)
	if s.cache != nil {
		s.mirror = newCacheMirror(s.cache, s.logger, s.metrics)
	}
	return s
}

// Close drains pending cache writes. The store must not be mutated after
// Close.
func (s *Store) Close() {
	s.mu.Lock()
	m := s.mirror
	s.mirror = nil
	s.mu.Unlock()
	m.close()
}

// Flush waits for queued cache writes to be applied.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	m := s.mirror
	s.mu.RUnlock()
	return m.flush(ctx)
}

// touch records a structural or data change. Callers hold the write lock.
func (s *Store) touch(op string) {
	s.unsaved = true
	s.revision++
	s.metrics.RecordMutation(op)
}

// mirrorNode writes the node's binary fields to the cache, or evicts the
// entry when none remain.
func (s *Store) mirrorNode(n *graph.Node) {
	if s.mirror == nil || !n.Type.CarriesImages() {
		return
	}
	if p := cache.Extract(n.Data); p != nil {
		s.mirror.save(n.ID, p)
		return
	}
	s.mirror.evict(n.ID)
}

func (s *Store) nextNodeID(t graph.NodeType) string {
	s.nodeCounter = max(s.nodeCounter, s.g.MaxNodeSuffix()) + 1
	return graph.FormatNodeID(t, s.nodeCounter)
}

// --- reads ---

// Snapshot returns a deep copy of nodes, edges and groups.
func (s *Store) Snapshot() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Clone()
}

// Read calls fn with the live graph under the read lock. fn must not retain
// or modify anything it is given.
func (s *Store) Read(fn func(g *graph.Graph)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.g)
}

// Node returns a copy of the node, or nil.
func (s *Store) Node(id string) *graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Node(id).Clone()
}

// IncomingEdges returns copies of the edges targeting id, in insertion order.
func (s *Store) IncomingEdges(id string) []*graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := s.g.IncomingEdges(id)
	out := make([]*graph.Edge, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// EdgeStyle returns the workflow's edge rendering style.
func (s *Store) EdgeStyle() graph.EdgeStyle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeStyle
}

// SetEdgeStyle changes the edge rendering style.
func (s *Store) SetEdgeStyle(style graph.EdgeStyle) error {
	if !style.Valid() {
		return fmt.Errorf("%w: %q", graph.ErrInvalidEdgeStyle, style)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edgeStyle != style {
		s.edgeStyle = style
		s.touch("set_edge_style")
	}
	return nil
}

// WorkflowName returns the current workflow name.
func (s *Store) WorkflowName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workflowName
}

// SetWorkflowName renames the workflow.
func (s *Store) SetWorkflowName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflowName = name
	s.touch("rename_workflow")
}

// HasUnsavedChanges reports whether anything changed since the last save or
// load.
func (s *Store) HasUnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsaved
}

// MarkSaved clears the unsaved flag.
func (s *Store) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsaved = false
}

// markSavedAt clears the unsaved flag only if nothing changed since rev.
func (s *Store) markSavedAt(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision == rev {
		s.unsaved = false
	}
}

// --- nodes ---

// AddNode creates a node with the default payload for t and returns its id.
// Ids are never reused: the counter always moves past every existing suffix.
func (s *Store) AddNode(t graph.NodeType, pos graph.Position) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", graph.ErrInvalidNodeType, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextNodeID(t)
	n, err := graph.NewNode(id, t, pos)
	if err != nil {
		return "", err
	}
	if err := s.g.AddNode(n); err != nil {
		return "", err
	}
	s.touch("add_node")
	if s.mirror != nil {
		s.mirror.evict(id)
	}
	s.logger.Debug("node added", zap.String("node_id", id), zap.String("type", string(t)))
	return id, nil
}

// UpdateNodeData merges patch into the node's payload. The patch variant must
// match the node type; a StatePatch fits every type.
func (s *Store) UpdateNodeData(id string, patch graph.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.g.Node(id)
	if n == nil {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	data, err := graph.ApplyPatch(n.Data, patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	n.Data = data
	s.touch("update_node_data")
	s.mirrorNode(n)
	return nil
}

// UpdateNodePosition moves a node. Unknown ids are ignored.
func (s *Store) UpdateNodePosition(id string, pos graph.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.g.Node(id)
	if n == nil {
		return false
	}
	n.Position = pos
	s.touch("move_node")
	return true
}

// UpdateNodeSize records a measured node size. Unknown ids are ignored.
func (s *Store) UpdateNodeSize(id string, size graph.Size) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.g.Node(id)
	if n == nil {
		return false
	}
	n.Size = size
	s.touch("resize_node")
	return true
}

// RemoveNode deletes a node with its incident edges and evicts its cache
// entry.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeNode(id)
}

// RemoveNodes deletes every listed node and returns how many existed.
func (s *Store) RemoveNodes(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if s.removeNode(id) {
			removed++
		}
	}
	return removed
}

func (s *Store) removeNode(id string) bool {
	if !s.g.RemoveNode(id) {
		return false
	}
	s.touch("remove_node")
	if s.mirror != nil {
		s.mirror.evict(id)
	}
	return true
}

// SelectNodes marks exactly the given nodes as selected.
func (s *Store) SelectNodes(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.g.Nodes {
		n.Selected = slices.Contains(ids, n.ID)
	}
}

// ClearSelection deselects every node.
func (s *Store) ClearSelection() {
	s.SelectNodes()
}

// --- edges ---

// OnConnect adds an edge for a connection. Invalid connections and unknown
// endpoints are ignored; connecting the same handles twice yields one edge.
// It reports whether a new edge was added.
func (s *Store) OnConnect(c graph.Connection) bool {
	e, err := graph.NewEdge(c)
	if err != nil {
		s.logger.Debug("connection rejected",
			zap.String("source", c.Source),
			zap.String("target", c.Target),
			zap.Error(err))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	added, err := s.g.AddEdge(e)
	if err != nil || !added {
		return false
	}
	s.touch("connect")
	return true
}

// RemoveEdge deletes an edge. Unknown ids are ignored.
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.g.RemoveEdge(id) {
		return false
	}
	s.touch("remove_edge")
	return true
}

// ToggleEdgePause flips the pause flag on an edge and returns the new value.
func (s *Store) ToggleEdgePause(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.g.Edge(id)
	if e == nil {
		return false, fmt.Errorf("%w: %s", graph.ErrEdgeNotFound, id)
	}
	e.Data.HasPause = !e.Data.HasPause
	s.touch("toggle_pause")
	return e.Data.HasPause, nil
}
