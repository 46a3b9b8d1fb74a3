package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
)

type mirrorKind int

const (
	mirrorSave mirrorKind = iota
	mirrorDelete
	mirrorClear
	mirrorBarrier
)

type mirrorOp struct {
	kind    mirrorKind
	nodeID  string
	payload *cache.Payload
	done    chan struct{}
}

// cacheMirror applies cache writes on a single worker so that saves and
// deletes for one node land in the order they were issued. Failures are
// logged and counted, never surfaced to the mutation that caused them.
type cacheMirror struct {
	store   cache.Store
	ops     chan mirrorOp
	logger  *zap.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newCacheMirror(store cache.Store, logger *zap.Logger, m *metrics.Collector) *cacheMirror {
	ctx, cancel := context.WithCancel(context.Background())
	cm := &cacheMirror{
		store:   store,
		ops:     make(chan mirrorOp, 256),
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
	cm.wg.Add(1)
	go cm.run()
	return cm
}

func (m *cacheMirror) run() {
	defer m.wg.Done()
	for op := range m.ops {
		if op.kind == mirrorBarrier {
			close(op.done)
			continue
		}
		m.apply(op)
	}
}

func (m *cacheMirror) apply(op mirrorOp) {
	start := time.Now()
	var (
		name string
		err  error
	)
	switch op.kind {
	case mirrorSave:
		name = "save"
		err = m.store.Save(m.ctx, op.nodeID, op.payload)
	case mirrorDelete:
		name = "delete"
		err = m.store.Delete(m.ctx, op.nodeID)
	case mirrorClear:
		name = "clear"
		err = m.store.Clear(m.ctx)
	}
	m.metrics.RecordCache(name, err, time.Since(start))
	if err != nil {
		m.logger.Warn("image cache write failed",
			zap.String("op", name),
			zap.String("node_id", op.nodeID),
			zap.Error(err))
	}
}

func (m *cacheMirror) save(nodeID string, p *cache.Payload) {
	if m != nil {
		m.ops <- mirrorOp{kind: mirrorSave, nodeID: nodeID, payload: p}
	}
}

func (m *cacheMirror) evict(nodeID string) {
	if m != nil {
		m.ops <- mirrorOp{kind: mirrorDelete, nodeID: nodeID}
	}
}

func (m *cacheMirror) clear() {
	if m != nil {
		m.ops <- mirrorOp{kind: mirrorClear}
	}
}

// flush waits until every operation queued before the call has been applied.
func (m *cacheMirror) flush(ctx context.Context) error {
	if m == nil {
		return nil
	}
	done := make(chan struct{})
	select {
	case m.ops <- mirrorOp{kind: mirrorBarrier, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains pending operations and stops the worker.
func (m *cacheMirror) close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.ops)
		m.wg.Wait()
		m.cancel()
	})
}
