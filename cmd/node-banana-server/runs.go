package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
)

// runManager owns the single background run the server allows at a time.
type runManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	last   *dto.RunResult
	logger *zap.Logger
	wg     sync.WaitGroup
}

func newRunManager(logger *zap.Logger) *runManager {
	return &runManager{logger: logger}
}

// start launches fn in the background. It reports false when a run is
// already in progress.
func (m *runManager) start(fn func(ctx context.Context) (*dto.RunResult, error)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := fn(ctx)
		if err != nil {
			m.logger.Warn("background run ended with error", zap.Error(err))
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if res != nil {
			m.last = res
		}
		cancel()
		m.cancel = nil
	}()
	return true
}

// stop cancels the background run's context, aborting backend calls in
// flight. Only used on shutdown; user stops go through the scheduler.
func (m *runManager) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// running reports whether a background run is in progress.
func (m *runManager) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// lastResult returns the result of the most recent finished run.
func (m *runManager) lastResult() *dto.RunResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// wait blocks until the background run has returned.
func (m *runManager) wait() {
	m.wg.Wait()
}
