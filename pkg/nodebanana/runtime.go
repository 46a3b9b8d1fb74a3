package nodebanana

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	graphrepo "github.com/ttmouse/node-banana/internal/adapters/repository/graph"
	"github.com/ttmouse/node-banana/internal/adapters/repository/memory"
	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/app/services"
	"github.com/ttmouse/node-banana/internal/app/usecases"
	"github.com/ttmouse/node-banana/internal/core/cache"
	coregraph "github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/pkg/serialization"
	"github.com/ttmouse/node-banana/pkg/validation"
)

// Re-export core types for convenience
type (
	Graph        = coregraph.Graph
	Node         = coregraph.Node
	Edge         = coregraph.Edge
	NodeType     = coregraph.NodeType
	WorkflowFile = serialization.WorkflowFile
	RunResult    = dto.RunResult
	Notification = dto.Notification
)

// notificationLimit bounds the notifications a runtime keeps.
const notificationLimit = 100

// Options configures a Runtime. Zero values select in-memory components and
// no generation backends.
type Options struct {
	Images           usecases.ImageGenerator
	Texts            usecases.TextGenerator
	Cache            cache.Store
	StateRepository  services.StateRepository
	Logger           *zap.Logger
	Metrics          *metrics.Collector
	WorkflowName     string
	HistoryLimit     int
	OutputDir        string
	AutosavePath     string
	AutosaveInterval time.Duration
}

// Runtime owns one editable workflow and everything needed to run it.
type Runtime struct {
	store         *services.Store
	scheduler     *usecases.Scheduler
	notifications *services.Recorder
	outputs       *services.OutputSaver
	autosaver     *services.Autosaver
	logger        *zap.Logger
	closers       []func() error
}

// NewRuntime constructs a runtime from opts.
func NewRuntime(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := opts.Cache
	if c == nil {
		c = memory.NewImageCache(memory.Config{})
	}
	repo := opts.StateRepository
	if repo == nil {
		repo = graphrepo.NewInMemoryStateRepository()
	}

	notifications := services.NewRecorder(notificationLimit, services.NewLogNotifier(logger))
	storeOpts := []services.Option{
		services.WithCache(c),
		services.WithStateRepository(repo),
		services.WithLogger(logger),
		services.WithMetrics(opts.Metrics),
	}
	if opts.HistoryLimit > 0 {
		storeOpts = append(storeOpts, services.WithHistoryLimit(opts.HistoryLimit))
	}
	if opts.WorkflowName != "" {
		storeOpts = append(storeOpts, services.WithWorkflowName(opts.WorkflowName))
	}
	store := services.NewStore(storeOpts...)
	outputs := services.NewOutputSaver(opts.OutputDir, notifications, logger)

	var sink usecases.OutputSink
	if opts.OutputDir != "" {
		sink = outputs
	}
	processor := usecases.NewProcessor(store, opts.Images, opts.Texts, sink, logger)

	return &Runtime{
		store:         store,
		scheduler:     usecases.NewScheduler(store, processor, notifications, logger, opts.Metrics),
		notifications: notifications,
		outputs:       outputs,
		autosaver:     services.NewAutosaver(store, opts.AutosavePath, opts.AutosaveInterval, notifications, logger),
		logger:        logger,
	}
}

// Store exposes the graph store for editing.
func (rt *Runtime) Store() *services.Store { return rt.store }

// Scheduler exposes the workflow scheduler.
func (rt *Runtime) Scheduler() *usecases.Scheduler { return rt.scheduler }

// Autosaver exposes the background autosave job.
func (rt *Runtime) Autosaver() *services.Autosaver { return rt.autosaver }

// Notifications returns the most recent notifications, oldest first.
func (rt *Runtime) Notifications() []Notification { return rt.notifications.Items() }

// LoadWorkflow replaces the live workflow with w.
func (rt *Runtime) LoadWorkflow(w *WorkflowFile) ([]validation.Issue, error) {
	return rt.store.LoadWorkflow(w)
}

// LoadFile reads and loads a workflow file.
func (rt *Runtime) LoadFile(path string) ([]validation.Issue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	w, err := serialization.DecodeWorkflow(b)
	if err != nil {
		return nil, err
	}
	return rt.store.LoadWorkflow(w)
}

// ExportWorkflow snapshots the live workflow.
func (rt *Runtime) ExportWorkflow() *WorkflowFile {
	return rt.store.ExportWorkflow()
}

// SaveFile writes the live workflow to path and marks it saved.
func (rt *Runtime) SaveFile(path string) error {
	b, err := serialization.EncodeWorkflow(rt.store.ExportWorkflow())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	rt.store.MarkSaved()
	return nil
}

// Run executes the workflow, from startNodeID when it is set.
func (rt *Runtime) Run(ctx context.Context, startNodeID string) (*RunResult, error) {
	return rt.scheduler.ExecuteWorkflow(ctx, startNodeID)
}

// Regenerate runs one node again.
func (rt *Runtime) Regenerate(ctx context.Context, nodeID string) (*RunResult, error) {
	return rt.scheduler.RegenerateNode(ctx, nodeID)
}

// Stop asks the active run to stop.
func (rt *Runtime) Stop() {
	rt.scheduler.StopWorkflow()
}

// Close waits for queued outputs, persists local state and releases the
// cache and database handles.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.outputs.Close()
	err := rt.store.Persist(ctx)
	rt.store.Close()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, rt.closers[i]())
	}
	return err
}
