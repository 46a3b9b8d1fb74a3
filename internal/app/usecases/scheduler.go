package usecases

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/app/services"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
)

// Scheduler runs workflows: one topological pass per call, halting on the
// first failure, at pause edges, or when stopped.
// PRINCIPLES:
// - KISS: Sequential execution on the caller's goroutine
// - SRP: Ordering and halting only; node work is the Processor's
type Scheduler struct {
	store     GraphStore
	processor *Processor
	notifier  services.Notifier
	logger    *zap.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
}

// NewScheduler creates a scheduler. notifier, logger and m may be nil.
func NewScheduler(store GraphStore, processor *Processor, notifier services.Notifier, logger *zap.Logger, m *metrics.Collector) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     store,
		processor: processor,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("node-banana/scheduler"),
	}
}

// ExecuteWorkflow runs every node in dependency order, starting at
// startNodeID when it is set. The start node is never held by a pause edge,
// which is how a paused run resumes. A cyclic graph is rejected before any
// node runs. The returned error is the node failure that halted the run, if
// any; the result is always returned once the run was claimed.
func (s *Scheduler) ExecuteWorkflow(ctx context.Context, startNodeID string) (*dto.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("start_node_id", startNodeID),
	))
	defer span.End()

	if err := s.store.BeginRun(); err != nil {
		return nil, err
	}
	result := &dto.RunResult{
		RunID:       uuid.NewString(),
		StartNodeID: startNodeID,
		Executed:    []string{},
		StartTime:   time.Now(),
	}
	span.SetAttributes(attribute.String("run_id", result.RunID))
	log := s.logger.With(zap.String("run_id", result.RunID))

	order, err := s.plan(startNodeID)
	if err != nil {
		s.store.EndRun("")
		result.Error = err.Error()
		s.finish(span, result, dto.RunStatusFailed)
		if errors.Is(err, graph.ErrCyclicGraph) {
			s.notify(ctx, dto.NotifyError, "", "Workflow contains a cycle")
		}
		log.Warn("workflow not started", zap.Error(err))
		return result, err
	}
	log.Info("workflow started", zap.Int("nodes", len(order)), zap.String("start_node_id", startNodeID))

	status := dto.RunStatusCompleted
	var runErr error
	for _, id := range order {
		if !s.store.IsRunning() || ctx.Err() != nil {
			status = dto.RunStatusStopped
			break
		}
		if id != startNodeID && s.pausedBefore(id) {
			status = dto.RunStatusPaused
			result.PausedAt = id
			s.notify(ctx, dto.NotifyInfo, id, fmt.Sprintf("Workflow paused at %s", id))
			break
		}

		s.store.SetCurrentNode(id)
		err := s.runNode(ctx, id, false)
		result.Executed = append(result.Executed, id)
		if err != nil {
			status = dto.RunStatusFailed
			result.FailedNodeID = id
			result.Error = err.Error()
			runErr = err
			s.notify(ctx, dto.NotifyError, id, nodeMessage(err))
			break
		}
	}

	s.store.EndRun(result.PausedAt)
	s.finish(span, result, status)
	log.Info("workflow finished",
		zap.String("status", string(status)),
		zap.Int("executed", len(result.Executed)),
		zap.Duration("duration", result.Duration))
	return result, runErr
}

// RegenerateNode runs a single node again without touching its dependents.
// Connected inputs are used when present, the node's stored inputs
// otherwise.
func (s *Scheduler) RegenerateNode(ctx context.Context, nodeID string) (*dto.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "node.regenerate", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	if s.store.Node(nodeID) == nil {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}
	if err := s.store.BeginRun(); err != nil {
		return nil, err
	}
	result := &dto.RunResult{
		RunID:       uuid.NewString(),
		StartNodeID: nodeID,
		Executed:    []string{nodeID},
		StartTime:   time.Now(),
	}

	s.store.SetCurrentNode(nodeID)
	err := s.runNode(ctx, nodeID, true)
	s.store.EndRun("")

	status := dto.RunStatusCompleted
	if err != nil {
		status = dto.RunStatusFailed
		result.FailedNodeID = nodeID
		result.Error = err.Error()
		s.notify(ctx, dto.NotifyError, nodeID, nodeMessage(err))
	}
	s.finish(span, result, status)
	return result, err
}

// StopWorkflow asks the active run to stop before its next node. A backend
// call already in flight completes and its result is kept.
func (s *Scheduler) StopWorkflow() {
	s.store.StopRun()
	s.logger.Info("workflow stop requested")
}

// plan returns the execution order, truncated to begin at startNodeID.
func (s *Scheduler) plan(startNodeID string) ([]string, error) {
	var (
		order []string
		err   error
		found bool
	)
	s.store.Read(func(g *graph.Graph) {
		order, err = g.TopologicalOrder()
		found = startNodeID == "" || g.Node(startNodeID) != nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, startNodeID)
	}
	if startNodeID != "" {
		order = order[slices.Index(order, startNodeID):]
	}
	return order, nil
}

func (s *Scheduler) pausedBefore(id string) bool {
	paused := false
	s.store.Read(func(g *graph.Graph) {
		for _, e := range g.IncomingEdges(id) {
			if e.Data.HasPause {
				paused = true
				return
			}
		}
	})
	return paused
}

func (s *Scheduler) runNode(ctx context.Context, id string, regenerate bool) error {
	nodeType := "unknown"
	if n := s.store.Node(id); n != nil {
		nodeType = string(n.Type)
	}
	ctx, span := s.tracer.Start(ctx, "node.execute", trace.WithAttributes(
		attribute.String("node_id", id),
		attribute.String("node_type", nodeType),
	))
	defer span.End()

	start := time.Now()
	err := s.processor.Process(ctx, id, regenerate)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("node failed",
			zap.String("node_id", id),
			zap.String("type", nodeType),
			zap.Error(err))
	} else {
		s.logger.Debug("node executed",
			zap.String("node_id", id),
			zap.String("type", nodeType),
			zap.Duration("duration", elapsed))
	}
	s.metrics.RecordNode(nodeType, outcome, elapsed)
	return err
}

func (s *Scheduler) finish(span trace.Span, result *dto.RunResult, status dto.RunStatus) {
	result.Finish(status)
	s.metrics.RecordRun(string(status))
	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.Int("executed", len(result.Executed)),
	)
	if status == dto.RunStatusFailed {
		span.SetStatus(codes.Error, result.Error)
	}
}

func (s *Scheduler) notify(ctx context.Context, level dto.NotificationLevel, nodeID, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, dto.Notification{Level: level, Message: msg, NodeID: nodeID, Time: time.Now()})
}

// nodeMessage returns the user-facing part of a node failure.
func nodeMessage(err error) string {
	var nodeErr *dto.NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Message
	}
	return err.Error()
}
