package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
)

// Notifier receives user-facing messages from the scheduler and from
// background jobs.
type Notifier interface {
	Notify(ctx context.Context, n dto.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n dto.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n dto.Notification) { f(ctx, n) }

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n dto.Notification) {
	fields := []zap.Field{zap.String("level", string(n.Level))}
	if n.NodeID != "" {
		fields = append(fields, zap.String("node_id", n.NodeID))
	}
	switch n.Level {
	case dto.NotifyError:
		l.logger.Error(n.Message, fields...)
	case dto.NotifyWarning:
		l.logger.Warn(n.Message, fields...)
	default:
		l.logger.Info(n.Message, fields...)
	}
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []dto.Notification
	limit int
	next  Notifier
}

// NewRecorder keeps up to limit notifications and forwards each to next
// when it is not nil.
func NewRecorder(limit int, next Notifier) *Recorder {
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{limit: limit, next: next}
}

func (r *Recorder) Notify(ctx context.Context, n dto.Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	r.mu.Lock()
	r.items = append(r.items, n)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
	r.mu.Unlock()
	if r.next != nil {
		r.next.Notify(ctx, n)
	}
}

// Items returns a copy of the recorded notifications, oldest first.
func (r *Recorder) Items() []dto.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func notify(ctx context.Context, n Notifier, level dto.NotificationLevel, nodeID, msg string) {
	if n == nil {
		return
	}
	n.Notify(ctx, dto.Notification{Level: level, Message: msg, NodeID: nodeID, Time: time.Now()})
}
