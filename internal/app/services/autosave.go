package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// Autosaver periodically writes the workflow file when it has unsaved
// changes. It skips ticks while a run is active.
type Autosaver struct {
	store    *Store
	path     string
	interval time.Duration
	notifier Notifier
	logger   *zap.Logger
}

// NewAutosaver creates an autosaver for store writing to path.
func NewAutosaver(store *Store, path string, interval time.Duration, notifier Notifier, logger *zap.Logger) *Autosaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{store: store, path: path, interval: interval, notifier: notifier, logger: logger}
}

// Run saves on every tick until ctx is done. With no path or interval it
// just waits for ctx.
func (a *Autosaver) Run(ctx context.Context) error {
	if a.path == "" || a.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !a.store.HasUnsavedChanges() || a.store.IsActive() {
				continue
			}
			if err := a.SaveNow(ctx); err != nil {
				a.logger.Warn("autosave failed", zap.String("path", a.path), zap.Error(err))
				notify(ctx, a.notifier, dto.NotifyWarning, "", fmt.Sprintf("Auto-save failed: %v", err))
			}
		}
	}
}

// SaveNow writes the workflow file, clears the unsaved flag if nothing
// changed meanwhile and persists local state.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	if a.path == "" {
		return ErrNoAutosavePath
	}
	w, rev := a.store.exportWithRevision()
	b, err := serialization.EncodeWorkflow(w)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(a.path, b); err != nil {
		return err
	}
	a.store.markSavedAt(rev)
	if err := a.store.Persist(ctx); err != nil {
		a.logger.Warn("local state persist failed", zap.Error(err))
	}
	a.logger.Debug("workflow saved", zap.String("path", a.path))
	return nil
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".autosave-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
