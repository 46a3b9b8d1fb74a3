package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/imaging"
)

type outputJob struct {
	nodeID string
	image  string
}

// OutputSaver writes generated images to a directory in the background.
// Saving is best effort: failures are reported to the notifier and never
// reach the run that produced the image.
type OutputSaver struct {
	dir      string
	jobs     chan outputJob
	notifier Notifier
	logger   *zap.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	done bool
}

// NewOutputSaver starts a saver writing to dir. An empty dir disables it.
func NewOutputSaver(dir string, notifier Notifier, logger *zap.Logger) *OutputSaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &OutputSaver{dir: dir, notifier: notifier, logger: logger}
	if dir == "" {
		return o
	}
	o.jobs = make(chan outputJob, 32)
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *OutputSaver) run() {
	defer o.wg.Done()
	for job := range o.jobs {
		path, err := o.Save(job.nodeID, job.image)
		if err != nil {
			o.logger.Warn("output save failed", zap.String("node_id", job.nodeID), zap.Error(err))
			notify(context.Background(), o.notifier, dto.NotifyWarning, job.nodeID,
				fmt.Sprintf("Could not save output image: %v", err))
			continue
		}
		o.logger.Debug("output saved", zap.String("node_id", job.nodeID), zap.String("path", path))
	}
}

// SaveOutput queues an image for writing. It never blocks: when the queue
// is full the image is dropped with a warning.
func (o *OutputSaver) SaveOutput(_ context.Context, nodeID, image string) {
	if o == nil || o.jobs == nil || image == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return
	}
	select {
	case o.jobs <- outputJob{nodeID: nodeID, image: image}:
	default:
		o.logger.Warn("output queue full, image not saved", zap.String("node_id", nodeID))
	}
}

// Save writes one image synchronously as {nodeID}-{uuid}.{ext} and returns
// the file path.
func (o *OutputSaver) Save(nodeID, image string) (string, error) {
	d, err := imaging.ParseDataURL(image)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(o.dir, fmt.Sprintf("%s-%s.%s", nodeID, uuid.NewString(), d.Extension()))
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}

// Close waits for queued images to be written.
func (o *OutputSaver) Close() {
	if o == nil || o.jobs == nil {
		return
	}
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.done = true
	close(o.jobs)
	o.mu.Unlock()
	o.wg.Wait()
}
