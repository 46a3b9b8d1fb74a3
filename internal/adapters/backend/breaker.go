package backend

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/app/usecases"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
)

// BreakerConfig holds configuration for circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// errUnsuccessful marks a delivered but failed response, so it counts
// against the breaker while the response itself is passed through.
var errUnsuccessful = errors.New("unsuccessful backend response")

// Breaker guards a generation client with a circuit breaker and counts every
// request in the metrics collector. While open, requests fail fast with
// MsgUnavailable.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	images  usecases.ImageGenerator
	texts   usecases.TextGenerator
	metrics *metrics.Collector
}

// NewBreaker wraps images and texts; either may be nil when the client only
// serves one kind.
func NewBreaker(cfg BreakerConfig, images usecases.ImageGenerator, texts usecases.TextGenerator, logger *zap.Logger, m *metrics.Collector) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{name: cfg.Name, images: images, texts: texts, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.SetBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the backend's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	m.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return b
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// GenerateImage implements usecases.ImageGenerator.
func (b *Breaker) GenerateImage(ctx context.Context, req *dto.ImageRequest) (*dto.ImageResponse, error) {
	if b.images == nil {
		return nil, dto.ErrBackendUnavailable
	}
	resp, err := execute(b, "image", func() (*dto.ImageResponse, bool, error) {
		resp, err := b.images.GenerateImage(ctx, req)
		return resp, resp != nil && resp.Success, err
	})
	if isOpen(err) {
		return &dto.ImageResponse{Error: MsgUnavailable}, nil
	}
	return resp, err
}

// GenerateText implements usecases.TextGenerator.
func (b *Breaker) GenerateText(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	if b.texts == nil {
		return nil, dto.ErrBackendUnavailable
	}
	resp, err := execute(b, "text", func() (*dto.TextResponse, bool, error) {
		resp, err := b.texts.GenerateText(ctx, req)
		return resp, resp != nil && resp.Success, err
	})
	if isOpen(err) {
		return &dto.TextResponse{Error: MsgUnavailable}, nil
	}
	return resp, err
}

func execute[R any](b *Breaker, kind string, call func() (R, bool, error)) (R, error) {
	out, err := b.cb.Execute(func() (any, error) {
		resp, ok, err := call()
		if err == nil && !ok {
			err = errUnsuccessful
		}
		return resp, err
	})
	b.metrics.RecordBackend(b.name, kind, err == nil)

	resp, _ := out.(R)
	if errors.Is(err, errUnsuccessful) {
		return resp, nil
	}
	return resp, err
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
