package nodebanana

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/adapters/backend"
	"github.com/ttmouse/node-banana/internal/adapters/backend/gemini"
	"github.com/ttmouse/node-banana/internal/adapters/backend/openai"
	graphrepo "github.com/ttmouse/node-banana/internal/adapters/repository/graph"
	"github.com/ttmouse/node-banana/internal/adapters/repository/memory"
	"github.com/ttmouse/node-banana/internal/adapters/repository/postgres"
	"github.com/ttmouse/node-banana/internal/adapters/repository/sqlite"
	"github.com/ttmouse/node-banana/internal/app/services"
	"github.com/ttmouse/node-banana/internal/app/usecases"
	"github.com/ttmouse/node-banana/internal/config"
	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// memoryCacheLimitMB bounds the in-memory image cache.
const memoryCacheLimitMB = 512

// FromConfig builds a runtime from settings: the configured cache backend,
// local state store and generation backends.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cacheStore, repo, closers, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	images, texts := Backends(cfg, logger, m)

	rt := NewRuntime(Options{
		Images:           images,
		Texts:            texts,
		Cache:            cacheStore,
		StateRepository:  repo,
		Logger:           logger,
		Metrics:          m,
		WorkflowName:     cfg.WorkflowName,
		OutputDir:        cfg.OutputDir,
		AutosavePath:     cfg.AutosavePath,
		AutosaveInterval: cfg.AutosaveInterval,
	})
	rt.closers = closers
	logger.Info("runtime ready",
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Bool("image_backend", images != nil),
		zap.Bool("text_backend", texts != nil))
	return rt, nil
}

// Backends builds the generation clients that have API keys, each behind
// its own circuit breaker. Either result may be nil.
func Backends(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (usecases.ImageGenerator, usecases.TextGenerator) {
	var (
		images usecases.ImageGenerator
		texts  usecases.TextGenerator
	)
	router := backend.NewTextRouter()
	if cfg.GeminiAPIKey != "" {
		client := gemini.NewClient(logger, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.BackendTimeout)
		guarded := backend.NewBreaker(backend.DefaultBreakerConfig(backend.ProviderGoogle), client, client, logger, m)
		images = guarded
		router.Register(backend.ProviderGoogle, guarded)
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(logger, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.BackendTimeout)
		router.Register(backend.ProviderOpenAI,
			backend.NewBreaker(backend.DefaultBreakerConfig(backend.ProviderOpenAI), nil, client, logger, m))
	}
	if !router.Empty() {
		texts = router
	}
	return images, texts
}

func openStorage(ctx context.Context, cfg *config.Config) (cache.Store, services.StateRepository, []func() error, error) {
	compression, err := serialization.ParseCompression(cfg.CacheCompression)
	if err != nil {
		return nil, nil, nil, err
	}
	var key []byte
	if cfg.CacheEncryptKey != "" {
		key = []byte(cfg.CacheEncryptKey)
	}
	cacheSer, err := serialization.NewSerializer(serialization.SerializationConfig{
		Codec:       serialization.NewMsgPackCodec(),
		Compression: compression,
		EncryptKey:  key,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	stateSer, err := serialization.StateSerializer(compression, key)
	if err != nil {
		return nil, nil, nil, err
	}

	switch cfg.CacheBackend {
	case config.CacheSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		c := sqlite.NewImageCache(db, cacheSer)
		s := sqlite.NewStateStore(db, stateSer)
		if err := c.CreateTables(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("create cache table: %w", err)
		}
		if err := s.CreateTables(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("create state table: %w", err)
		}
		return c, s, []func() error{db.Close}, nil

	case config.CachePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		c := postgres.NewImageCache(pool, cacheSer)
		s := postgres.NewStateStore(pool, stateSer)
		if err := c.CreateTables(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("create cache table: %w", err)
		}
		if err := s.CreateTables(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("create state table: %w", err)
		}
		return c, s, []func() error{func() error { pool.Close(); return nil }}, nil
	}

	c := memory.NewImageCache(memory.Config{MaxMemoryMB: memoryCacheLimitMB, Serializer: cacheSer})
	return c, graphrepo.NewInMemoryStateRepository(), nil, nil
}
