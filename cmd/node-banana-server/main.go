// Package main provides the node-banana HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ttmouse/node-banana/internal/config"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/logging"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/internal/infrastructure/tracing"
	"github.com/ttmouse/node-banana/pkg/nodebanana"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	serviceName     = "node-banana-server"
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file")
	flag.Parse()

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cfgLog := config.Load(configPath)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Debug,
		zap.String("service", serviceName),
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_time", BuildTime),
	)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	cfgLog.FlushToZap(logger)

	shutdownTracing, err := tracing.Init(ctx, serviceName, Version, cfg.OtelCollectorURL)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("node_banana")
	rt, err := nodebanana.FromConfig(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	if err := rt.Store().Hydrate(ctx); err != nil && !errors.Is(err, graph.ErrGraphNotFound) {
		logger.Warn("failed to restore local state", zap.Error(err))
	}

	srv := newServer(rt, collector, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return rt.Autosaver().Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	runErr := g.Wait()

	rt.Stop()
	srv.runs.stop()
	srv.runs.wait()

	cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, rt.Close(cctx))
}
