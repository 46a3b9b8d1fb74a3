// Package main provides the node-banana CLI application
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/config"
	"github.com/ttmouse/node-banana/internal/infrastructure/logging"
	"github.com/ttmouse/node-banana/pkg/nodebanana"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage:
  node-banana run [-config file] [-start node-id] [-o out.json] <workflow.json>
  node-banana version
`

func main() {
	if code := run(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "node-banana %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		return 0
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runWorkflow(ctx, args[1:], stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return 2
}

// runWorkflow executes one workflow file and writes the result back out.
func runWorkflow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "config file")
	start := fs.String("start", "", "node id to start from")
	out := fs.String("o", "", "output workflow file (defaults to the input file)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("run needs exactly one workflow file")
	}
	input := fs.Arg(0)
	if *out == "" {
		*out = input
	}

	cfg, cfgLog := config.Load(*configPath)
	logger, err := logging.New(cfg.Debug, zap.String("version", Version))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	cfgLog.FlushToZap(logger)

	rt, err := nodebanana.FromConfig(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Warn("runtime close failed", zap.Error(err))
		}
	}()

	issues, err := rt.LoadFile(input)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		fmt.Fprintf(stderr, "repaired: %s\n", issue)
	}

	res, runErr := rt.Run(ctx, *start)
	if res != nil {
		fmt.Fprintf(stdout, "run %s: %s, %d node(s) executed in %s\n",
			res.RunID, res.Status, len(res.Executed), res.Duration)
		if res.PausedAt != "" {
			fmt.Fprintf(stdout, "paused at %s; resume with -start %s\n", res.PausedAt, res.PausedAt)
		}
	}
	// The file is written even after a failure so node errors are kept.
	if err := rt.SaveFile(*out); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
