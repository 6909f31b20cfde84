// Command prefrank is the ranking client: it signs in against the preference
// store, builds a ranking from a plan file and submits or reverts it.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/prefrank/internal/cli"
	"github.com/okian/prefrank/internal/config"
	"github.com/okian/prefrank/pkg/logger"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	// stdout carries results, logs go to stderr.
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("prefrank: " + err.Error() + "\n")
		return exitFailure
	}
	if cfg.LogFormat != string(logger.FormatText) {
		format, _ := logger.ParseFormat(cfg.LogFormat)
		_ = logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(format))
	}
	// The client is quiet unless asked otherwise.
	level := cfg.LogLevel
	if os.Getenv("PREFRANK_LOG_LEVEL") == "" {
		level = "warn"
	}
	if err := logger.SetLevelString(level); err != nil {
		_ = logger.SetLevelString("warn")
	}

	app := cli.New(cfg, cli.WithLogger(logger.Get()))
	if err := app.Run(ctx, args); err != nil {
		os.Stderr.WriteString("prefrank: " + err.Error() + "\n")
		if errors.Is(err, cli.ErrUsage) {
			return exitUsage
		}
		return exitFailure
	}
	return 0
}
