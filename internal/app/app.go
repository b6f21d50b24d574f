// Package app wires the arbitrage engine, stores, caches and front ends
// together and runs them in the configured mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the goroutines of the configured mode
// and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.notifyStartup(ctx, deps)

	err = a.runMode(ctx, deps)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.notifyFatal(ctx, deps, err)
	}
	return err
}

func (a *App) runMode(ctx context.Context, deps *Dependencies) error {
	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx, deps)
	case "bot":
		return a.BotMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// CheckOnce runs a single arbitrage check without Postgres or Redis and writes
// the report to out. A failed check is returned as an error after the
// collected prices were written.
func (a *App) CheckOnce(ctx context.Context, symbol string, capital decimal.Decimal, out io.Writer) error {
	core, err := BuildCore(a.cfg, a.logger)
	if err != nil {
		return err
	}
	report, err := core.Engine.Check(ctx, symbol, capital)
	if err != nil {
		fmt.Fprintln(out, arbitrage.FormatFailure(strings.ToUpper(strings.TrimSpace(symbol)), report.Snapshot, err))
		return err
	}
	fmt.Fprintln(out, arbitrage.FormatReport(report))
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
