// Command arbwatch watches cryptocurrency exchanges for cross-exchange
// arbitrage. It loads configuration, validates it, wires dependencies, sets up
// signal handling and runs the configured mode, or a single check with -check.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/app"
	"github.com/alanyoungcy/arbwatch/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without os.Exit, so deferred cleanup always runs. It returns the
// process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("arbwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.toml", "path to configuration file")
	check := fs.String("check", "", "run one arbitrage check for SYMBOL and exit")
	capitalFlag := fs.String("capital", "", "capital for -check (default arbitrage.default_capital)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// -check prints its report on stdout, so logs move to stderr.
	logOut := stdout
	if *check != "" {
		logOut = stderr
	}

	logger := newLogger("info", logOut)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger = newLogger(cfg.LogLevel, logOut)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *check != "" {
		return runCheck(ctx, cfg, logger, *check, *capitalFlag, stdout, stderr)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("arbwatch starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if !errors.Is(err, context.Canceled) {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(stderr, "fatal: %v\n", err)
			return 1
		}
		logger.Info("application shut down gracefully")
	}

	logger.Info("arbwatch stopped")
	return 0
}

// runCheck performs a one-off check and returns the process exit code.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, symbol, capitalFlag string, stdout, stderr io.Writer) int {
	if err := cfg.ValidateEngine(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	capital := decimal.NewFromFloat(cfg.Arbitrage.DefaultCapital)
	if strings.TrimSpace(capitalFlag) != "" {
		c, err := decimal.NewFromString(strings.TrimSpace(capitalFlag))
		if err != nil {
			fmt.Fprintf(stderr, "invalid -capital %q: %v\n", capitalFlag, err)
			return 2
		}
		capital = c
	}

	if err := app.New(cfg, logger).CheckOnce(ctx, symbol, capital, stdout); err != nil {
		return 1
	}
	return 0
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
