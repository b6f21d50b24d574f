package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/bot"
	"github.com/alanyoungcy/arbwatch/internal/notify"
	"github.com/alanyoungcy/arbwatch/internal/server"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/server/ws"
	"github.com/alanyoungcy/arbwatch/internal/service"
)

// ServerMode runs the REST API and the WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startArchive(ctx, g, deps)
	return g.Wait()
}

// BotMode runs the Telegram bot.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startBot(ctx, g, deps)
	return g.Wait()
}

// MonitorMode runs the periodic watchlist scan.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API, the bot, the monitor and the archive job in one
// process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	a.startBot(ctx, g, deps)
	a.startMonitor(ctx, g, deps)
	a.startArchive(ctx, g, deps)
	return g.Wait()
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		Channel:   service.ChannelArb,
		Exchanges: deps.Registry.IDs(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.cfg.Mode, deps.Pingers, deps.Registry.Fees, a.logger),
		Users:     handler.NewUserHandler(deps.WatchlistService, a.logger),
		Pairs:     handler.NewPairHandler(deps.WatchlistService, a.logger),
		Watchlist: handler.NewWatchlistHandler(deps.WatchlistService, a.logger),
		Arb: handler.NewArbHandler(deps.ArbService, deps.Registry,
			decimal.NewFromFloat(a.cfg.Arbitrage.DefaultCapital), a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func (a *App) startBot(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Telegram == nil {
		a.logger.WarnContext(ctx, "bot: no token configured, bot disabled")
		return
	}
	commands := bot.NewCommands(deps.WatchlistService, deps.ArbService,
		decimal.NewFromFloat(a.cfg.Arbitrage.DefaultCapital), a.logger)
	b := bot.New(deps.Telegram, commands, deps.RateLimiter, bot.Config{
		PollTimeout: a.cfg.Bot.PollTimeout.Duration,
		RateLimit:   a.cfg.Bot.RateLimit,
		RateWindow:  a.cfg.Bot.RateWindow.Duration,
	}, a.logger)
	g.Go(func() error {
		return b.Run(ctx)
	})
}

func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Telegram == nil {
		a.logger.WarnContext(ctx, "monitor: no bot token configured, monitor disabled")
		return
	}
	m := service.NewMonitor(deps.ArbService, deps.WatchStore, deps.LockManager, deps.RateLimiter,
		deps.Telegram, deps.Notifier, service.MonitorConfig{
			Interval:      a.cfg.Monitor.Interval.Duration,
			Capital:       decimal.NewFromFloat(a.cfg.Monitor.Capital),
			MinProfitPct:  decimal.NewFromFloat(a.cfg.Monitor.MinProfitPct),
			AlertCooldown: a.cfg.Monitor.AlertCooldown.Duration,
			Concurrency:   a.cfg.Monitor.Concurrency,
		}, a.logger)
	g.Go(func() error {
		return m.Run(ctx)
	})
}

func (a *App) startArchive(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	g.Go(func() error {
		return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, retention)
	})
}

// notifyStartup tells the operator channels which mode came up.
func (a *App) notifyStartup(ctx context.Context, deps *Dependencies) {
	if !deps.Notifier.Enabled() {
		return
	}
	msg := fmt.Sprintf("mode: %s\nexchanges: %s", a.cfg.Mode, joinIDs(deps))
	if err := deps.Notifier.Notify(ctx, notify.EventStartup, "arbwatch started", msg); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
	}
}

// notifyFatal reports an error that stopped the process. ctx may already be
// cancelled, so delivery gets its own deadline.
func (a *App) notifyFatal(ctx context.Context, deps *Dependencies, runErr error) {
	if !deps.Notifier.Enabled() {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	msg := fmt.Sprintf("mode: %s\nerror: %v", a.cfg.Mode, runErr)
	if err := deps.Notifier.Notify(nctx, notify.EventError, "arbwatch stopped", msg); err != nil {
		a.logger.WarnContext(ctx, "fatal notification failed", slog.String("error", err.Error()))
	}
}

func joinIDs(deps *Dependencies) string {
	ids := deps.Registry.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
