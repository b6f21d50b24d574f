package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/arbwatch/internal/blob/s3"
	"github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/service"
	"github.com/alanyoungcy/arbwatch/internal/store/memory"
	"github.com/alanyoungcy/arbwatch/internal/store/postgres"
	"github.com/alanyoungcy/arbwatch/internal/telegram"
)

// Dependencies bundles everything the application modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	*Core

	// Stores
	UserStore  domain.UserStore
	PairStore  domain.CurrencyPairStore
	WatchStore domain.WatchlistStore
	CheckStore domain.CheckStore

	// Redis
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	QuoteCache  domain.QuoteCache

	// Services
	ArbService       *service.ArbService
	WatchlistService *service.WatchlistService

	// Telegram is nil when no bot token is configured.
	Telegram *telegram.Client
	Notifier *notify.Notifier
	// Archiver is nil unless archive.enabled.
	Archiver *s3blob.Archiver

	// Pingers are reported by the health endpoint.
	Pingers map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}

	core, err := BuildCore(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: engine: %w", err))
	}
	deps.Core = core

	// --- Stores ---
	switch strings.ToLower(cfg.Database.Driver) {
	case "memory":
		logger.WarnContext(ctx, "using in-memory store; data is lost on restart")
		mem := memory.New()
		deps.UserStore = mem.Users()
		deps.PairStore = mem.Pairs()
		deps.WatchStore = mem.Watchlist()
		deps.CheckStore = mem.Checks()
	default:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.UserStore = postgres.NewUserStore(pool)
		deps.PairStore = postgres.NewCurrencyPairStore(pool)
		deps.WatchStore = postgres.NewWatchlistStore(pool)
		deps.CheckStore = postgres.NewCheckStore(pool)
		deps.Pingers["postgres"] = pgClient
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Pingers["redis"] = redisClient

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.QuoteCache = redis.NewQuoteCache(redisClient, redis.DefaultQuoteTTL)

	// --- Services ---
	deps.ArbService = service.NewArbService(deps.Engine, deps.Normalizer, deps.CheckStore,
		deps.QuoteCache, deps.SignalBus, logger)
	deps.WatchlistService = service.NewWatchlistService(deps.UserStore, deps.PairStore, deps.WatchStore,
		deps.Normalizer, deps.Registry, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			telegram.New(telegram.Config{Token: cfg.Notify.TelegramToken, APIURL: cfg.Bot.APIURL}),
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, nil))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- S3 archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Pingers["s3"] = s3Client
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client),
			deps.CheckStore, logger).WithNotifier(deps.Notifier)
	}

	// --- Telegram ---
	if cfg.Bot.Token != "" {
		deps.Telegram = telegram.New(telegram.Config{Token: cfg.Bot.Token, APIURL: cfg.Bot.APIURL})
	}

	return deps, cleanup, nil
}
