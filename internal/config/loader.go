package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBWATCH_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; call Validate or ValidateEngine after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchanges ──
	setStringSlice(&cfg.Exchanges.Enabled, "ARBWATCH_EXCHANGES_ENABLED")
	setDuration(&cfg.Exchanges.Timeout, "ARBWATCH_EXCHANGES_TIMEOUT")
	setDuration(&cfg.Exchanges.AggregateMargin, "ARBWATCH_EXCHANGES_AGGREGATE_MARGIN")
	setInt(&cfg.Exchanges.RetryAttempts, "ARBWATCH_EXCHANGES_RETRY_ATTEMPTS")
	setDuration(&cfg.Exchanges.RetryBackoff, "ARBWATCH_EXCHANGES_RETRY_BACKOFF")
	for _, id := range domain.SupportedExchanges {
		setVenue(cfg, id)
	}

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.DefaultCapital, "ARBWATCH_ARBITRAGE_DEFAULT_CAPITAL")
	setStringSlice(&cfg.Arbitrage.QuoteSuffixes, "ARBWATCH_ARBITRAGE_QUOTE_SUFFIXES")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "ARBWATCH_MONITOR_INTERVAL")
	setFloat64(&cfg.Monitor.Capital, "ARBWATCH_MONITOR_CAPITAL")
	setFloat64(&cfg.Monitor.MinProfitPct, "ARBWATCH_MONITOR_MIN_PROFIT_PCT")
	setDuration(&cfg.Monitor.AlertCooldown, "ARBWATCH_MONITOR_ALERT_COOLDOWN")
	setInt(&cfg.Monitor.Concurrency, "ARBWATCH_MONITOR_CONCURRENCY")

	// ── Bot ──
	setStr(&cfg.Bot.Token, "ARBWATCH_BOT_TOKEN")
	setStr(&cfg.Bot.Token, "TELEGRAM_BOT_TOKEN") // compatibility alias
	setStr(&cfg.Bot.APIURL, "ARBWATCH_BOT_API_URL")
	setDuration(&cfg.Bot.PollTimeout, "ARBWATCH_BOT_POLL_TIMEOUT")
	setInt(&cfg.Bot.RateLimit, "ARBWATCH_BOT_RATE_LIMIT")
	setDuration(&cfg.Bot.RateWindow, "ARBWATCH_BOT_RATE_WINDOW")

	// ── Database ──
	setStr(&cfg.Database.Driver, "ARBWATCH_DATABASE_DRIVER")
	setStr(&cfg.Database.DSN, "ARBWATCH_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ARBWATCH_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBWATCH_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBWATCH_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "ARBWATCH_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBWATCH_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBWATCH_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ARBWATCH_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBWATCH_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBWATCH_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBWATCH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBWATCH_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "ARBWATCH_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "ARBWATCH_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBWATCH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBWATCH_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ARBWATCH_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBWATCH_MODE")
	setStr(&cfg.LogLevel, "ARBWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setVenue applies ARBWATCH_EXCHANGES_<ID>_{BASE_URL,MAKER_FEE,TAKER_FEE}.
func setVenue(cfg *Config, id domain.ExchangeID) {
	prefix := "ARBWATCH_EXCHANGES_" + strings.ToUpper(string(id)) + "_"
	v := cfg.Exchanges.Venue(id)
	before := v
	setStr(&v.BaseURL, prefix+"BASE_URL")
	maker, taker := *v.MakerFee, *v.TakerFee
	setFloat64(&maker, prefix+"MAKER_FEE")
	setFloat64(&taker, prefix+"TAKER_FEE")
	if v.BaseURL == before.BaseURL && maker == *before.MakerFee && taker == *before.TakerFee {
		return
	}
	v.MakerFee, v.TakerFee = &maker, &taker
	if cfg.Exchanges.Venues == nil {
		cfg.Exchanges.Venues = make(map[string]VenueConfig)
	}
	for name := range cfg.Exchanges.Venues {
		if strings.EqualFold(name, string(id)) {
			delete(cfg.Exchanges.Venues, name)
		}
	}
	cfg.Exchanges.Venues[string(id)] = v
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
