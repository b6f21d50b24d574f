// Package config defines the top-level configuration for arbwatch and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/symbol"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBWATCH_* environment variables.
type Config struct {
	Exchanges ExchangesConfig `toml:"exchanges"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Bot       BotConfig       `toml:"bot"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ExchangesConfig selects the exchanges to quote and how to reach them.
type ExchangesConfig struct {
	Enabled         []string               `toml:"enabled"`
	Timeout         duration               `toml:"timeout"`
	AggregateMargin duration               `toml:"aggregate_margin"`
	RetryAttempts   int                    `toml:"retry_attempts"`
	RetryBackoff    duration               `toml:"retry_backoff"`
	Venues          map[string]VenueConfig `toml:"venues"`
}

// VenueConfig overrides one exchange's endpoint, fees or symbol format. Unset
// fields keep the built-in values.
type VenueConfig struct {
	BaseURL      string   `toml:"base_url"`
	MakerFee     *float64 `toml:"maker_fee"`
	TakerFee     *float64 `toml:"taker_fee"`
	SymbolFormat string   `toml:"symbol_format"`
}

// ArbitrageConfig holds calculator parameters.
type ArbitrageConfig struct {
	DefaultCapital float64  `toml:"default_capital"`
	QuoteSuffixes  []string `toml:"quote_suffixes"`
}

// MonitorConfig controls the background watchlist scan.
type MonitorConfig struct {
	Interval      duration `toml:"interval"`
	Capital       float64  `toml:"capital"`
	MinProfitPct  float64  `toml:"min_profit_pct"`
	AlertCooldown duration `toml:"alert_cooldown"`
	Concurrency   int      `toml:"concurrency"`
}

// BotConfig holds the Telegram bot credentials and limits.
type BotConfig struct {
	Token       string   `toml:"token"`
	APIURL      string   `toml:"api_url"`
	PollTimeout duration `toml:"poll_timeout"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory"; memory keeps everything in process
	// and loses it on restart.
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old check-log rows to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds operator notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

func f64(v float64) *float64 { return &v }

// defaultVenues carries each exchange's public endpoint, fee rates and symbol
// format.
func defaultVenues() map[string]VenueConfig {
	return map[string]VenueConfig{
		string(domain.ExchangeMEXC): {
			BaseURL: "https://api.mexc.com", MakerFee: f64(0.0008), TakerFee: f64(0.001),
			SymbolFormat: string(symbol.Concat),
		},
		string(domain.ExchangeBitget): {
			BaseURL: "https://api.bitget.com", MakerFee: f64(0.0006), TakerFee: f64(0.0008),
			SymbolFormat: string(symbol.Concat),
		},
		string(domain.ExchangeUpbit): {
			BaseURL: "https://api.upbit.com", MakerFee: f64(0.0005), TakerFee: f64(0.0007),
			SymbolFormat: string(symbol.QuoteDashBase),
		},
		string(domain.ExchangeBinanceUS): {
			BaseURL: "https://api.binance.us", MakerFee: f64(0.00075), TakerFee: f64(0.001),
			SymbolFormat: string(symbol.Concat),
		},
	}
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchanges: ExchangesConfig{
			Enabled:         []string{"MEXC", "Bitget", "Upbit", "BinanceUS"},
			Timeout:         duration{5 * time.Second},
			AggregateMargin: duration{250 * time.Millisecond},
			RetryAttempts:   1,
			RetryBackoff:    duration{200 * time.Millisecond},
			Venues:          defaultVenues(),
		},
		Arbitrage: ArbitrageConfig{
			DefaultCapital: 10000,
			QuoteSuffixes:  []string{"USDT"},
		},
		Monitor: MonitorConfig{
			Interval:      duration{time.Minute},
			Capital:       10000,
			MinProfitPct:  0.5,
			AlertCooldown: duration{30 * time.Minute},
			Concurrency:   4,
		},
		Bot: BotConfig{
			APIURL:      "https://api.telegram.org",
			PollTimeout: duration{30 * time.Second},
			RateLimit:   20,
			RateWindow:  duration{time.Minute},
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			Host:          "localhost",
			Port:          5432,
			Database:      "arbwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbwatch-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Venue returns the effective settings for exchange id: the configured table
// (matched ignoring case) layered over the built-in defaults.
func (c ExchangesConfig) Venue(id domain.ExchangeID) VenueConfig {
	out := defaultVenues()[string(id)]
	for name, v := range c.Venues {
		if !strings.EqualFold(name, string(id)) {
			continue
		}
		if v.BaseURL != "" {
			out.BaseURL = v.BaseURL
		}
		if v.MakerFee != nil {
			out.MakerFee = v.MakerFee
		}
		if v.TakerFee != nil {
			out.TakerFee = v.TakerFee
		}
		if v.SymbolFormat != "" {
			out.SymbolFormat = v.SymbolFormat
		}
	}
	if out.MakerFee == nil {
		out.MakerFee = f64(0)
	}
	if out.TakerFee == nil {
		out.TakerFee = f64(0)
	}
	return out
}

// EnabledIDs resolves exchanges.enabled to exchange IDs, dropping unknown
// names and duplicates. Validate reports the unknown ones.
func (c ExchangesConfig) EnabledIDs() []domain.ExchangeID {
	seen := make(map[domain.ExchangeID]bool)
	var out []domain.ExchangeID
	for _, name := range c.Enabled {
		id, ok := domain.LookupExchange(name)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"bot":     true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, bot, monitor, full)", c.Mode))
	}
	errs = append(errs, c.engineErrors()...)

	mode := strings.ToLower(c.Mode)
	runsBot := mode == "bot" || mode == "full"
	runsMonitor := mode == "monitor" || mode == "full"

	// Bot — the monitor delivers alerts through the same bot token.
	if (runsBot || runsMonitor) && strings.TrimSpace(c.Bot.Token) == "" {
		errs = append(errs, "bot: token is required for mode "+c.Mode)
	}
	if runsBot {
		if c.Bot.RateLimit < 1 {
			errs = append(errs, "bot: rate_limit must be >= 1")
		}
		if c.Bot.RateWindow.Duration <= 0 {
			errs = append(errs, "bot: rate_window must be > 0")
		}
		if c.Bot.PollTimeout.Duration <= 0 {
			errs = append(errs, "bot: poll_timeout must be > 0")
		}
	}

	// Monitor
	if runsMonitor {
		if c.Monitor.Interval.Duration <= 0 {
			errs = append(errs, "monitor: interval must be > 0")
		}
		if c.Monitor.Capital <= 0 {
			errs = append(errs, "monitor: capital must be > 0")
		}
		if c.Monitor.MinProfitPct < 0 {
			errs = append(errs, "monitor: min_profit_pct must be >= 0")
		}
		if c.Monitor.AlertCooldown.Duration < 0 {
			errs = append(errs, "monitor: alert_cooldown must be >= 0")
		}
		if c.Monitor.Concurrency < 1 {
			errs = append(errs, "monitor: concurrency must be >= 1")
		}
	}

	// Database
	driver := strings.ToLower(c.Database.Driver)
	if driver != "postgres" && driver != "memory" {
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: postgres, memory)", c.Database.Driver))
	}
	if driver == "postgres" && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if driver == "postgres" && c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if driver == "postgres" && c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if driver == "postgres" && c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled && (mode == "server" || mode == "full") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0 (0 disables)")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0")
		}
	}

	return joinErrors(errs)
}

// ValidateEngine checks only what a one-off arbitrage check needs: exchanges,
// arbitrage parameters and the log level.
func (c *Config) ValidateEngine() error {
	return joinErrors(c.engineErrors())
}

func (c *Config) engineErrors() []string {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchanges
	if len(c.Exchanges.Enabled) == 0 {
		errs = append(errs, "exchanges: enabled must list at least one exchange")
	}
	for _, name := range c.Exchanges.Enabled {
		if _, ok := domain.LookupExchange(name); !ok {
			errs = append(errs, fmt.Sprintf("exchanges: unknown exchange %q in enabled", name))
		}
	}
	if c.Exchanges.Timeout.Duration <= 0 {
		errs = append(errs, "exchanges: timeout must be > 0")
	}
	if c.Exchanges.AggregateMargin.Duration < 0 {
		errs = append(errs, "exchanges: aggregate_margin must be >= 0")
	}
	if c.Exchanges.RetryAttempts < 1 {
		errs = append(errs, "exchanges: retry_attempts must be >= 1")
	}
	venueSeen := make(map[domain.ExchangeID]bool)
	for name := range c.Exchanges.Venues {
		id, ok := domain.LookupExchange(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("exchanges.venues: unknown exchange %q", name))
			continue
		}
		if venueSeen[id] {
			errs = append(errs, fmt.Sprintf("exchanges.venues: %s configured more than once", id))
		}
		venueSeen[id] = true
	}
	for _, id := range c.Exchanges.EnabledIDs() {
		v := c.Exchanges.Venue(id)
		if *v.MakerFee < 0 || *v.MakerFee >= 1 {
			errs = append(errs, fmt.Sprintf("exchanges.venues.%s: maker_fee must be in [0,1), got %g", id, *v.MakerFee))
		}
		if *v.TakerFee < 0 || *v.TakerFee >= 1 {
			errs = append(errs, fmt.Sprintf("exchanges.venues.%s: taker_fee must be in [0,1), got %g", id, *v.TakerFee))
		}
		if _, err := symbol.ParseFormat(v.SymbolFormat); err != nil {
			errs = append(errs, fmt.Sprintf("exchanges.venues.%s: %v", id, err))
		}
	}

	// Arbitrage
	if c.Arbitrage.DefaultCapital <= 0 {
		errs = append(errs, "arbitrage: default_capital must be > 0")
	}
	if len(c.Arbitrage.QuoteSuffixes) == 0 {
		errs = append(errs, "arbitrage: quote_suffixes must not be empty")
	}
	for _, s := range c.Arbitrage.QuoteSuffixes {
		if !isAlnum(s) {
			errs = append(errs, fmt.Sprintf("arbitrage: quote suffix %q must be alphanumeric", s))
		}
	}
	return errs
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
