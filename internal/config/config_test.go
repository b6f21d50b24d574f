package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Bot.Token = "123:abc"
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	bare := Defaults()
	require.NoError(t, bare.ValidateEngine())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.LogLevel = "verbose"
	cfg.Exchanges.Enabled = []string{"MEXC", "Kraken"}
	cfg.Arbitrage.DefaultCapital = 0
	cfg.Database.PoolMinConns = 50

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "verbose"`,
		`unknown exchange "Kraken"`,
		"default_capital must be > 0",
		"pool_min_conns must not exceed pool_max_conns",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRequiresBotTokenForMonitor(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot: token is required")

	cfg.Mode = "server"
	assert.NoError(t, cfg.Validate())
}

func TestValidateDatabaseDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "memory"
	cfg.Database.Host = ""
	cfg.Database.PoolMaxConns = 0
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "sqlite"`)
}

func TestValidateRejectsBadFees(t *testing.T) {
	cfg := validConfig()
	bad := 1.5
	cfg.Exchanges.Venues["Upbit"] = VenueConfig{TakerFee: &bad}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taker_fee must be in [0,1)")
}

func TestVenueLayersOverDefaults(t *testing.T) {
	cfg := Defaults()
	fee := 0.002
	cfg.Exchanges.Venues = map[string]VenueConfig{"mexc": {TakerFee: &fee}}

	v := cfg.Exchanges.Venue(domain.ExchangeMEXC)
	assert.Equal(t, "https://api.mexc.com", v.BaseURL)
	assert.Equal(t, 0.0008, *v.MakerFee)
	assert.Equal(t, 0.002, *v.TakerFee)

	up := cfg.Exchanges.Venue(domain.ExchangeUpbit)
	assert.Equal(t, "quote-dash-base", up.SymbolFormat)
	assert.Equal(t, 0.0007, *up.TakerFee)
}

func TestEnabledIDs(t *testing.T) {
	cfg := Defaults()
	cfg.Exchanges.Enabled = []string{"upbit", "Kraken", "UPBIT", "binanceus"}
	assert.Equal(t, []domain.ExchangeID{domain.ExchangeUpbit, domain.ExchangeBinanceUS}, cfg.Exchanges.EnabledIDs())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[exchanges]
enabled = ["MEXC", "Bitget"]
timeout = "2s"

[exchanges.venues.Bitget]
taker_fee = 0.0009

[monitor]
interval = "90s"
`), 0o600))

	t.Setenv("ARBWATCH_LOG_LEVEL", "debug")
	t.Setenv("ARBWATCH_SERVER_PORT", "9001")
	t.Setenv("ARBWATCH_EXCHANGES_MEXC_TAKER_FEE", "0.0015")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, []string{"MEXC", "Bitget"}, cfg.Exchanges.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Exchanges.Timeout.Duration)
	assert.Equal(t, 90*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Exchanges.AggregateMargin.Duration)

	bitget := cfg.Exchanges.Venue(domain.ExchangeBitget)
	assert.Equal(t, 0.0009, *bitget.TakerFee)
	assert.Equal(t, 0.0006, *bitget.MakerFee)
	assert.Equal(t, 0.0015, *cfg.Exchanges.Venue(domain.ExchangeMEXC).TakerFee)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "hunter2"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Bot.Token)
	assert.Equal(t, "***", out.Database.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "", out.Notify.TelegramToken)

	out.Exchanges.Enabled[0] = "changed"
	assert.Equal(t, "MEXC", cfg.Exchanges.Enabled[0])
	assert.Equal(t, "123:abc", cfg.Bot.Token)
}
