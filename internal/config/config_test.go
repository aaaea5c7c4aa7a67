package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Venues = map[string]VenueConfig{
		"binance": {BaseURL: "https://api.binance.test", FeeRate: 0.001},
		"kraken":  {BaseURL: "https://api.kraken.test", FeeRate: 0.002},
	}
	cfg.Trading.Pairs = []string{"BTC/USDT"}
	cfg.Trading.VenuePairs = [][]string{{"binance", "kraken"}}
	cfg.Paper.Balances = []PaperBalance{
		{Venue: "binance", Asset: "USDT", Amount: 10_000},
		{Venue: "kraken", Asset: "BTC", Amount: 1},
	}
	return cfg
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
mode = "paper"

[venues.binance]
base_url = "https://api.binance.test"
fee_rate = 0.001

[venues.kraken]
base_url = "https://api.kraken.test"
fee_rate = 0.002

[trading]
pairs = ["BTC/USDT", "ETH/USDT"]
venue_pairs = [["binance", "kraken"]]

[risk]
min_profit_pct = 1.2
execution_timeout = "15s"

[scanner]
interval = "2s"

[[paper.balances]]
venue = "binance"
asset = "USDT"
amount = 10000.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Trading.Pairs)
	assert.Equal(t, 1.2, cfg.Risk.MinProfitPct)
	assert.Equal(t, 15*time.Second, cfg.Risk.ExecutionTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Scanner.Interval.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Scanner.MaxConcurrentScans)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.001, cfg.Venues["binance"].FeeRate)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
mode = "paper"

[venues.binance]
base_url = "https://api.binance.test"

[trading]
pairs = ["BTC/USDT"]
venue_pairs = [["binance", "binance"]]
`)

	t.Setenv("ARBBOT_MODE", "detect")
	t.Setenv("ARBBOT_EXECUTOR_AUTO_EXECUTE", "true")
	t.Setenv("ARBBOT_RISK_MIN_PROFIT_PCT", "2.5")
	t.Setenv("ARBBOT_SCANNER_INTERVAL", "500ms")
	t.Setenv("ARBBOT_VENUE_BINANCE_API_KEY", "env-key")
	t.Setenv("ARBBOT_TRADING_PAIRS", "ETH/USDT, SOL/USDT")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Mode)
	assert.True(t, cfg.Executor.AutoExecute)
	assert.Equal(t, 2.5, cfg.Risk.MinProfitPct)
	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.Interval.Duration)
	assert.Equal(t, "env-key", cfg.Venues["binance"].ApiKey)
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, cfg.Trading.Pairs)
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Risk.MinProfitPct = 0
	cfg.Trading.VenuePairs = [][]string{{"binance", "binance"}, {"binance"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "min_profit_pct")
	assert.Contains(t, err.Error(), "compares \"binance\" with itself")
	assert.Contains(t, err.Error(), "exactly two venues")
}

func TestValidateLiveModeRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "live"
	cfg.Redis.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key and api_secret are required")
}

func TestValidateLiveModeRequiresRedis(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "live"
	for name, v := range cfg.Venues {
		v.ApiKey = "k"
		v.ApiSecret = "s"
		cfg.Venues[name] = v
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: must be enabled in live mode")
}

func TestSourceSnapshots(t *testing.T) {
	cfg := validConfig()
	cfg.Risk.MinProfitPct = 1.5
	cfg.Executor.AutoExecute = true

	src, err := NewSource(&cfg)
	require.NoError(t, err)

	profile, err := src.GetRiskProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, profile.MinProfitPct)
	assert.Equal(t, 10*time.Second, profile.ExecutionTimeout)

	bot, err := src.GetBotConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, bot.AutoExecute)
	require.Len(t, bot.Pairs, 1)
	assert.Equal(t, domain.TradingPair{Base: "BTC", Quote: "USDT"}, bot.Pairs[0])
	require.Len(t, bot.VenuePairs, 1)
	assert.Equal(t, domain.VenuePair{A: "binance", B: "kraken"}, bot.VenuePairs[0])

	// Mutating the snapshot must not affect later reads.
	bot.Pairs[0] = domain.TradingPair{Base: "DOGE", Quote: "USDT"}
	again, err := src.GetBotConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BTC", again.Pairs[0].Base)
}

func TestSourceUpdateSwapsAtomically(t *testing.T) {
	cfg := validConfig()
	src, err := NewSource(&cfg)
	require.NoError(t, err)

	next := validConfig()
	next.Trading.Pairs = []string{"not-a-pair"}
	require.Error(t, src.Update(&next))

	// Failed update keeps the previous universe.
	bot, err := src.GetBotConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BTC", bot.Pairs[0].Base)
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Venues["binance"] = VenueConfig{ApiKey: "k", ApiSecret: "s"}
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "tg-token"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Venues["binance"].ApiKey)
	assert.Equal(t, "***", out.Venues["binance"].ApiSecret)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)

	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
