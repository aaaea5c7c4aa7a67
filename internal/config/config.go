// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Venues   map[string]VenueConfig `toml:"venues"`
	Trading  TradingConfig          `toml:"trading"`
	Risk     RiskConfig             `toml:"risk"`
	Scanner  ScannerConfig          `toml:"scanner"`
	Executor ExecutorConfig         `toml:"executor"`
	Feed     FeedConfig             `toml:"feed"`
	Paper    PaperConfig            `toml:"paper"`
	Postgres PostgresConfig         `toml:"postgres"`
	Redis    RedisConfig            `toml:"redis"`
	S3       S3Config               `toml:"s3"`
	Notify   NotifyConfig           `toml:"notify"`
	Mode     string                 `toml:"mode"`
	LogLevel string                 `toml:"log_level"`
}

// VenueConfig holds per-exchange endpoints, credentials and fees.
type VenueConfig struct {
	BaseURL   string `toml:"base_url"`
	WsURL     string `toml:"ws_url"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
	// FeeRate is the taker fee rate, e.g. 0.001 for 0.1%.
	FeeRate float64 `toml:"fee_rate"`
}

// TradingConfig names what is scanned: the trading pairs and the venue pairs
// whose books are compared against each other.
type TradingConfig struct {
	// Pairs is a list of "BASE/QUOTE" strings, e.g. "BTC/USDT".
	Pairs []string `toml:"pairs"`
	// VenuePairs is a list of two-element venue name arrays,
	// e.g. [["binance", "kraken"]]. Both trade directions are scanned.
	VenuePairs [][]string `toml:"venue_pairs"`
}

// RiskConfig holds the thresholds applied by the risk gate and the
// execution-time revalidation.
type RiskConfig struct {
	MinProfitPct             float64  `toml:"min_profit_pct"`
	MaxTradeAmount           float64  `toml:"max_trade_amount"`
	MaxSlippagePct           float64  `toml:"max_slippage_pct"`
	MaxPriceDriftPct         float64  `toml:"max_price_drift_pct"`
	MaxVolatilityDriftPct    float64  `toml:"max_volatility_drift_pct"`
	RevalidationTolerancePct float64  `toml:"revalidation_tolerance_pct"`
	ExecutionTimeout         duration `toml:"execution_timeout"`
	// HardNotionalCap is an absolute per-trade notional ceiling enforced
	// independently of MaxTradeAmount. Zero disables it.
	HardNotionalCap float64 `toml:"hard_notional_cap"`
}

// ScannerConfig holds detection loop parameters.
type ScannerConfig struct {
	Interval           duration `toml:"interval"`
	MaxConcurrentScans int      `toml:"max_concurrent_scans"`
	// QueueSize is the capacity of the opportunity channel between the
	// scanner and the execution worker.
	QueueSize int `toml:"queue_size"`
}

// ExecutorConfig holds execution worker parameters.
type ExecutorConfig struct {
	AutoExecute    bool    `toml:"auto_execute"`
	MaxDailyTrades int     `toml:"max_daily_trades"`
	MaxDailyVolume float64 `toml:"max_daily_volume"`
}

// FeedConfig holds market-data feed parameters for live mode.
type FeedConfig struct {
	// Source selects where live order books come from: "ws" streams them
	// over the venue websocket feeds, "rest" fetches on demand.
	Source string `toml:"source"`
	// SnapshotMaxAge bounds how stale a streamed book may be before it is
	// treated as missing.
	SnapshotMaxAge duration `toml:"snapshot_max_age"`
}

// PaperConfig seeds the simulated ledger used in paper mode.
type PaperConfig struct {
	Balances []PaperBalance `toml:"balances"`
}

// PaperBalance is one seed balance row.
type PaperBalance struct {
	Venue  string  `toml:"venue"`
	Asset  string  `toml:"asset"`
	Amount float64 `toml:"amount"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for history
// archival.
type S3Config struct {
	Enabled              bool     `toml:"enabled"`
	Endpoint             string   `toml:"endpoint"`
	Region               string   `toml:"region"`
	Bucket               string   `toml:"bucket"`
	AccessKey            string   `toml:"access_key"`
	SecretKey            string   `toml:"secret_key"`
	UseSSL               bool     `toml:"use_ssl"`
	ForcePathStyle       bool     `toml:"force_path_style"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venues: map[string]VenueConfig{},
		Trading: TradingConfig{
			Pairs: []string{"BTC/USDT"},
		},
		Risk: RiskConfig{
			MinProfitPct:             0.5,
			MaxTradeAmount:           1_000,
			MaxSlippagePct:           0.3,
			MaxPriceDriftPct:         0.2,
			MaxVolatilityDriftPct:    0.5,
			RevalidationTolerancePct: 0,
			ExecutionTimeout:         duration{10 * time.Second},
			HardNotionalCap:          0,
		},
		Scanner: ScannerConfig{
			Interval:           duration{5 * time.Second},
			MaxConcurrentScans: 4,
			QueueSize:          16,
		},
		Executor: ExecutorConfig{
			AutoExecute:    false,
			MaxDailyTrades: 0,
			MaxDailyVolume: 0,
		},
		Feed: FeedConfig{
			Source:         "rest",
			SnapshotMaxAge: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:              false,
			Endpoint:             "http://localhost:9000",
			Region:               "us-east-1",
			Bucket:               "arbbot-data",
			UseSSL:               false,
			ForcePathStyle:       true,
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "trade_failed", "compensation_failed"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper":  true,
	"live":   true,
	"detect": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validFeedSources enumerates the accepted values for Feed.Source.
var validFeedSources = map[string]bool{
	"ws":   true,
	"rest": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live, detect)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading universe
	if len(c.Trading.Pairs) == 0 {
		errs = append(errs, "trading: at least one pair is required")
	}
	if len(c.Trading.VenuePairs) == 0 {
		errs = append(errs, "trading: at least one venue pair is required")
	}
	for i, vp := range c.Trading.VenuePairs {
		if len(vp) != 2 {
			errs = append(errs, fmt.Sprintf("trading: venue_pairs[%d] must have exactly two venues", i))
			continue
		}
		if vp[0] == vp[1] {
			errs = append(errs, fmt.Sprintf("trading: venue_pairs[%d] compares %q with itself", i, vp[0]))
		}
		for _, v := range vp {
			if _, ok := c.Venues[v]; !ok {
				errs = append(errs, fmt.Sprintf("trading: venue_pairs[%d] references unknown venue %q", i, v))
			}
		}
	}

	// Venue credentials are only needed when real orders can be placed.
	if c.Mode == "live" {
		for name, v := range c.Venues {
			if v.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("venues.%s: base_url is required in live mode", name))
			}
			if v.ApiKey == "" || v.ApiSecret == "" {
				errs = append(errs, fmt.Sprintf("venues.%s: api_key and api_secret are required in live mode", name))
			}
			if c.Feed.Source == "ws" && v.WsURL == "" {
				errs = append(errs, fmt.Sprintf("venues.%s: ws_url is required when feed.source is \"ws\"", name))
			}
		}
	}

	// Risk
	if c.Risk.MinProfitPct <= 0 {
		errs = append(errs, "risk: min_profit_pct must be > 0")
	}
	if c.Risk.MaxTradeAmount <= 0 {
		errs = append(errs, "risk: max_trade_amount must be > 0")
	}
	if c.Risk.MaxSlippagePct < 0 {
		errs = append(errs, "risk: max_slippage_pct must be >= 0")
	}
	if c.Risk.MaxPriceDriftPct <= 0 {
		errs = append(errs, "risk: max_price_drift_pct must be > 0")
	}
	if c.Risk.MaxVolatilityDriftPct <= 0 {
		errs = append(errs, "risk: max_volatility_drift_pct must be > 0")
	}
	if c.Risk.RevalidationTolerancePct < 0 {
		errs = append(errs, "risk: revalidation_tolerance_pct must be >= 0")
	}
	if c.Risk.ExecutionTimeout.Duration <= 0 {
		errs = append(errs, "risk: execution_timeout must be > 0")
	}
	if c.Risk.HardNotionalCap < 0 {
		errs = append(errs, "risk: hard_notional_cap must be >= 0")
	}

	// Scanner
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0")
	}
	if c.Scanner.MaxConcurrentScans < 1 {
		errs = append(errs, "scanner: max_concurrent_scans must be >= 1")
	}
	if c.Scanner.QueueSize < 1 {
		errs = append(errs, "scanner: queue_size must be >= 1")
	}

	// Executor
	if c.Executor.MaxDailyTrades < 0 {
		errs = append(errs, "executor: max_daily_trades must be >= 0")
	}
	if c.Executor.MaxDailyVolume < 0 {
		errs = append(errs, "executor: max_daily_volume must be >= 0")
	}

	// Feed
	if !validFeedSources[c.Feed.Source] {
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: ws, rest)", c.Feed.Source))
	}
	if c.Feed.SnapshotMaxAge.Duration <= 0 {
		errs = append(errs, "feed: snapshot_max_age must be > 0")
	}

	// Paper seed balances
	if c.Mode == "paper" && len(c.Paper.Balances) == 0 {
		errs = append(errs, "paper: at least one seed balance is required in paper mode")
	}
	for i, b := range c.Paper.Balances {
		if b.Venue == "" || b.Asset == "" {
			errs = append(errs, fmt.Sprintf("paper: balances[%d] must set venue and asset", i))
		}
		if b.Amount < 0 {
			errs = append(errs, fmt.Sprintf("paper: balances[%d] amount must be >= 0", i))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis is mandatory in live mode: the execution lock must be shared
	// across processes when real orders are placed.
	if c.Mode == "live" && !c.Redis.Enabled {
		errs = append(errs, "redis: must be enabled in live mode")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveRetentionDays < 1 {
			errs = append(errs, "s3: archive_retention_days must be >= 1")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archival requires postgres to be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
