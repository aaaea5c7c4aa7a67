package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. Per-venue credentials use the venue name upper-cased, e.g.
// ARBBOT_VENUE_BINANCE_API_KEY.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	for name, v := range cfg.Venues {
		prefix := "ARBBOT_VENUE_" + strings.ToUpper(name) + "_"
		setStr(&v.BaseURL, prefix+"BASE_URL")
		setStr(&v.WsURL, prefix+"WS_URL")
		setStr(&v.ApiKey, prefix+"API_KEY")
		setStr(&v.ApiSecret, prefix+"API_SECRET")
		setFloat64(&v.FeeRate, prefix+"FEE_RATE")
		cfg.Venues[name] = v
	}

	// ── Trading ──
	setStringSlice(&cfg.Trading.Pairs, "ARBBOT_TRADING_PAIRS")

	// ── Risk ──
	setFloat64(&cfg.Risk.MinProfitPct, "ARBBOT_RISK_MIN_PROFIT_PCT")
	setFloat64(&cfg.Risk.MaxTradeAmount, "ARBBOT_RISK_MAX_TRADE_AMOUNT")
	setFloat64(&cfg.Risk.MaxSlippagePct, "ARBBOT_RISK_MAX_SLIPPAGE_PCT")
	setFloat64(&cfg.Risk.MaxPriceDriftPct, "ARBBOT_RISK_MAX_PRICE_DRIFT_PCT")
	setFloat64(&cfg.Risk.MaxVolatilityDriftPct, "ARBBOT_RISK_MAX_VOLATILITY_DRIFT_PCT")
	setFloat64(&cfg.Risk.RevalidationTolerancePct, "ARBBOT_RISK_REVALIDATION_TOLERANCE_PCT")
	setDuration(&cfg.Risk.ExecutionTimeout, "ARBBOT_RISK_EXECUTION_TIMEOUT")
	setFloat64(&cfg.Risk.HardNotionalCap, "ARBBOT_RISK_HARD_NOTIONAL_CAP")

	// ── Scanner ──
	setDuration(&cfg.Scanner.Interval, "ARBBOT_SCANNER_INTERVAL")
	setInt(&cfg.Scanner.MaxConcurrentScans, "ARBBOT_SCANNER_MAX_CONCURRENT_SCANS")
	setInt(&cfg.Scanner.QueueSize, "ARBBOT_SCANNER_QUEUE_SIZE")

	// ── Executor ──
	setBool(&cfg.Executor.AutoExecute, "ARBBOT_EXECUTOR_AUTO_EXECUTE")
	setInt(&cfg.Executor.MaxDailyTrades, "ARBBOT_EXECUTOR_MAX_DAILY_TRADES")
	setFloat64(&cfg.Executor.MaxDailyVolume, "ARBBOT_EXECUTOR_MAX_DAILY_VOLUME")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "ARBBOT_FEED_SOURCE")
	setDuration(&cfg.Feed.SnapshotMaxAge, "ARBBOT_FEED_SNAPSHOT_MAX_AGE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.ArchiveRetentionDays, "ARBBOT_S3_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "ARBBOT_S3_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBBOT_MODE")
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
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
