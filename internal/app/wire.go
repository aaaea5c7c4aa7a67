package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ygor/crypto-arbitrage-sub004/internal/blob/s3"
	"github.com/ygor/crypto-arbitrage-sub004/internal/cache/memory"
	"github.com/ygor/crypto-arbitrage-sub004/internal/cache/redis"
	"github.com/ygor/crypto-arbitrage-sub004/internal/config"
	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
	"github.com/ygor/crypto-arbitrage-sub004/internal/notify"
	"github.com/ygor/crypto-arbitrage-sub004/internal/service"
	"github.com/ygor/crypto-arbitrage-sub004/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Per-cycle configuration snapshots.
	Source *config.Source

	// Stores (nil when Postgres is disabled).
	OpportunityStore domain.OpportunityStore
	TradeResultStore domain.TradeResultStore
	AuditStore       domain.AuditStore

	// Coordination. In-process fallbacks are wired when Redis is disabled.
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	BookCache   domain.OrderbookCache

	// Blob storage (nil when S3 is disabled).
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications and statistics.
	Notifier *notify.Notifier
	Stats    *service.StatsService
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

	deps := &Dependencies{}

	source, err := config.NewSource(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: config source: %w", err)
	}
	deps.Source = source

	// --- PostgreSQL ---
	var pgOpps *postgres.OpportunityStore
	var pgTrades *postgres.TradeResultStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		pgOpps = postgres.NewOpportunityStore(pool)
		pgTrades = postgres.NewTradeResultStore(pool)
		deps.OpportunityStore = pgOpps
		deps.TradeResultStore = pgTrades
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.BookCache = redis.NewOrderbookCache(redisClient)
	} else {
		// Single-process fallbacks. Sufficient for paper and detect modes;
		// live mode refuses to start without Redis at validation time.
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		// Archival needs the Postgres history stores as its source.
		if pgOpps != nil && pgTrades != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, pgOpps, pgTrades, deps.AuditStore)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Statistics sink ---
	deps.Stats = service.NewStatsService(
		deps.OpportunityStore,
		deps.TradeResultStore,
		deps.AuditStore,
		deps.SignalBus,
		logger,
	)

	return deps, cleanup, nil
}
