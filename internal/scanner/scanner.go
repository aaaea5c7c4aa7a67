// Package scanner runs the detection loop: on every tick it fetches order
// books for each configured market across each venue pair, evaluates both
// trade directions, and hands admitted opportunities to the execution queue.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ygor/crypto-arbitrage-sub004/internal/detector"
	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
	"github.com/ygor/crypto-arbitrage-sub004/internal/risk"
	"github.com/ygor/crypto-arbitrage-sub004/internal/service"
)

const (
	defaultScanInterval       = 5 * time.Second
	defaultMaxConcurrentScans = 4
)

// Scanner drives scan cycles. Configuration is re-read at the start of each
// cycle, so profile or market changes take effect on the next tick without a
// restart. A venue or fetch failure skips that market for the cycle and is
// never allowed to abort the cycle.
type Scanner struct {
	books     domain.MarketDataSource
	cfg       domain.ConfigSource
	gate      *risk.Gate
	stats     *service.StatsService
	bookCache domain.OrderbookCache
	out       chan<- domain.ArbitrageOpportunity
	logger    *slog.Logger
}

// NewScanner creates a Scanner emitting admitted opportunities on out.
// bookCache may be nil; when set, every fetched book is mirrored into it.
func NewScanner(
	books domain.MarketDataSource,
	cfg domain.ConfigSource,
	gate *risk.Gate,
	stats *service.StatsService,
	bookCache domain.OrderbookCache,
	out chan<- domain.ArbitrageOpportunity,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		books:     books,
		cfg:       cfg,
		gate:      gate,
		stats:     stats,
		bookCache: bookCache,
		out:       out,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Run executes scan cycles until the context is cancelled. The first cycle
// starts immediately.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started")
	defer s.logger.Info("scanner stopped")

	for {
		interval := s.scanCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// scanCycle runs one full sweep and returns the interval to wait before the
// next one.
func (s *Scanner) scanCycle(ctx context.Context) time.Duration {
	botCfg, err := s.cfg.GetBotConfig(ctx)
	if err != nil {
		s.logger.Warn("bot config unavailable, skipping cycle", slog.String("error", err.Error()))
		return defaultScanInterval
	}
	profile, err := s.cfg.GetRiskProfile(ctx)
	if err != nil {
		s.logger.Warn("risk profile unavailable, skipping cycle", slog.String("error", err.Error()))
		return intervalOrDefault(botCfg)
	}

	maxScans := botCfg.MaxConcurrentScans
	if maxScans <= 0 {
		maxScans = defaultMaxConcurrentScans
	}
	sem := semaphore.NewWeighted(int64(maxScans))

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, vp := range botCfg.VenuePairs {
		for _, pair := range botCfg.Pairs {
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				s.scanMarket(gctx, vp, pair, profile)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("scan cycle aborted", slog.String("error", err.Error()))
	}

	s.logger.Debug("scan cycle complete",
		slog.Int("venue_pairs", len(botCfg.VenuePairs)),
		slog.Int("pairs", len(botCfg.Pairs)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return intervalOrDefault(botCfg)
}

// scanMarket fetches both venues' books for one pair and evaluates both
// trade directions. Fetch failures are transient by definition here: log
// and retry on the next cycle.
func (s *Scanner) scanMarket(ctx context.Context, vp domain.VenuePair, pair domain.TradingPair, profile domain.RiskProfile) {
	bookA, err := s.books.GetOrderBook(ctx, vp.A, pair)
	if err != nil {
		s.logger.Debug("order book fetch failed",
			slog.String("venue", vp.A),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	bookB, err := s.books.GetOrderBook(ctx, vp.B, pair)
	if err != nil {
		s.logger.Debug("order book fetch failed",
			slog.String("venue", vp.B),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.cacheBook(ctx, bookA)
	s.cacheBook(ctx, bookB)

	s.evaluate(ctx, bookA, bookB, profile)
	s.evaluate(ctx, bookB, bookA, profile)
}

// evaluate runs detection for one direction and emits the opportunity when
// it clears admission.
func (s *Scanner) evaluate(ctx context.Context, buyBook, sellBook domain.OrderBook, profile domain.RiskProfile) {
	opp, ok := detector.Detect(buyBook, sellBook, profile)
	if !ok {
		return
	}
	if err := s.gate.Admit(opp, profile); err != nil {
		s.logger.Debug("opportunity not admitted",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.stats.RecordOpportunity(ctx, opp)
	s.logger.Info("opportunity detected",
		slog.String("opp_id", opp.ID),
		slog.String("pair", opp.Pair.String()),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.Float64("spread_pct", opp.SpreadPct),
		slog.Float64("est_profit", opp.EstimatedProfit),
	)

	select {
	case s.out <- opp:
	default:
		// The executor is behind; by the time it caught up this window
		// would be gone anyway.
		s.logger.Warn("execution queue full, missing opportunity", slog.String("opp_id", opp.ID))
		s.stats.MarkOpportunity(ctx, opp.ID, domain.OpportunityMissed, nil)
	}
}

func (s *Scanner) cacheBook(ctx context.Context, book domain.OrderBook) {
	if s.bookCache == nil {
		return
	}
	if err := s.bookCache.SetSnapshot(ctx, book); err != nil {
		s.logger.Debug("book cache write failed",
			slog.String("venue", book.Venue),
			slog.String("error", err.Error()),
		)
	}
}

func intervalOrDefault(cfg domain.BotConfig) time.Duration {
	if cfg.ScanInterval > 0 {
		return cfg.ScanInterval
	}
	return defaultScanInterval
}
