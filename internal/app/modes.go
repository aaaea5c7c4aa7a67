package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
	"github.com/ygor/crypto-arbitrage-sub004/internal/executor"
	"github.com/ygor/crypto-arbitrage-sub004/internal/feed"
	"github.com/ygor/crypto-arbitrage-sub004/internal/paper"
	"github.com/ygor/crypto-arbitrage-sub004/internal/risk"
	"github.com/ygor/crypto-arbitrage-sub004/internal/scanner"
	"github.com/ygor/crypto-arbitrage-sub004/internal/venue"
)

// PaperMode runs the full detect-execute pipeline against the simulated
// ledger. Market data is real; orders never leave the process.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")

	books, feeds, err := a.buildMarketData()
	if err != nil {
		return err
	}

	seed := make([]domain.Balance, 0, len(a.cfg.Paper.Balances))
	for _, b := range a.cfg.Paper.Balances {
		seed = append(seed, domain.Balance{Venue: b.Venue, Asset: b.Asset, Total: b.Amount})
	}
	ledger := paper.NewLedger(books, paper.Config{
		FeeRates: a.feeRates(),
		Seed:     seed,
	}, a.logger)

	return a.runPipeline(ctx, deps, books, ledger, feeds)
}

// LiveMode runs the full pipeline against the real venue APIs.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	books, feeds, err := a.buildMarketData()
	if err != nil {
		return err
	}

	return a.runPipeline(ctx, deps, books, a.venueRegistry(), feeds)
}

// DetectMode runs the scanner only. Every admitted opportunity is logged and
// marked missed; nothing is ever executed.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")

	books, feeds, err := a.buildMarketData()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, run := range feeds {
		g.Go(func() error { return run(ctx) })
	}

	gate := risk.NewGate(a.cfg.Risk.HardNotionalCap, a.logger)
	opps := make(chan domain.ArbitrageOpportunity, a.cfg.Scanner.QueueSize)
	scan := scanner.NewScanner(books, deps.Source, gate, deps.Stats, deps.BookCache, opps, a.logger)

	g.Go(func() error { return scan.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case opp := <-opps:
				a.logger.InfoContext(ctx, "opportunity detected",
					slog.String("opp_id", opp.ID),
					slog.String("pair", opp.Pair.String()),
					slog.String("buy_venue", opp.BuyVenue),
					slog.String("sell_venue", opp.SellVenue),
					slog.Float64("spread_pct", opp.SpreadPct),
				)
				deps.Stats.MarkOpportunity(ctx, opp.ID, domain.OpportunityMissed, nil)
			}
		}
	})

	return g.Wait()
}

// runPipeline starts the scanner, execution worker, market data feeds, and
// the optional archive loop, then blocks until the context is cancelled.
func (a *App) runPipeline(
	ctx context.Context,
	deps *Dependencies,
	books domain.MarketDataSource,
	orders domain.OrderPlacer,
	feeds []func(context.Context) error,
) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range feeds {
		g.Go(func() error { return run(ctx) })
	}

	gate := risk.NewGate(a.cfg.Risk.HardNotionalCap, a.logger)
	engine := executor.NewEngine(books, orders, deps.LockManager, gate, deps.Stats, deps.Notifier, a.logger)

	opps := make(chan domain.ArbitrageOpportunity, a.cfg.Scanner.QueueSize)
	worker := executor.NewWorker(opps, engine, deps.Source, deps.Stats, a.logger)
	scan := scanner.NewScanner(books, deps.Source, gate, deps.Stats, deps.BookCache, opps, a.logger)

	g.Go(func() error { return scan.Run(ctx) })
	g.Go(func() error { return worker.Run(ctx) })

	if deps.Archiver != nil {
		g.Go(func() error { return a.archiveLoop(ctx, deps) })
	}

	return g.Wait()
}

// buildMarketData selects the order book source for the configured feed. In
// "ws" mode each venue's stream writes into a shared snapshot table; in
// "rest" mode books are fetched on demand from the venue REST APIs.
func (a *App) buildMarketData() (domain.MarketDataSource, []func(context.Context) error, error) {
	if a.cfg.Feed.Source != "ws" {
		return a.venueRegistry(), nil, nil
	}

	pairs := make([]domain.TradingPair, 0, len(a.cfg.Trading.Pairs))
	for _, raw := range a.cfg.Trading.Pairs {
		p, err := domain.ParsePair(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("app: trading pair %q: %w", raw, err)
		}
		pairs = append(pairs, p)
	}

	table := feed.NewSnapshotTable(a.cfg.Feed.SnapshotMaxAge.Duration)
	var runners []func(context.Context) error
	for name, vc := range a.cfg.Venues {
		if vc.WsURL == "" {
			a.logger.Warn("venue has no ws_url, its books will stay stale",
				slog.String("venue", name),
			)
			continue
		}
		f := feed.NewWSFeed(name, vc.WsURL, pairs, table, a.logger)
		runners = append(runners, f.Run)
	}
	return table, runners, nil
}

// venueRegistry builds the REST client registry for all configured venues.
func (a *App) venueRegistry() *venue.Registry {
	clients := make([]*venue.Client, 0, len(a.cfg.Venues))
	for name, vc := range a.cfg.Venues {
		clients = append(clients, venue.NewClient(name, vc.BaseURL, venue.Credentials{
			APIKey:    vc.ApiKey,
			APISecret: vc.ApiSecret,
		}))
	}
	return venue.NewRegistry(clients...)
}

// feeRates maps venue name to its configured taker fee rate.
func (a *App) feeRates() map[string]float64 {
	rates := make(map[string]float64, len(a.cfg.Venues))
	for name, vc := range a.cfg.Venues {
		rates[name] = vc.FeeRate
	}
	return rates
}

// archiveLoop periodically uploads history older than the retention window
// to the object store. Failures are logged and retried on the next tick.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.S3.ArchiveInterval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.ArchiveRetentionDays)
			if n, err := deps.Archiver.ArchiveOpportunities(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "opportunity archive failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.InfoContext(ctx, "opportunities archived", slog.Int64("count", n))
			}
			if n, err := deps.Archiver.ArchiveTradeResults(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "trade result archive failed", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.InfoContext(ctx, "trade results archived", slog.Int64("count", n))
			}
		}
	}
}
