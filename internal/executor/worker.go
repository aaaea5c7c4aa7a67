package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
	"github.com/ygor/crypto-arbitrage-sub004/internal/service"
)

// Worker reads detected opportunities from a channel and drives them through
// the engine. It applies claim deduplication, the auto-execute switch, and
// the daily trade-count and volume limits. Opportunities the worker declines
// to execute are marked missed.
type Worker struct {
	in     <-chan domain.ArbitrageOpportunity
	engine *Engine
	cfg    domain.ConfigSource
	stats  *service.StatsService
	claims *Claims
	logger *slog.Logger

	cleanupInterval time.Duration
}

// NewWorker creates a Worker consuming from in.
func NewWorker(
	in <-chan domain.ArbitrageOpportunity,
	engine *Engine,
	cfg domain.ConfigSource,
	stats *service.StatsService,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		in:              in,
		engine:          engine,
		cfg:             cfg,
		stats:           stats,
		claims:          NewClaims(2 * time.Minute),
		logger:          logger.With(slog.String("component", "executor_worker")),
		cleanupInterval: 30 * time.Second,
	}
}

// SetCleanupInterval changes how often the claim registry is garbage
// collected. Must be called before Run.
func (w *Worker) SetCleanupInterval(d time.Duration) {
	w.cleanupInterval = d
}

// Run processes opportunities until the context is cancelled, then drains
// whatever is still buffered, marking it missed. An execution already in
// flight when cancellation arrives runs to completion inside the engine.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("execution worker started")
	defer w.logger.Info("execution worker stopped")

	cleanupTicker := time.NewTicker(w.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()

		case opp, ok := <-w.in:
			if !ok {
				return nil
			}
			w.process(ctx, opp)

		case <-cleanupTicker.C:
			w.claims.Cleanup()
		}
	}
}

// process handles a single opportunity through claim, limit, and execution.
func (w *Worker) process(ctx context.Context, opp domain.ArbitrageOpportunity) {
	log := w.logger.With(
		slog.String("opp_id", opp.ID),
		slog.String("pair", opp.Pair.String()),
		slog.String("tuple", opp.Tuple()),
	)

	if !w.claims.Claim(opp.ID) {
		log.Debug("opportunity already claimed, skipping")
		return
	}

	botCfg, err := w.cfg.GetBotConfig(ctx)
	if err != nil {
		log.Warn("bot config unavailable, missing opportunity", slog.String("error", err.Error()))
		w.miss(ctx, opp.ID)
		return
	}
	if !botCfg.AutoExecute {
		log.Info("auto-execute disabled, recording only")
		w.miss(ctx, opp.ID)
		return
	}

	if exceeded, why := w.dailyLimitsExceeded(ctx, botCfg); exceeded {
		log.Warn("daily limit reached, missing opportunity", slog.String("limit", why))
		w.miss(ctx, opp.ID)
		return
	}

	profile, err := w.cfg.GetRiskProfile(ctx)
	if err != nil {
		log.Warn("risk profile unavailable, missing opportunity", slog.String("error", err.Error()))
		w.miss(ctx, opp.ID)
		return
	}

	res, err := w.engine.Execute(ctx, opp, profile)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			log.Info("tuple locked by another execution, missing opportunity")
			w.miss(ctx, opp.ID)
			return
		}
		log.Error("execution error", slog.String("error", err.Error()))
		return
	}
	if !res.Success {
		log.Warn("execution failed",
			slog.String("reason", string(res.FailureReason)),
			slog.String("error", res.ErrorMessage),
		)
	}
}

// dailyLimitsExceeded checks the since-midnight-UTC trade count and quote
// volume against the configured caps. Zero caps disable a limit.
func (w *Worker) dailyLimitsExceeded(ctx context.Context, cfg domain.BotConfig) (bool, string) {
	if cfg.MaxDailyTrades <= 0 && cfg.MaxDailyVolume <= 0 {
		return false, ""
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	count, volume, err := w.stats.TradesSince(ctx, midnight)
	if err != nil {
		w.logger.Warn("daily limit check failed", slog.String("error", err.Error()))
		return false, ""
	}
	if cfg.MaxDailyTrades > 0 && count >= int64(cfg.MaxDailyTrades) {
		return true, "max_daily_trades"
	}
	if cfg.MaxDailyVolume > 0 && volume >= cfg.MaxDailyVolume {
		return true, "max_daily_volume"
	}
	return false, ""
}

func (w *Worker) miss(ctx context.Context, oppID string) {
	w.stats.MarkOpportunity(ctx, oppID, domain.OpportunityMissed, nil)
}

// drain empties the channel after shutdown. No new executions start during
// shutdown; buffered opportunities are stale by the time restart completes,
// so they are marked missed rather than executed.
func (w *Worker) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case opp, ok := <-w.in:
			if !ok {
				return
			}
			w.logger.Warn("missing opportunity buffered at shutdown", slog.String("opp_id", opp.ID))
			w.miss(drainCtx, opp.ID)
		default:
			return
		}
	}
}
