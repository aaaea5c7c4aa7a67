// Package executor implements the dual-leg execution engine: given a
// validated opportunity it re-checks the market, places the buy leg, places
// the sell leg sized by the buy fill, and compensates by selling back the
// acquired base asset when the sell leg fails. Every attempt ends in exactly
// one terminal ArbitrageTradeResult.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
	"github.com/ygor/crypto-arbitrage-sub004/internal/risk"
	"github.com/ygor/crypto-arbitrage-sub004/internal/service"
)

const (
	defaultExecutionTimeout = 10 * time.Second
	compensationTimeout     = 10 * time.Second
	lockSlack               = 5 * time.Second
)

// Alerter delivers operator alerts for events that need human attention.
// Implemented by the notify package.
type Alerter interface {
	Alert(ctx context.Context, event, message string) error
}

// Engine executes a single opportunity end to end. It holds no per-trade
// state and is safe for concurrent use; the per-tuple lock serializes
// conflicting executions.
type Engine struct {
	books    domain.MarketDataSource
	orders   domain.OrderPlacer
	locks    domain.LockManager
	gate     *risk.Gate
	stats    *service.StatsService
	notifier Alerter
	logger   *slog.Logger
}

// NewEngine creates an Engine. notifier may be nil.
func NewEngine(
	books domain.MarketDataSource,
	orders domain.OrderPlacer,
	locks domain.LockManager,
	gate *risk.Gate,
	stats *service.StatsService,
	notifier Alerter,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		books:    books,
		orders:   orders,
		locks:    locks,
		gate:     gate,
		stats:    stats,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Execute runs the buy-then-sell protocol for opp under the given risk
// profile snapshot. It returns domain.ErrLockHeld without a result when
// another execution already owns the (pair, buy venue, sell venue) tuple;
// every other outcome produces a terminal result, recorded through the
// stats service.
//
// Cancellation of ctx does not abort an execution already under way: once
// the buy leg may have been placed, stopping mid-flight would strand an
// open position. The per-execution deadline comes from the profile instead.
func (e *Engine) Execute(ctx context.Context, opp domain.ArbitrageOpportunity, profile domain.RiskProfile) (domain.ArbitrageTradeResult, error) {
	timeout := profile.ExecutionTimeout
	if timeout <= 0 {
		timeout = defaultExecutionTimeout
	}

	unlock, err := e.locks.Acquire(ctx, opp.Tuple(), timeout+lockSlack)
	if err != nil {
		return domain.ArbitrageTradeResult{}, fmt.Errorf("executor: claim %s: %w", opp.Tuple(), err)
	}
	defer unlock()

	log := e.logger.With(
		slog.String("opp_id", opp.ID),
		slog.String("pair", opp.Pair.String()),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
	)

	opp.Status = domain.OpportunityExecuting
	e.stats.MarkOpportunity(ctx, opp.ID, domain.OpportunityExecuting, nil)

	res := domain.ArbitrageTradeResult{
		ID:          uuid.New().String(),
		Opportunity: opp,
		StartedAt:   time.Now().UTC(),
	}

	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	// Re-validate against books fetched now, not the snapshot that produced
	// the opportunity.
	freshBuy, err := e.books.GetOrderBook(execCtx, opp.BuyVenue, opp.Pair)
	if err == nil {
		var freshSell domain.OrderBook
		freshSell, err = e.books.GetOrderBook(execCtx, opp.SellVenue, opp.Pair)
		if err == nil {
			err = e.gate.Revalidate(opp, freshBuy, freshSell, profile)
		}
	}
	if err != nil {
		log.Warn("pre-execution validation failed", slog.String("error", err.Error()))
		return e.finalize(ctx, res, domain.FailureMarketMoved, err), nil
	}

	qty := e.gate.PositionSize(opp, profile)
	if qty <= 0 {
		err = fmt.Errorf("%w: position size is zero", domain.ErrOrderRejected)
		return e.finalize(ctx, res, domain.FailureOrderRejected, err), nil
	}

	// Buy leg.
	buyRes, buyErr := e.orders.PlaceMarketOrder(execCtx, opp.BuyVenue, opp.Pair, domain.OrderSideBuy, qty)
	res.BuyResult = &buyRes
	if buyErr != nil || !buyRes.Success {
		if buyErr == nil {
			buyErr = fmt.Errorf("%w: %s", domain.ErrOrderRejected, buyRes.ErrorMessage)
		}
		log.Warn("buy leg failed", slog.String("error", buyErr.Error()))
		return e.finalize(ctx, res, classifyLegFailure(execCtx, buyErr), buyErr), nil
	}

	// Sell leg, sized by what the buy actually filled.
	sellRes, sellErr := e.orders.PlaceMarketOrder(execCtx, opp.SellVenue, opp.Pair, domain.OrderSideSell, buyRes.ExecutedQty)
	res.SellResult = &sellRes
	if sellErr != nil || !sellRes.Success {
		if sellErr == nil {
			sellErr = fmt.Errorf("%w: %s", domain.ErrOrderRejected, sellRes.ErrorMessage)
		}
		log.Warn("sell leg failed, compensating", slog.String("error", sellErr.Error()))
		e.compensate(&res, buyRes, log)
		reason := domain.FailurePartialExecution
		if classifyLegFailure(execCtx, sellErr) == domain.FailureTimeout {
			reason = domain.FailureTimeout
		}
		if !res.Compensated {
			reason = domain.FailureCompensation
		}
		return e.finalize(ctx, res, reason, sellErr), nil
	}

	res.Success = true
	res.RealizedProfit = (sellRes.TotalValue - sellRes.Fee) - (buyRes.TotalValue + buyRes.Fee)
	if cost := buyRes.TotalValue + buyRes.Fee; cost > 0 {
		res.RealizedProfitPct = res.RealizedProfit / cost * 100
	}

	now := time.Now().UTC()
	res.CompletedAt = now
	res.Opportunity.Status = domain.OpportunityExecuted
	res.Opportunity.ExecutedAt = &now
	e.stats.MarkOpportunity(ctx, opp.ID, domain.OpportunityExecuted, &now)
	e.stats.RecordTradeResult(ctx, res)

	log.Info("arbitrage executed",
		slog.Float64("quantity", buyRes.ExecutedQty),
		slog.Float64("realized_profit", res.RealizedProfit),
		slog.Float64("realized_profit_pct", res.RealizedProfitPct),
	)
	return res, nil
}

// compensate places a single market sell on the buy venue to unwind the
// filled buy leg. It runs on its own short deadline detached from the
// execution context so an expired execution deadline cannot block the
// unwind. One attempt only; a failed compensation is an operator problem,
// not something to retry blind.
func (e *Engine) compensate(res *domain.ArbitrageTradeResult, buyRes domain.TradeResult, log *slog.Logger) {
	if buyRes.ExecutedQty <= 0 {
		return
	}

	compCtx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	compRes, err := e.orders.PlaceMarketOrder(compCtx, buyRes.Venue, buyRes.Pair, domain.OrderSideSell, buyRes.ExecutedQty)
	res.CompensationResult = &compRes
	if err != nil || !compRes.Success {
		msg := compRes.ErrorMessage
		if err != nil {
			msg = err.Error()
		}
		log.Error("compensation failed, position left open",
			slog.String("venue", buyRes.Venue),
			slog.Float64("quantity", buyRes.ExecutedQty),
			slog.String("error", msg),
		)
		if e.notifier != nil {
			_ = e.notifier.Alert(compCtx, "compensation_failed", fmt.Sprintf(
				"unwind sell of %.8f %s on %s failed: %s",
				buyRes.ExecutedQty, buyRes.Pair.Base, buyRes.Venue, msg))
		}
		return
	}

	res.Compensated = true
	log.Info("buy leg compensated",
		slog.String("venue", buyRes.Venue),
		slog.Float64("quantity", compRes.ExecutedQty),
	)
}

// finalize closes out a failed execution: terminal status, recorded result,
// realized loss when any leg filled.
func (e *Engine) finalize(ctx context.Context, res domain.ArbitrageTradeResult, reason domain.FailureReason, cause error) domain.ArbitrageTradeResult {
	res.Success = false
	res.FailureReason = reason
	if cause != nil {
		res.ErrorMessage = cause.Error()
	}
	res.CompletedAt = time.Now().UTC()
	res.Opportunity.Status = domain.OpportunityFailed

	res.RealizedProfit = legNet(res.SellResult) + legNet(res.CompensationResult) - legCost(res.BuyResult)

	e.stats.MarkOpportunity(ctx, res.Opportunity.ID, domain.OpportunityFailed, nil)
	e.stats.RecordTradeResult(ctx, res)
	return res
}

// classifyLegFailure maps a leg error to its failure reason.
func classifyLegFailure(ctx context.Context, err error) domain.FailureReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return domain.FailureTimeout
	case errors.Is(err, domain.ErrInsufficientBalance):
		return domain.FailureInsufficientBalance
	default:
		return domain.FailureOrderRejected
	}
}

// legNet is the quote-asset credit of a filled sell leg.
func legNet(tr *domain.TradeResult) float64 {
	if tr == nil || !tr.Success {
		return 0
	}
	return tr.TotalValue - tr.Fee
}

// legCost is the quote-asset debit of a filled buy leg.
func legCost(tr *domain.TradeResult) float64 {
	if tr == nil || !tr.Success {
		return 0
	}
	return tr.TotalValue + tr.Fee
}
