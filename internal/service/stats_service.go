package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Event channels published on the signal bus.
const (
	ChannelOpportunities = "opportunities"
	ChannelTrades        = "trades"
)

// StatsService is the statistics sink: it records opportunities and trade
// results, keeps the audit log, and fans events out on the signal bus.
// Persistence here is fire-and-forget: a store or bus failure is logged
// and never aborts an in-progress execution. Any dependency may be nil,
// in which case that sink is skipped (e.g. paper mode without Postgres).
type StatsService struct {
	opps   domain.OpportunityStore
	trades domain.TradeResultStore
	audit  domain.AuditStore
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(
	opps domain.OpportunityStore,
	trades domain.TradeResultStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		opps:   opps,
		trades: trades,
		audit:  audit,
		bus:    bus,
		logger: logger.With(slog.String("component", "stats_service")),
	}
}

// RecordOpportunity persists a detected opportunity and publishes an
// opportunity_detected event.
func (s *StatsService) RecordOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity) {
	if s.opps != nil {
		if err := s.opps.Insert(ctx, opp); err != nil {
			s.logger.WarnContext(ctx, "opportunity insert failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.publish(ctx, ChannelOpportunities, map[string]any{
		"event":       "opportunity_detected",
		"opp_id":      opp.ID,
		"pair":        opp.Pair.String(),
		"buy_venue":   opp.BuyVenue,
		"sell_venue":  opp.SellVenue,
		"buy_price":   opp.BuyPrice,
		"sell_price":  opp.SellPrice,
		"spread_pct":  opp.SpreadPct,
		"quantity":    opp.EffectiveQty,
		"est_profit":  opp.EstimatedProfit,
		"detected_at": opp.DetectedAt.Format(time.RFC3339Nano),
	})
}

// MarkOpportunity advances an opportunity's status.
func (s *StatsService) MarkOpportunity(ctx context.Context, id string, status domain.OpportunityStatus, executedAt *time.Time) {
	if s.opps == nil {
		return
	}
	if err := s.opps.UpdateStatus(ctx, id, status, executedAt); err != nil {
		s.logger.WarnContext(ctx, "opportunity status update failed",
			slog.String("opp_id", id),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
	if status == domain.OpportunityExecuting && s.audit != nil {
		if err := s.audit.Log(ctx, "execution_started", map[string]any{"opp_id": id}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("opp_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// RecordTradeResult persists a terminal execution result, writes the audit
// trail, and publishes the matching event.
func (s *StatsService) RecordTradeResult(ctx context.Context, res domain.ArbitrageTradeResult) {
	if s.trades != nil {
		if err := s.trades.Insert(ctx, res); err != nil {
			s.logger.WarnContext(ctx, "trade result insert failed",
				slog.String("result_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	event := "trade_failed"
	if res.Success {
		event = "trade_executed"
	} else if res.FailureReason == domain.FailureCompensation {
		event = "compensation_failed"
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, event, map[string]any{
			"result_id":       res.ID,
			"opp_id":          res.Opportunity.ID,
			"pair":            res.Opportunity.Pair.String(),
			"buy_venue":       res.Opportunity.BuyVenue,
			"sell_venue":      res.Opportunity.SellVenue,
			"realized_profit": res.RealizedProfit,
			"failure_reason":  string(res.FailureReason),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("result_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publish(ctx, ChannelTrades, map[string]any{
		"event":               event,
		"result_id":           res.ID,
		"opp_id":              res.Opportunity.ID,
		"pair":                res.Opportunity.Pair.String(),
		"success":             res.Success,
		"failure_reason":      string(res.FailureReason),
		"realized_profit":     res.RealizedProfit,
		"realized_profit_pct": res.RealizedProfitPct,
		"compensated":         res.Compensated,
	})
}

// TradesSince returns the count of executions that placed orders and the
// successfully traded quote volume since the given time, for the daily-limit
// guards.
func (s *StatsService) TradesSince(ctx context.Context, since time.Time) (int64, float64, error) {
	if s.trades == nil {
		return 0, 0, nil
	}
	count, err := s.trades.CountSince(ctx, since)
	if err != nil {
		return 0, 0, fmt.Errorf("stats_service: count since: %w", err)
	}
	volume, err := s.trades.SumVolumeSince(ctx, since)
	if err != nil {
		return 0, 0, fmt.Errorf("stats_service: sum volume since: %w", err)
	}
	return count, volume, nil
}

// Summary aggregates activity since the given time.
type Summary struct {
	Detected       int64
	Executed       int64
	Missed         int64
	Failed         int64
	RealizedProfit float64
}

// Summarize builds a Summary from the opportunity and trade stores.
func (s *StatsService) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	var sum Summary
	if s.opps == nil || s.trades == nil {
		return sum, nil
	}
	var err error
	if sum.Detected, err = s.opps.CountByStatus(ctx, domain.OpportunityDetected, since); err != nil {
		return sum, fmt.Errorf("stats_service: count detected: %w", err)
	}
	if sum.Executed, err = s.opps.CountByStatus(ctx, domain.OpportunityExecuted, since); err != nil {
		return sum, fmt.Errorf("stats_service: count executed: %w", err)
	}
	if sum.Missed, err = s.opps.CountByStatus(ctx, domain.OpportunityMissed, since); err != nil {
		return sum, fmt.Errorf("stats_service: count missed: %w", err)
	}
	if sum.Failed, err = s.opps.CountByStatus(ctx, domain.OpportunityFailed, since); err != nil {
		return sum, fmt.Errorf("stats_service: count failed: %w", err)
	}
	if sum.RealizedProfit, err = s.trades.SumProfitSince(ctx, since); err != nil {
		return sum, fmt.Errorf("stats_service: sum profit: %w", err)
	}
	return sum, nil
}

// publish marshals and publishes an event, logging failures. Producers
// never block on slow consumers.
func (s *StatsService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "event marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
