package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Leg roles within a stored execution.
const (
	legRoleBuy          = "buy"
	legRoleSell         = "sell"
	legRoleCompensation = "compensation"
)

// TradeResultStore implements domain.TradeResultStore using PostgreSQL. The
// result row carries the opportunity snapshot as JSONB so a result stays
// readable even when the opportunity row was archived away; legs live in
// their own table for per-venue queries.
type TradeResultStore struct {
	pool *pgxpool.Pool
}

// NewTradeResultStore creates a TradeResultStore backed by the given pool.
func NewTradeResultStore(pool *pgxpool.Pool) *TradeResultStore {
	return &TradeResultStore{pool: pool}
}

// Insert persists a terminal result and its legs in one transaction.
func (s *TradeResultStore) Insert(ctx context.Context, res domain.ArbitrageTradeResult) error {
	oppJSON, err := json.Marshal(res.Opportunity)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity snapshot: %w", err)
	}

	var volume float64
	if res.BuyResult != nil && res.BuyResult.Success {
		volume = res.BuyResult.TotalValue
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO trade_results (id, opportunity_id, opportunity, success, failure_reason,
			error_message, compensated, realized_profit, realized_profit_pct, volume,
			started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.ID, res.Opportunity.ID, oppJSON, res.Success, string(res.FailureReason),
		res.ErrorMessage, res.Compensated, res.RealizedProfit, res.RealizedProfitPct, volume,
		res.StartedAt, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade_result %s: %w", res.ID, err)
	}

	legs := []struct {
		role string
		tr   *domain.TradeResult
	}{
		{legRoleBuy, res.BuyResult},
		{legRoleSell, res.SellResult},
		{legRoleCompensation, res.CompensationResult},
	}
	for _, leg := range legs {
		if leg.tr == nil {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO trade_legs (result_id, role, order_id, venue, pair, side,
				requested_price, executed_price, requested_qty, executed_qty,
				total_value, fee, fee_currency, success, error_message, executed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			res.ID, leg.role, leg.tr.OrderID, leg.tr.Venue, leg.tr.Pair.String(), string(leg.tr.Side),
			leg.tr.RequestedPrice, leg.tr.ExecutedPrice, leg.tr.RequestedQty, leg.tr.ExecutedQty,
			leg.tr.TotalValue, leg.tr.Fee, leg.tr.FeeCurrency, leg.tr.Success, leg.tr.ErrorMessage,
			leg.tr.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert trade_leg %s/%s: %w", res.ID, leg.role, err)
		}
	}

	return tx.Commit(ctx)
}

const tradeResultColumns = `id, opportunity, success, failure_reason, error_message,
	compensated, realized_profit, realized_profit_pct, started_at, completed_at`

// GetByID returns one result with its legs.
func (s *TradeResultStore) GetByID(ctx context.Context, id string) (domain.ArbitrageTradeResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeResultColumns+` FROM trade_results WHERE id = $1`, id)
	res, err := scanTradeResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbitrageTradeResult{}, domain.ErrNotFound
		}
		return domain.ArbitrageTradeResult{}, fmt.Errorf("postgres: get trade_result %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, order_id, venue, pair, side, requested_price, executed_price,
			requested_qty, executed_qty, total_value, fee, fee_currency, success,
			error_message, executed_at
		FROM trade_legs WHERE result_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.ArbitrageTradeResult{}, fmt.Errorf("postgres: get trade_legs %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, pairStr, sideStr string
		var tr domain.TradeResult
		if err := rows.Scan(&role, &tr.OrderID, &tr.Venue, &pairStr, &sideStr,
			&tr.RequestedPrice, &tr.ExecutedPrice, &tr.RequestedQty, &tr.ExecutedQty,
			&tr.TotalValue, &tr.Fee, &tr.FeeCurrency, &tr.Success,
			&tr.ErrorMessage, &tr.Timestamp); err != nil {
			return domain.ArbitrageTradeResult{}, fmt.Errorf("postgres: scan trade_leg: %w", err)
		}
		pair, err := domain.ParsePair(pairStr)
		if err != nil {
			return domain.ArbitrageTradeResult{}, err
		}
		tr.Pair = pair
		tr.Side = domain.OrderSide(sideStr)
		leg := tr
		switch role {
		case legRoleBuy:
			res.BuyResult = &leg
		case legRoleSell:
			res.SellResult = &leg
		case legRoleCompensation:
			res.CompensationResult = &leg
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ArbitrageTradeResult{}, err
	}
	return res, nil
}

// ListRecent returns the most recent results, legs not populated.
func (s *TradeResultStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageTradeResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeResultColumns+` FROM trade_results
		ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade_results: %w", err)
	}
	return collectTradeResults(rows)
}

// ListBefore returns results started before the given time, oldest first,
// legs not populated. Used by the archiver.
func (s *TradeResultStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageTradeResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeResultColumns+` FROM trade_results
		WHERE started_at < $1 ORDER BY started_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade_results before: %w", err)
	}
	return collectTradeResults(rows)
}

// CountSince counts executions started since the given time that placed at
// least one order. Failed and compensated executions hit real venues, so
// they consume daily trade slots; pre-trade rejections do not.
func (s *TradeResultStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM trade_results r
		WHERE r.started_at >= $1
			AND EXISTS (SELECT 1 FROM trade_legs l WHERE l.result_id = r.id)`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count trade_results: %w", err)
	}
	return count, nil
}

// SumVolumeSince sums the buy-leg notional of successful executions started
// since the given time.
func (s *TradeResultStore) SumVolumeSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(volume), 0) FROM trade_results
		WHERE success AND started_at >= $1`, since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum trade_results volume: %w", err)
	}
	return sum, nil
}

// SumProfitSince sums realized profit, losses included, of executions
// started since the given time.
func (s *TradeResultStore) SumProfitSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(realized_profit), 0) FROM trade_results
		WHERE started_at >= $1`, since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum trade_results profit: %w", err)
	}
	return sum, nil
}

func collectTradeResults(rows pgx.Rows) ([]domain.ArbitrageTradeResult, error) {
	defer rows.Close()
	var list []domain.ArbitrageTradeResult
	for rows.Next() {
		res, err := scanTradeResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade_result: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func scanTradeResult(row pgx.Row) (domain.ArbitrageTradeResult, error) {
	var res domain.ArbitrageTradeResult
	var oppJSON []byte
	var reason string
	err := row.Scan(
		&res.ID, &oppJSON, &res.Success, &reason, &res.ErrorMessage,
		&res.Compensated, &res.RealizedProfit, &res.RealizedProfitPct,
		&res.StartedAt, &res.CompletedAt,
	)
	if err != nil {
		return domain.ArbitrageTradeResult{}, err
	}
	if err := json.Unmarshal(oppJSON, &res.Opportunity); err != nil {
		return domain.ArbitrageTradeResult{}, fmt.Errorf("unmarshal opportunity snapshot: %w", err)
	}
	res.FailureReason = domain.FailureReason(reason)
	return res, nil
}

var _ domain.TradeResultStore = (*TradeResultStore)(nil)
