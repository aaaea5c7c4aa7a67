package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityColumns = `id, pair, buy_venue, sell_venue, buy_price, sell_price,
	buy_depth_qty, sell_depth_qty, effective_qty, spread, spread_pct,
	estimated_profit, status, detected_at, executed_at`

// Insert persists a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		opp.ID, opp.Pair.String(), opp.BuyVenue, opp.SellVenue, opp.BuyPrice, opp.SellPrice,
		opp.BuyDepthQty, opp.SellDepthQty, opp.EffectiveQty, opp.Spread, opp.SpreadPct,
		opp.EstimatedProfit, string(opp.Status), opp.DetectedAt, opp.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// UpdateStatus advances an opportunity's status.
func (s *OpportunityStore) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, executedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET status = $2, executed_at = COALESCE($3, executed_at)
		WHERE id = $1`,
		id, string(status), executedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update opportunity %s status: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one opportunity.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.ArbitrageOpportunity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbitrageOpportunity{}, domain.ErrNotFound
		}
		return domain.ArbitrageOpportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// ListRecent returns the most recently detected opportunities.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+opportunityColumns+` FROM opportunities
		ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	return collectOpportunities(rows)
}

// ListBefore returns opportunities detected before the given time, oldest
// first. Used by the archiver.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+opportunityColumns+` FROM opportunities
		WHERE detected_at < $1 ORDER BY detected_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before: %w", err)
	}
	return collectOpportunities(rows)
}

// CountByStatus counts opportunities in a status detected since the given
// time.
func (s *OpportunityStore) CountByStatus(ctx context.Context, status domain.OpportunityStatus, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM opportunities WHERE status = $1 AND detected_at >= $2`,
		string(status), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count opportunities by status: %w", err)
	}
	return count, nil
}

func collectOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	defer rows.Close()
	var list []domain.ArbitrageOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		list = append(list, opp)
	}
	return list, rows.Err()
}

func scanOpportunity(row pgx.Row) (domain.ArbitrageOpportunity, error) {
	var opp domain.ArbitrageOpportunity
	var pairStr, statusStr string
	err := row.Scan(
		&opp.ID, &pairStr, &opp.BuyVenue, &opp.SellVenue, &opp.BuyPrice, &opp.SellPrice,
		&opp.BuyDepthQty, &opp.SellDepthQty, &opp.EffectiveQty, &opp.Spread, &opp.SpreadPct,
		&opp.EstimatedProfit, &statusStr, &opp.DetectedAt, &opp.ExecutedAt,
	)
	if err != nil {
		return domain.ArbitrageOpportunity{}, err
	}
	pair, err := domain.ParsePair(pairStr)
	if err != nil {
		return domain.ArbitrageOpportunity{}, err
	}
	opp.Pair = pair
	opp.Status = domain.OpportunityStatus(statusStr)
	return opp, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
