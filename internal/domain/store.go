package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected opportunities and their status
// transitions.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	UpdateStatus(ctx context.Context, id string, status OpportunityStatus, executedAt *time.Time) error
	GetByID(ctx context.Context, id string) (ArbitrageOpportunity, error)
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageOpportunity, error)
	CountByStatus(ctx context.Context, status OpportunityStatus, since time.Time) (int64, error)
}

// TradeResultStore persists terminal execution results together with their
// leg trades.
type TradeResultStore interface {
	Insert(ctx context.Context, res ArbitrageTradeResult) error
	GetByID(ctx context.Context, id string) (ArbitrageTradeResult, error)
	ListRecent(ctx context.Context, limit int) ([]ArbitrageTradeResult, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbitrageTradeResult, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	SumVolumeSince(ctx context.Context, since time.Time) (float64, error)
	SumProfitSince(ctx context.Context, since time.Time) (float64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
