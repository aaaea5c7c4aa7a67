package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Narrow store interfaces covering only the queries the archiver runs. The
// Postgres stores satisfy them implicitly.

// OpportunityArchiveStore reads opportunities for archival.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error)
}

// TradeResultArchiveStore reads trade results for archival.
type TradeResultArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageTradeResult, error)
}

// Archiver serializes old opportunity and trade history to JSONL and
// uploads it to the object store. It never deletes from the primary store;
// pruning is a separate, explicit step once an archive has been verified.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
	trades TradeResultArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, opps OpportunityArchiveStore, trades TradeResultArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		opps:   opps,
		trades: trades,
		audit:  audit,
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// to archive/opportunities/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(opps))
	a.logArchive(ctx, "archive.opportunities", path, count, before)
	return count, nil
}

// ArchiveTradeResults uploads all trade results started before the cutoff
// to archive/trade_results/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveTradeResults(ctx context.Context, before time.Time) (int64, error) {
	results, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trade results query: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trade results marshal: %w", err)
	}

	path := archivePath("trade_results", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trade results upload: %w", err)
	}

	count := int64(len(results))
	a.logArchive(ctx, "archive.trade_results", path, count, before)
	return count, nil
}

func (a *Archiver) logArchive(ctx context.Context, event, path string, count int64, before time.Time) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Log(ctx, event, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	})
}

// archivePath builds the object key, partitioned by the cutoff year-month,
// e.g. archive/trade_results/2025-01.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
