package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (w *memWriter) Put(_ context.Context, path string, data []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.objects[path] = data
	w.types[path] = contentType
	return nil
}

type oppLister struct {
	opps []domain.ArbitrageOpportunity
	err  error
}

func (l *oppLister) ListBefore(context.Context, time.Time) ([]domain.ArbitrageOpportunity, error) {
	return l.opps, l.err
}

type resultLister struct {
	results []domain.ArbitrageTradeResult
}

func (l *resultLister) ListBefore(context.Context, time.Time) ([]domain.ArbitrageTradeResult, error) {
	return l.results, nil
}

type memAudit struct {
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveOpportunities(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	opps := []domain.ArbitrageOpportunity{
		{ID: "a", BuyVenue: "binance", SellVenue: "kraken"},
		{ID: "b", BuyVenue: "kraken", SellVenue: "binance"},
	}
	writer := newMemWriter()
	audit := &memAudit{}
	a := NewArchiver(writer, &oppLister{opps: opps}, &resultLister{}, audit)

	count, err := a.ArchiveOpportunities(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	data, ok := writer.objects["archive/opportunities/2025-03.jsonl"]
	require.True(t, ok)
	assert.Equal(t, "application/x-ndjson", writer.types["archive/opportunities/2025-03.jsonl"])

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)
	var first domain.ArbitrageOpportunity
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "a", first.ID)

	assert.Equal(t, []string{"archive.opportunities"}, audit.events)
}

func TestArchiveOpportunitiesEmpty(t *testing.T) {
	writer := newMemWriter()
	a := NewArchiver(writer, &oppLister{}, &resultLister{}, nil)

	count, err := a.ArchiveOpportunities(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.objects)
}

func TestArchiveOpportunitiesQueryError(t *testing.T) {
	boom := errors.New("boom")
	a := NewArchiver(newMemWriter(), &oppLister{err: boom}, &resultLister{}, nil)

	_, err := a.ArchiveOpportunities(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestArchiveTradeResults(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	results := []domain.ArbitrageTradeResult{{ID: "r1", Success: true}}
	writer := newMemWriter()
	a := NewArchiver(writer, &oppLister{}, &resultLister{results: results}, nil)

	count, err := a.ArchiveTradeResults(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Contains(t, writer.objects, "archive/trade_results/2025-03.jsonl")
}

func TestArchiveUploadError(t *testing.T) {
	writer := newMemWriter()
	writer.err = errors.New("denied")
	a := NewArchiver(writer, &oppLister{opps: []domain.ArbitrageOpportunity{{ID: "a"}}}, &resultLister{}, nil)

	_, err := a.ArchiveOpportunities(context.Background(), time.Now())
	assert.Error(t, err)
}
