package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/ygor/crypto-arbitrage-sub004/internal/domain"
)

// Source adapts a validated Config into the per-cycle snapshot interface the
// scanner and executor read from. Snapshots are copies: a caller can never
// observe a half-applied update, and Update swaps the whole configuration
// atomically so changes take effect on the next cycle.
type Source struct {
	mu         sync.RWMutex
	cfg        Config
	pairs      []domain.TradingPair
	venuePairs []domain.VenuePair
}

// NewSource creates a Source from a validated Config. The trading universe
// is parsed once up front so snapshot reads cannot fail mid-run.
func NewSource(cfg *Config) (*Source, error) {
	s := &Source{}
	if err := s.Update(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Update replaces the active configuration. The new trading universe is
// parsed and, on any error, the previous configuration is kept.
func (s *Source) Update(cfg *Config) error {
	pairs := make([]domain.TradingPair, 0, len(cfg.Trading.Pairs))
	for _, raw := range cfg.Trading.Pairs {
		p, err := domain.ParsePair(raw)
		if err != nil {
			return fmt.Errorf("config: trading pair %q: %w", raw, err)
		}
		pairs = append(pairs, p)
	}

	venuePairs := make([]domain.VenuePair, 0, len(cfg.Trading.VenuePairs))
	for i, vp := range cfg.Trading.VenuePairs {
		if len(vp) != 2 {
			return fmt.Errorf("config: venue_pairs[%d] must have exactly two venues", i)
		}
		venuePairs = append(venuePairs, domain.VenuePair{A: vp[0], B: vp[1]})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = *cfg
	s.pairs = pairs
	s.venuePairs = venuePairs
	return nil
}

// GetRiskProfile returns the current risk threshold snapshot.
func (s *Source) GetRiskProfile(_ context.Context) (domain.RiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.cfg.Risk
	return domain.RiskProfile{
		MinProfitPct:             r.MinProfitPct,
		MaxTradeAmount:           r.MaxTradeAmount,
		MaxSlippagePct:           r.MaxSlippagePct,
		MaxPriceDriftPct:         r.MaxPriceDriftPct,
		MaxVolatilityDriftPct:    r.MaxVolatilityDriftPct,
		RevalidationTolerancePct: r.RevalidationTolerancePct,
		ExecutionTimeout:         r.ExecutionTimeout.Duration,
	}, nil
}

// GetBotConfig returns the current scanning and execution snapshot.
func (s *Source) GetBotConfig(_ context.Context) (domain.BotConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]domain.TradingPair, len(s.pairs))
	copy(pairs, s.pairs)
	venuePairs := make([]domain.VenuePair, len(s.venuePairs))
	copy(venuePairs, s.venuePairs)

	return domain.BotConfig{
		Pairs:              pairs,
		VenuePairs:         venuePairs,
		ScanInterval:       s.cfg.Scanner.Interval.Duration,
		MaxConcurrentScans: s.cfg.Scanner.MaxConcurrentScans,
		AutoExecute:        s.cfg.Executor.AutoExecute,
		MaxDailyTrades:     s.cfg.Executor.MaxDailyTrades,
		MaxDailyVolume:     s.cfg.Executor.MaxDailyVolume,
	}, nil
}

var _ domain.ConfigSource = (*Source)(nil)
