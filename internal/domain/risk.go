package domain

import (
	"context"
	"time"
)

// RiskProfile holds the thresholds applied during one detect-execute cycle.
// Callers treat it as an immutable snapshot: a new profile only takes
// effect on the next cycle, never mid-cycle.
type RiskProfile struct {
	// MinProfitPct is the minimum spread percentage an opportunity must
	// clear at detection time.
	MinProfitPct float64
	// MaxTradeAmount caps the notional (in quote asset) consumed by the
	// depth walk when sizing an opportunity.
	MaxTradeAmount float64
	// MaxSlippagePct bounds how far beyond the best price the depth walk
	// may consume levels.
	MaxSlippagePct float64
	// MaxPriceDriftPct is the largest per-leg price move tolerated between
	// detection and execution.
	MaxPriceDriftPct float64
	// MaxVolatilityDriftPct is the largest change in spread percentage
	// tolerated between detection and execution.
	MaxVolatilityDriftPct float64
	// RevalidationTolerancePct is added to the recomputed spread before the
	// minimum-profit re-check at execution time. Zero by default.
	RevalidationTolerancePct float64
	// ExecutionTimeout bounds one full execution cycle.
	ExecutionTimeout time.Duration
}

// BotConfig is the per-cycle snapshot of the scanning and execution
// configuration. Like RiskProfile it is read once per cycle.
type BotConfig struct {
	Pairs              []TradingPair
	VenuePairs         []VenuePair
	ScanInterval       time.Duration
	MaxConcurrentScans int
	AutoExecute        bool
	MaxDailyTrades     int
	MaxDailyVolume     float64
}

// ConfigSource supplies the per-cycle configuration snapshots.
type ConfigSource interface {
	GetRiskProfile(ctx context.Context) (RiskProfile, error)
	GetBotConfig(ctx context.Context) (BotConfig, error)
}
