package domain

import "time"

// OpportunityStatus is the lifecycle state of a detected opportunity.
type OpportunityStatus string

const (
	OpportunityDetected  OpportunityStatus = "detected"
	OpportunityExecuting OpportunityStatus = "executing"
	OpportunityExecuted  OpportunityStatus = "executed"
	OpportunityFailed    OpportunityStatus = "failed"
	OpportunityMissed    OpportunityStatus = "missed"
)

// CanTransitionTo reports whether moving from s to next is a legal,
// forward-only transition. Transitions back to "detected" are never legal.
func (s OpportunityStatus) CanTransitionTo(next OpportunityStatus) bool {
	switch s {
	case OpportunityDetected:
		return next == OpportunityExecuting || next == OpportunityMissed
	case OpportunityExecuting:
		return next == OpportunityExecuted || next == OpportunityFailed
	default:
		// executed / failed / missed are terminal.
		return false
	}
}

// Terminal reports whether the status is an end state.
func (s OpportunityStatus) Terminal() bool {
	switch s {
	case OpportunityExecuted, OpportunityFailed, OpportunityMissed:
		return true
	}
	return false
}

// ArbitrageOpportunity is a detected price discrepancy between two venues
// for the same pair. It is immutable after creation except for the status
// and ExecutedAt fields, which only the execution engine advances.
type ArbitrageOpportunity struct {
	ID              string
	Pair            TradingPair
	BuyVenue        string
	SellVenue       string
	BuyPrice        float64
	SellPrice       float64
	BuyDepthQty     float64
	SellDepthQty    float64
	EffectiveQty    float64
	Spread          float64
	SpreadPct       float64
	EstimatedProfit float64
	DetectedAt      time.Time
	Status          OpportunityStatus
	ExecutedAt      *time.Time
}

// Tuple returns the claim key for the per-(pair, buyVenue, sellVenue)
// execution lock. Two opportunities on the same tuple target the same
// liquidity and must never execute concurrently.
func (o ArbitrageOpportunity) Tuple() string {
	return o.Pair.String() + "|" + o.BuyVenue + "|" + o.SellVenue
}
