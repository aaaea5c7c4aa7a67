package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// FailureReason classifies why an execution did not complete cleanly.
type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureMarketMoved         FailureReason = "market_moved"
	FailureInsufficientBalance FailureReason = "insufficient_balance"
	FailureOrderRejected       FailureReason = "order_rejected"
	FailurePartialExecution    FailureReason = "partial_execution"
	FailureCompensation        FailureReason = "compensation_failed"
	FailureTimeout             FailureReason = "timeout"
)

// TradeResult records one leg attempt against a venue. It is produced once
// per attempt and never mutated afterwards.
type TradeResult struct {
	OrderID        string
	Venue          string
	Pair           TradingPair
	Side           OrderSide
	RequestedPrice float64
	ExecutedPrice  float64
	RequestedQty   float64
	ExecutedQty    float64
	TotalValue     float64
	Fee            float64
	FeeCurrency    string
	Timestamp      time.Time
	Success        bool
	ErrorMessage   string
}

// ArbitrageTradeResult pairs an opportunity with its leg results and the
// realized outcome. It is created at execution start and finalized exactly
// once; every execution attempt produces exactly one terminal result.
type ArbitrageTradeResult struct {
	ID          string
	Opportunity ArbitrageOpportunity

	BuyResult          *TradeResult
	SellResult         *TradeResult
	CompensationResult *TradeResult
	Compensated        bool

	RealizedProfit    float64
	RealizedProfitPct float64

	Success       bool
	FailureReason FailureReason
	ErrorMessage  string

	StartedAt   time.Time
	CompletedAt time.Time
}
