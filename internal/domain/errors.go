package domain

import "errors"

var (
	// ErrNoOpportunity is the normal negative result of a detection pass.
	ErrNoOpportunity = errors.New("no opportunity")
	// ErrMarketMoved means the pre-execution guard tripped: prices drifted
	// past the profile limits between detection and execution.
	ErrMarketMoved = errors.New("market moved")
	// ErrInsufficientBalance means the ledger or venue declined for lack of funds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderRejected means the venue declined the order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrCompensationFailed means the compensating trade after a partial
	// execution itself failed. Real capital is exposed; never swallow it.
	ErrCompensationFailed = errors.New("compensation failed")
	// ErrTransientData means an order-book fetch failed; retry next cycle.
	ErrTransientData = errors.New("transient market data error")
	// ErrLockHeld means the per-tuple execution lock is already claimed.
	ErrLockHeld = errors.New("lock already held")
	// ErrInvalidPair means a trading pair string did not parse as BASE/QUOTE.
	ErrInvalidPair = errors.New("invalid trading pair")
	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition means an illegal opportunity status transition
	// was attempted.
	ErrInvalidTransition = errors.New("invalid status transition")
)
