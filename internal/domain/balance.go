package domain

// Balance is one (venue, asset) row in the paper ledger. Reserved tracks
// amounts committed to in-flight simulated orders.
type Balance struct {
	Venue     string
	Asset     string
	Total     float64
	Available float64
	Reserved  float64
}
