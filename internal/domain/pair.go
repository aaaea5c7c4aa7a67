package domain

import (
	"fmt"
	"strings"
)

// TradingPair identifies what is traded as a base/quote asset combination,
// e.g. BTC/USDT. It is immutable once constructed.
type TradingPair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" string into a TradingPair. Both legs are
// upper-cased and trimmed.
func ParsePair(s string) (TradingPair, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	base := strings.ToUpper(strings.TrimSpace(parts[0]))
	quote := strings.ToUpper(strings.TrimSpace(parts[1]))
	if base == "" || quote == "" {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	return TradingPair{Base: base, Quote: quote}, nil
}

// String renders the pair as "BASE/QUOTE".
func (p TradingPair) String() string {
	return p.Base + "/" + p.Quote
}

// IsZero reports whether the pair is unset.
func (p TradingPair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}

// VenuePair names an unordered pair of venues whose books are compared
// against each other. The scanner checks both trade directions.
type VenuePair struct {
	A string
	B string
}

// String renders the venue pair as "a<->b".
func (vp VenuePair) String() string {
	return vp.A + "<->" + vp.B
}
