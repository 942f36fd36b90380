/*
money.go - Exact decimal money arithmetic and proportional distribution

PURPOSE:
  All money-bearing operations in the engine run on decimal.Decimal,
  never on native binary floats, so many small allocations cannot drift.
  This file holds the rounding configuration and the one non-trivial
  primitive: Distribute, a proportional split with remainder absorption.

REMAINDER ABSORPTION:
  Each share (except the last, in input order) is
      round(total * weight / sumOfWeights)
  and the final share absorbs the exact remainder
      total - sum(previous shares)
  so the shares ALWAYS sum to the total to the cent, regardless of the
  rounding error accumulated on the earlier shares.

ROUNDING:
  Round-half-up at 2 decimal places (standard currency rounding).
  The rounding scale is explicit configuration on the Rounding value,
  passed into the engine at construction. There is no process-wide
  decimal precision state.

SEE ALSO:
  - allocation.go: Uses Distribute to split utility bills
  - manager.go: Uses Rounding for prorated rent
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING - Explicit money rounding configuration
// =============================================================================

// Rounding carries the currency rounding configuration. The zero value is
// not useful; construct with CurrencyRounding or set Places explicitly.
type Rounding struct {
	// Places is the number of decimal places money is rounded to.
	Places int32
}

// CurrencyRounding returns the standard 2-decimal-place configuration.
func CurrencyRounding() Rounding {
	return Rounding{Places: 2}
}

// Round rounds half-up to the configured number of places.
func (r Rounding) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(r.Places)
}

// Cent returns the smallest representable currency unit (e.g. 0.01).
func (r Rounding) Cent() decimal.Decimal {
	return decimal.New(1, -r.Places)
}

// =============================================================================
// BASIC OPERATIONS
// =============================================================================

// Div divides a by b, failing with ErrDivisionByZero when b is zero.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return a.Div(b), nil
}

// Percentage returns pct percent of amount (unrounded).
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}

// =============================================================================
// PROPORTIONAL DISTRIBUTION
// =============================================================================

// Share is one weighted participant in a distribution, identified by an
// opaque key. Input order is significant: the last share absorbs the
// rounding remainder.
type Share struct {
	Key    string
	Weight decimal.Decimal
}

// Portion is one computed slice of a distributed total.
type Portion struct {
	Key    string
	Amount decimal.Decimal
}

// Distribute splits total across the shares in proportion to their
// weights. Every portion except the last is rounded with r; the last
// portion is total minus the sum of the previous portions, so the
// portions sum to total exactly.
//
// Fails with ErrDivisionByZero when the weights sum to zero (including
// the empty-shares case). Callers that treat "nobody to bill" as a valid
// state must handle that error themselves; see Engine.Allocate.
func (r Rounding) Distribute(total decimal.Decimal, shares []Share) ([]Portion, error) {
	totalWeight := decimal.Zero
	for _, s := range shares {
		totalWeight = totalWeight.Add(s.Weight)
	}
	if totalWeight.IsZero() {
		return nil, ErrDivisionByZero
	}

	portions := make([]Portion, len(shares))
	allocated := decimal.Zero
	for i, s := range shares {
		var amount decimal.Decimal
		if i == len(shares)-1 {
			// Remainder absorption: the final share takes whatever is
			// left, keeping the sum exact to the cent.
			amount = total.Sub(allocated)
		} else {
			amount = r.Round(total.Mul(s.Weight).Div(totalWeight))
		}
		portions[i] = Portion{Key: s.Key, Amount: amount}
		allocated = allocated.Add(amount)
	}
	return portions, nil
}
