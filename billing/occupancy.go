/*
occupancy.go - Day counting within a billing month

PURPOSE:
  Computes how many calendar days a tenant actually occupied a unit
  within a target month, and derives the weights used by the weighted
  allocation strategies:

    person-days = occupied days x 1
    sqm-days    = occupied days x room area

ALGORITHM:
  effectiveStart = max(moveIn, first day of month)
  effectiveEnd   = moveOut set ? min(moveOut, last day of month) : last day
  occupied       = effectiveEnd - effectiveStart + 1   (inclusive, floored at 0)

  A tenant who moved in after month end, or moved out before month start,
  occupied 0 days. Same-day move-in/move-out counts as exactly 1 day.

All functions here are pure and safe for concurrent use.
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY COUNTING
// =============================================================================

// DaysInMonth returns the canonical day count for a month (28/29/30/31)
// using the standard Gregorian leap-year rule.
func DaysInMonth(year int, month time.Month) int {
	return NewBillingMonth(year, int(month)).Days()
}

// IsLeapYear reports whether the year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// OccupiedDays returns the number of calendar days in bm during which a
// tenancy with the given move-in/move-out dates was occupying the unit.
// moveOut == nil means still occupying. The count is inclusive of both
// endpoints and never negative.
func OccupiedDays(moveIn time.Time, moveOut *time.Time, bm BillingMonth) int {
	monthStart := bm.Start()
	monthEnd := bm.End()

	if moveIn.After(monthEnd) {
		return 0
	}
	if moveOut != nil && moveOut.Before(monthStart) {
		return 0
	}

	effectiveStart := moveIn
	if monthStart.After(effectiveStart) {
		effectiveStart = monthStart
	}
	effectiveEnd := monthEnd
	if moveOut != nil && moveOut.Before(effectiveEnd) {
		effectiveEnd = *moveOut
	}

	days := daysBetween(effectiveStart, effectiveEnd) + 1
	if days < 0 {
		return 0
	}
	return days
}

// daysBetween counts whole days from a to b at day granularity.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// =============================================================================
// OCCUPANCY WEIGHTS
// =============================================================================

// PersonDays returns the per-person weight for a tenant within the month:
// occupied days x 1 tenant-unit.
func PersonDays(t Tenant, bm BillingMonth) decimal.Decimal {
	return decimal.NewFromInt(int64(OccupiedDays(t.MoveInDate, t.MoveOutDate, bm)))
}

// SqmDays returns the area weight for a tenant within the month:
// occupied days x room area.
func SqmDays(t Tenant, bm BillingMonth) decimal.Decimal {
	return PersonDays(t, bm).Mul(t.RoomArea)
}

// OccupancyFraction returns occupied days / days in month as an unrounded
// decimal. Used for rent proration.
func OccupancyFraction(t Tenant, bm BillingMonth) decimal.Decimal {
	return PersonDays(t, bm).Div(decimal.NewFromInt(int64(bm.Days())))
}
