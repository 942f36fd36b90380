package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearth/rental-engine/billing"
)

func decFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.January, 31},
		{2025, time.April, 30},
		{2025, time.February, 28},
		{2024, time.February, 29}, // leap
		{2000, time.February, 29}, // divisible by 400: leap
		{1900, time.February, 28}, // divisible by 100, not 400: common
	}
	for _, c := range cases {
		if got := billing.DaysInMonth(c.year, c.month); got != c.want {
			t.Errorf("DaysInMonth(%d, %s) = %d, want %d", c.year, c.month, got, c.want)
		}
	}
}

func TestIsLeapYear(t *testing.T) {
	for year, want := range map[int]bool{
		2024: true, 2025: false, 2000: true, 1900: false, 2100: false, 2400: true,
	} {
		if got := billing.IsLeapYear(year); got != want {
			t.Errorf("IsLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
}

// =============================================================================
// OCCUPIED DAYS
// =============================================================================

func TestOccupiedDays_FullMonth(t *testing.T) {
	// GIVEN: a tenant whose lease spans the entire billing month
	// THEN: occupied days equals the calendar length of the month

	june := billing.NewBillingMonth(2025, 6)
	if got := billing.OccupiedDays(date(2025, time.January, 1), nil, june); got != 30 {
		t.Errorf("full June = %d days, want 30", got)
	}

	febLeap := billing.NewBillingMonth(2024, 2)
	if got := billing.OccupiedDays(date(2023, time.May, 10), nil, febLeap); got != 29 {
		t.Errorf("full Feb 2024 = %d days, want 29", got)
	}
}

func TestOccupiedDays_MidMonthMoveIn(t *testing.T) {
	// Move in June 16: days 16..30 inclusive = 15 days.
	june := billing.NewBillingMonth(2025, 6)
	if got := billing.OccupiedDays(date(2025, time.June, 16), nil, june); got != 15 {
		t.Errorf("move-in June 16 = %d days, want 15", got)
	}
}

func TestOccupiedDays_MidMonthMoveOut(t *testing.T) {
	// Move out June 10: days 1..10 inclusive = 10 days.
	june := billing.NewBillingMonth(2025, 6)
	got := billing.OccupiedDays(date(2025, time.January, 1), datePtr(2025, time.June, 10), june)
	if got != 10 {
		t.Errorf("move-out June 10 = %d days, want 10", got)
	}
}

func TestOccupiedDays_SameDayMoveInAndOut(t *testing.T) {
	// Move in and out on the same day counts as one occupied day.
	june := billing.NewBillingMonth(2025, 6)
	got := billing.OccupiedDays(date(2025, time.June, 5), datePtr(2025, time.June, 5), june)
	if got != 1 {
		t.Errorf("same-day lease = %d days, want 1", got)
	}
}

func TestOccupiedDays_NoOverlap(t *testing.T) {
	june := billing.NewBillingMonth(2025, 6)

	// Moved out before the month started.
	if got := billing.OccupiedDays(date(2025, time.January, 1), datePtr(2025, time.May, 31), june); got != 0 {
		t.Errorf("moved out in May = %d days, want 0", got)
	}
	// Moves in after the month ended.
	if got := billing.OccupiedDays(date(2025, time.July, 1), nil, june); got != 0 {
		t.Errorf("moves in July = %d days, want 0", got)
	}
}

// =============================================================================
// WEIGHTS
// =============================================================================

func TestPersonDays_OneUnitPerOccupiedDay(t *testing.T) {
	june := billing.NewBillingMonth(2025, 6)
	tenant := billing.Tenant{
		NumberOfPeople: 2,
		MoveInDate:     date(2025, time.June, 16),
		Status:         billing.OccupancyActive,
	}
	// 15 occupied days x 1 tenant-unit. Household size does not scale the
	// weight; it is descriptive.
	if got := billing.PersonDays(tenant, june); !got.Equal(decFromInt(15)) {
		t.Errorf("PersonDays = %s, want 15", got)
	}
}

func TestSqmDays_AreaTimesOccupiedDays(t *testing.T) {
	june := billing.NewBillingMonth(2025, 6)
	tenant := billing.Tenant{
		RoomArea:       decFromInt(20),
		NumberOfPeople: 1,
		MoveInDate:     date(2025, time.June, 1),
		Status:         billing.OccupancyActive,
	}
	// 20 sqm x 30 days = 600 sqm-days.
	if got := billing.SqmDays(tenant, june); !got.Equal(decFromInt(600)) {
		t.Errorf("SqmDays = %s, want 600", got)
	}
}

func TestOccupancyFraction(t *testing.T) {
	june := billing.NewBillingMonth(2025, 6)
	tenant := billing.Tenant{
		NumberOfPeople: 1,
		MoveInDate:     date(2025, time.June, 16),
		Status:         billing.OccupancyActive,
	}
	// 15/30 of the month.
	got := billing.OccupancyFraction(tenant, june)
	if !got.Equal(decFromInt(1).Div(decFromInt(2))) {
		t.Errorf("OccupancyFraction = %s, want 0.5", got)
	}
}
