/*
Package billing provides the core rental billing engine.

PURPOSE:
  This package contains the domain types and algorithms for apportioning
  rent and utility costs among tenants who occupy a property for partial
  months. It converts occupancy intervals (move-in/move-out dates) and
  utility bills into exact, auditable per-tenant monetary allocations, and
  manages the lifecycle of a monthly billing period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tenant: An occupant with a lease (room area, headcount, rent, dates)
  - UtilityEntry: A monthly utility bill to be split among tenants
  - Allocation: One tenant's share of one utility bill
  - BillingPeriod: The aggregated rent + utilities for a property/month
  - BillingMonth: A (year, month) pair identifying a billing cycle

DESIGN PRINCIPLES:
  1. Exactness: All money uses decimal.Decimal, never binary floats
  2. Sum preservation: Allocations for a bill always sum to the bill total
  3. Auditability: Every billing-period mutation leaves an audit entry
  4. Immutability: Finalized periods are never silently overwritten

SEE ALSO:
  - money.go: Decimal arithmetic and proportional distribution
  - occupancy.go: Day counting within a billing month
  - allocation.go: Weighting strategies and the allocation engine
  - manager.go: Billing period state machine
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BILLING MONTH - (year, month) pair identifying one billing cycle
// =============================================================================

// BillingMonth identifies a single calendar month for billing purposes.
type BillingMonth struct {
	Year  int
	Month time.Month
}

// NewBillingMonth builds a BillingMonth from integer month (1-12).
func NewBillingMonth(year, month int) BillingMonth {
	return BillingMonth{Year: year, Month: time.Month(month)}
}

// Start returns the first calendar day of the month (UTC, midnight).
func (bm BillingMonth) Start() time.Time {
	return time.Date(bm.Year, bm.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last calendar day of the month (UTC, midnight).
// Leap years are handled by the underlying time package.
func (bm BillingMonth) End() time.Time {
	return bm.Start().AddDate(0, 1, -1)
}

// Days returns the number of calendar days in the month (28/29/30/31).
func (bm BillingMonth) Days() int {
	return bm.End().Day()
}

// Valid reports whether the month is in 1-12 and the year is plausible.
func (bm BillingMonth) Valid() bool {
	return bm.Month >= time.January && bm.Month <= time.December && bm.Year >= 1900 && bm.Year <= 3000
}

func (bm BillingMonth) String() string {
	return bm.Start().Format("2006-01")
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PropertyID string
type TenantID string
type UtilityEntryID string
type BillingPeriodID string

// =============================================================================
// PROPERTY
// =============================================================================

// Property is a managed rental property. Tenants and utility bills
// are always scoped to a property.
type Property struct {
	ID        PropertyID
	Name      string
	Address   string
	CreatedAt time.Time
}

// =============================================================================
// TENANT
// =============================================================================

// OccupancyStatus describes a tenant's lease state.
type OccupancyStatus string

const (
	OccupancyActive   OccupancyStatus = "active"
	OccupancyPending  OccupancyStatus = "pending"
	OccupancyMovedOut OccupancyStatus = "moved_out"
)

func (s OccupancyStatus) Valid() bool {
	switch s {
	case OccupancyActive, OccupancyPending, OccupancyMovedOut:
		return true
	}
	return false
}

// Tenant is an occupant of a property.
//
// INVARIANTS:
//   - RoomArea > 0 (square meters)
//   - NumberOfPeople >= 1
//   - RentAmount > 0
//   - MoveOutDate, when set, is strictly after MoveInDate
type Tenant struct {
	ID             TenantID
	PropertyID     PropertyID
	Name           string
	RoomArea       decimal.Decimal
	NumberOfPeople int
	MoveInDate     time.Time
	MoveOutDate    *time.Time // nil = still occupying
	Status         OccupancyStatus
	RentAmount     decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Occupies reports whether the tenant's lease interval overlaps the given
// billing month at all. Status is NOT considered here; eligibility rules
// that include status live in the allocation engine.
func (t Tenant) Occupies(bm BillingMonth) bool {
	if t.MoveInDate.After(bm.End()) {
		return false
	}
	if t.MoveOutDate != nil && t.MoveOutDate.Before(bm.Start()) {
		return false
	}
	return true
}

// =============================================================================
// UTILITY ENTRY
// =============================================================================

// UtilityType is an enumerated label for the kind of utility billed.
// The set is open (new utility kinds appear), so this is a string with
// well-known values rather than a closed enum.
type UtilityType string

const (
	UtilityElectricity UtilityType = "electricity"
	UtilityWater       UtilityType = "water"
	UtilityHeating     UtilityType = "heating"
	UtilityGas         UtilityType = "gas"
	UtilityInternet    UtilityType = "internet"
	UtilityGarbage     UtilityType = "garbage"
	UtilityOther       UtilityType = "other"
)

// AllocationMethod selects the weighting strategy for splitting a bill.
type AllocationMethod string

const (
	MethodPerPerson         AllocationMethod = "per_person"
	MethodPerSqm            AllocationMethod = "per_sqm"
	MethodPerPersonWeighted AllocationMethod = "per_person_weighted"
	MethodPerSqmWeighted    AllocationMethod = "per_sqm_weighted"
)

func (m AllocationMethod) Valid() bool {
	switch m {
	case MethodPerPerson, MethodPerSqm, MethodPerPersonWeighted, MethodPerSqmWeighted:
		return true
	}
	return false
}

// UtilityEntry is one monthly utility bill for a property.
// Once allocations exist the entry is immutable, except through an explicit
// update that deletes and recomputes its allocations atomically.
type UtilityEntry struct {
	ID          UtilityEntryID
	PropertyID  PropertyID
	Month       BillingMonth
	UtilityType UtilityType
	TotalAmount decimal.Decimal
	Method      AllocationMethod
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation is one tenant's computed share of one utility bill.
//
// CORE INVARIANT: for a given UtilityEntryID, the sum of Amount over all
// its allocations equals the entry's TotalAmount exactly, to the cent.
type Allocation struct {
	ID             string
	TenantID       TenantID
	UtilityEntryID UtilityEntryID
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// AllocationLine is one row of a weighted allocation breakdown, carrying
// the intermediate figures (weight, rate) for display and audit.
type AllocationLine struct {
	TenantID   TenantID
	TenantName string
	Weight     decimal.Decimal // person-days, sqm-days, area or headcount share
	Amount     decimal.Decimal // rounded share, remainder-absorbed
}

// AllocationBreakdown is the result of a weighted allocation calculation,
// exposing how each amount was derived.
type AllocationBreakdown struct {
	UtilityEntryID UtilityEntryID
	Method         AllocationMethod
	Month          BillingMonth
	TotalAmount    decimal.Decimal
	TotalWeight    decimal.Decimal
	Rate           decimal.Decimal // TotalAmount / TotalWeight, unrounded
	Lines          []AllocationLine
}

// =============================================================================
// BILLING PERIOD
// =============================================================================

// CalculationStatus is the billing period lifecycle state.
type CalculationStatus string

const (
	StatusCalculated CalculationStatus = "calculated"
	StatusFinalized  CalculationStatus = "finalized"
)

// BillingPeriod is the aggregated rent + utilities computation for one
// property for one calendar month. One logical record exists per
// (property, month, year).
type BillingPeriod struct {
	ID             BillingPeriodID
	PropertyID     PropertyID
	Month          BillingMonth
	TotalRent      decimal.Decimal
	TotalUtilities decimal.Decimal
	Status         CalculationStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
