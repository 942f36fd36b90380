/*
allocation.go - Utility bill allocation engine

PURPOSE:
  Splits a monthly utility bill among the tenants occupying the property
  during the billing month, under one of four weighting strategies:

    per_person           equal split across eligible tenants
    per_sqm              proportional to room area
    per_person_weighted  proportional to person-days (partial months)
    per_sqm_weighted     proportional to sqm-days (area x occupied days)

STRATEGY DISPATCH:
  Strategies are a closed set of Weigher implementations, not string
  branching. The engine is generic over the Weigher interface; adding a
  strategy means adding a type, not another if/else arm.

ELIGIBILITY:
  A tenant is billable for a month when:
    move_in  <= last day of month
    move_out is nil OR move_out >= first day of month
    status == active

DEGENERATE CASES:
  Zero eligible tenants, or zero total weight under a weighted strategy
  (nobody actually present), produce an EMPTY allocation set. A bill with
  nobody to charge is a valid, observable business state, not an error.
  This policy applies uniformly to Allocate and AllocateBreakdown.

SEE ALSO:
  - money.go: Distribute (remainder-absorbing proportional split)
  - occupancy.go: PersonDays / SqmDays weights
  - service.go: Persistence orchestration (transactional replace)
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WEIGHER - Strategy interface
// =============================================================================

// Weigher computes one tenant's allocation weight for a billing month.
// Implementations must be pure.
type Weigher interface {
	// Weight returns the tenant's weight. A zero weight excludes the
	// tenant from the distribution.
	Weight(t Tenant, bm BillingMonth) decimal.Decimal

	// Method returns the allocation method this strategy implements.
	Method() AllocationMethod
}

type perPerson struct{}
type perSqm struct{}
type perPersonWeighted struct{}
type perSqmWeighted struct{}

// Weight for per_person is a flat 1 per eligible tenant: an equal split.
func (perPerson) Weight(Tenant, BillingMonth) decimal.Decimal { return decimal.NewFromInt(1) }
func (perPerson) Method() AllocationMethod                    { return MethodPerPerson }

func (perSqm) Weight(t Tenant, _ BillingMonth) decimal.Decimal { return t.RoomArea }
func (perSqm) Method() AllocationMethod                        { return MethodPerSqm }

func (perPersonWeighted) Weight(t Tenant, bm BillingMonth) decimal.Decimal { return PersonDays(t, bm) }
func (perPersonWeighted) Method() AllocationMethod                         { return MethodPerPersonWeighted }

func (perSqmWeighted) Weight(t Tenant, bm BillingMonth) decimal.Decimal { return SqmDays(t, bm) }
func (perSqmWeighted) Method() AllocationMethod                         { return MethodPerSqmWeighted }

// WeigherFor returns the strategy for an allocation method, or
// ErrInvalidInput for an unknown method.
func WeigherFor(method AllocationMethod) (Weigher, error) {
	switch method {
	case MethodPerPerson:
		return perPerson{}, nil
	case MethodPerSqm:
		return perSqm{}, nil
	case MethodPerPersonWeighted:
		return perPersonWeighted{}, nil
	case MethodPerSqmWeighted:
		return perSqmWeighted{}, nil
	default:
		return nil, &ValidationError{Field: "allocation_method", Reason: "unknown method " + string(method)}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes allocations. It is stateless apart from the rounding
// configuration and safe for concurrent use.
type Engine struct {
	rounding Rounding
}

// NewEngine creates an allocation engine with explicit rounding
// configuration.
func NewEngine(rounding Rounding) *Engine {
	return &Engine{rounding: rounding}
}

// EligibleTenants filters tenants to those billable for the entry's
// month: lease overlaps the month and status is active. Result order is
// deterministic (by tenant ID) so repeated runs produce identical
// allocation sets, including which tenant absorbs the remainder.
func (e *Engine) EligibleTenants(tenants []Tenant, bm BillingMonth) []Tenant {
	var eligible []Tenant
	for _, t := range tenants {
		if t.Status != OccupancyActive {
			continue
		}
		if !t.Occupies(bm) {
			continue
		}
		eligible = append(eligible, t)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible
}

// Allocate computes each tenant's share of the utility entry. The
// returned allocations carry tenant and entry IDs and cent-rounded
// amounts whose sum equals entry.TotalAmount exactly.
//
// An empty slice (no error) is returned when no tenant qualifies or the
// total weight is zero.
func (e *Engine) Allocate(entry UtilityEntry, tenants []Tenant) ([]Allocation, error) {
	breakdown, err := e.AllocateBreakdown(entry, tenants)
	if err != nil {
		return nil, err
	}

	allocations := make([]Allocation, 0, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		allocations = append(allocations, Allocation{
			TenantID:       line.TenantID,
			UtilityEntryID: entry.ID,
			Amount:         line.Amount,
		})
	}
	return allocations, nil
}

// AllocateBreakdown computes the allocation together with the per-tenant
// weights and the effective rate, for display and audit.
//
// The zero-weight policy matches Allocate: an empty breakdown, never an
// error, when nobody is billable.
func (e *Engine) AllocateBreakdown(entry UtilityEntry, tenants []Tenant) (*AllocationBreakdown, error) {
	weigher, err := WeigherFor(entry.Method)
	if err != nil {
		return nil, err
	}
	if !entry.Month.Valid() {
		return nil, &ValidationError{Field: "month", Reason: "month must be 1-12"}
	}
	if !entry.TotalAmount.IsPositive() {
		return nil, &ValidationError{Field: "total_amount", Reason: "must be positive"}
	}

	breakdown := &AllocationBreakdown{
		UtilityEntryID: entry.ID,
		Method:         entry.Method,
		Month:          entry.Month,
		TotalAmount:    entry.TotalAmount,
		TotalWeight:    decimal.Zero,
		Rate:           decimal.Zero,
		Lines:          []AllocationLine{},
	}

	eligible := e.EligibleTenants(tenants, entry.Month)
	if len(eligible) == 0 {
		return breakdown, nil
	}

	// Tenants with zero weight (eligible on paper but zero occupied days
	// under a weighted method) are excluded from the distribution.
	var shares []Share
	weights := make(map[TenantID]decimal.Decimal, len(eligible))
	names := make(map[TenantID]string, len(eligible))
	for _, t := range eligible {
		w := weigher.Weight(t, entry.Month)
		if !w.IsPositive() {
			continue
		}
		shares = append(shares, Share{Key: string(t.ID), Weight: w})
		weights[t.ID] = w
		names[t.ID] = t.Name
		breakdown.TotalWeight = breakdown.TotalWeight.Add(w)
	}
	if len(shares) == 0 {
		return breakdown, nil
	}

	portions, err := e.rounding.Distribute(entry.TotalAmount, shares)
	if err != nil {
		// Unreachable with positive shares; kept as a guard for the
		// Distribute contract.
		return breakdown, nil
	}

	breakdown.Rate = entry.TotalAmount.Div(breakdown.TotalWeight)
	for _, p := range portions {
		id := TenantID(p.Key)
		breakdown.Lines = append(breakdown.Lines, AllocationLine{
			TenantID:   id,
			TenantName: names[id],
			Weight:     weights[id],
			Amount:     p.Amount,
		})
	}
	return breakdown, nil
}
