/*
manager.go - Billing period lifecycle

PURPOSE:
  Orchestrates monthly billing for a property: prorates each tenant's
  rent by actual occupancy, sums the month's utility bills, upserts the
  one BillingPeriod row per (property, month, year), and guards the
  calculated -> finalized state machine.

STATE MACHINE:
  calculated   set whenever the period is computed or recomputed
  finalized    terminal; never overwritten without an explicit, audited
               force

  CreateOrUpdate   fails with ErrAlreadyFinalized on a finalized period
                   unless Force is set
  Finalize         fails with ErrNotFound / ErrAlreadyFinalized
  Recalculate      fails with ErrCannotRecalculateFinalized on a
                   finalized period unless Force is set; the forced path
                   records the prior totals in the audit trail

RENT PRORATION:
  dailyRate = monthlyRent / daysInMonth
  proRated  = round(dailyRate x occupiedDays)
  Total rent is the sum of per-tenant prorated figures, each rounded to
  the cent before summation.

AUDIT:
  Every mutation appends exactly one audit entry: created on first
  calculation, calculated on an ordinary recomputation, recalculated on
  the explicit/forced path, finalized on lock. See audit.go for the
  minimum details contract.

CONCURRENCY:
  A keyed mutex per (property, month, year) serializes mutations, so the
  read-check-upsert sequence can't interleave and overwrite a period
  finalized by a concurrent request.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodOptions configures CreateOrUpdate.
type PeriodOptions struct {
	Notes string
	// Force lets the computation overwrite a finalized period. Forced
	// overwrites are always audited as recalculated with prior totals.
	Force bool
}

// Adjustments configures Recalculate.
type Adjustments struct {
	// Reason is recorded in the audit entry. Required.
	Reason string
	Notes  string
	// Force allows recalculating a finalized period.
	Force bool
}

// PeriodManager drives the billing period lifecycle.
type PeriodManager struct {
	store    Store
	rounding Rounding
	locks    *keyedMutex
}

// NewPeriodManager creates a manager with explicit rounding configuration.
func NewPeriodManager(store Store, rounding Rounding) *PeriodManager {
	return &PeriodManager{
		store:    store,
		rounding: rounding,
		locks:    newKeyedMutex(),
	}
}

func periodKey(propertyID PropertyID, bm BillingMonth) string {
	return fmt.Sprintf("%s|%s", propertyID, bm)
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

// CreateOrUpdate computes the billing period for a property-month and
// upserts it with status calculated.
func (m *PeriodManager) CreateOrUpdate(ctx context.Context, propertyID PropertyID, month, year int, opts PeriodOptions) (*BillingPeriod, error) {
	bm := NewBillingMonth(year, month)
	if !bm.Valid() {
		return nil, &ValidationError{Field: "month", Reason: "month must be 1-12"}
	}

	unlock := m.locks.Lock(periodKey(propertyID, bm))
	defer unlock()

	return m.recomputeLocked(ctx, propertyID, bm, opts.Notes, opts.Force, "", false)
}

// recomputeLocked performs the computation and upsert. Callers hold the
// period lock. viaRecalculate marks the explicit recalculation path,
// which is always audited as recalculated with the prior totals.
func (m *PeriodManager) recomputeLocked(ctx context.Context, propertyID PropertyID, bm BillingMonth, notes string, force bool, reason string, viaRecalculate bool) (*BillingPeriod, error) {
	property, err := m.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, &PersistenceError{Op: "get property", Err: err}
	}
	if property == nil {
		return nil, fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
	}

	existing, err := m.store.FindBillingPeriod(ctx, propertyID, bm)
	if err != nil {
		return nil, &PersistenceError{Op: "find billing period", Err: err}
	}
	if existing != nil && existing.Status == StatusFinalized && !force {
		return nil, fmt.Errorf("billing period %s %s: %w", propertyID, bm, ErrAlreadyFinalized)
	}

	tenants, err := m.store.ListTenantsByProperty(ctx, propertyID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tenants", Err: err}
	}
	totalRent := m.proratedRentTotal(tenants, bm)

	entries, err := m.store.ListUtilityEntries(ctx, propertyID, bm)
	if err != nil {
		return nil, &PersistenceError{Op: "list utility entries", Err: err}
	}
	totalUtilities := decimal.Zero
	for _, e := range entries {
		totalUtilities = totalUtilities.Add(e.TotalAmount)
	}

	period := BillingPeriod{
		ID:             BillingPeriodID(uuid.NewString()),
		PropertyID:     propertyID,
		Month:          bm,
		TotalRent:      totalRent,
		TotalUtilities: totalUtilities,
		Status:         StatusCalculated,
		Notes:          notes,
	}
	if existing != nil {
		period.ID = existing.ID
		if notes == "" {
			period.Notes = existing.Notes
		}
	}

	stored, err := m.store.UpsertBillingPeriod(ctx, period)
	if err != nil {
		return nil, &PersistenceError{Op: "upsert billing period", Err: err}
	}

	action := AuditCreated
	details := map[string]any{
		"total_rent":      totalRent.StringFixed(2),
		"total_utilities": totalUtilities.StringFixed(2),
		"tenant_count":    len(tenants),
		"utility_count":   len(entries),
	}
	if existing != nil {
		if viaRecalculate || force {
			action = AuditRecalculated
			details = map[string]any{
				"prior_total_rent":      existing.TotalRent.StringFixed(2),
				"prior_total_utilities": existing.TotalUtilities.StringFixed(2),
				"new_total_rent":        totalRent.StringFixed(2),
				"new_total_utilities":   totalUtilities.StringFixed(2),
				"reason":                reason,
			}
		} else {
			action = AuditCalculated
		}
	}
	if err := m.appendAudit(ctx, stored.ID, action, details); err != nil {
		return nil, err
	}
	return stored, nil
}

// proratedRentTotal sums each tenant's occupancy-prorated rent for the
// month, rounding each tenant's figure to the cent first.
func (m *PeriodManager) proratedRentTotal(tenants []Tenant, bm BillingMonth) decimal.Decimal {
	daysInMonth := decimal.NewFromInt(int64(bm.Days()))
	total := decimal.Zero
	for _, t := range tenants {
		occupied := PersonDays(t, bm)
		if occupied.IsZero() {
			continue
		}
		dailyRate := t.RentAmount.Div(daysInMonth)
		total = total.Add(m.rounding.Round(dailyRate.Mul(occupied)))
	}
	return total
}

// =============================================================================
// FINALIZE
// =============================================================================

// Finalize locks a billing period. Finalized periods cannot be
// recomputed without the forced, audited path.
func (m *PeriodManager) Finalize(ctx context.Context, id BillingPeriodID, notes string) (*BillingPeriod, error) {
	period, err := m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}

	unlock := m.locks.Lock(periodKey(period.PropertyID, period.Month))
	defer unlock()

	// Re-read under the lock; a concurrent request may have finalized.
	period, err = m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}
	if period.Status == StatusFinalized {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrAlreadyFinalized)
	}

	period.Status = StatusFinalized
	if notes != "" {
		period.Notes = notes
	}
	stored, err := m.store.UpsertBillingPeriod(ctx, *period)
	if err != nil {
		return nil, &PersistenceError{Op: "upsert billing period", Err: err}
	}

	details := map[string]any{
		"total_rent":      stored.TotalRent.StringFixed(2),
		"total_utilities": stored.TotalUtilities.StringFixed(2),
		"notes":           stored.Notes,
	}
	if err := m.appendAudit(ctx, stored.ID, AuditFinalized, details); err != nil {
		return nil, err
	}
	return stored, nil
}

// =============================================================================
// RECALCULATE
// =============================================================================

// Recalculate recomputes an existing billing period. A finalized period
// is refused unless adjustments.Force is set; the forced overwrite is
// audited with the prior totals and the adjustment reason.
func (m *PeriodManager) Recalculate(ctx context.Context, id BillingPeriodID, adjustments Adjustments) (*BillingPeriod, error) {
	if adjustments.Reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "required for recalculation"}
	}

	period, err := m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}

	unlock := m.locks.Lock(periodKey(period.PropertyID, period.Month))
	defer unlock()

	period, err = m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}
	if period.Status == StatusFinalized && !adjustments.Force {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrCannotRecalculateFinalized)
	}

	return m.recomputeLocked(ctx, period.PropertyID, period.Month,
		adjustments.Notes, true, adjustments.Reason, true)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Get returns a billing period by ID.
func (m *PeriodManager) Get(ctx context.Context, id BillingPeriodID) (*BillingPeriod, error) {
	period, err := m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}
	return period, nil
}

// Find returns the billing period for a property-month.
func (m *PeriodManager) Find(ctx context.Context, propertyID PropertyID, bm BillingMonth) (*BillingPeriod, error) {
	period, err := m.store.FindBillingPeriod(ctx, propertyID, bm)
	if err != nil {
		return nil, &PersistenceError{Op: "find billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s %s: %w", propertyID, bm, ErrNotFound)
	}
	return period, nil
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditTrail returns the period's audit entries, newest first.
func (m *PeriodManager) AuditTrail(ctx context.Context, id BillingPeriodID) ([]AuditEntry, error) {
	period, err := m.store.GetBillingPeriod(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get billing period", Err: err}
	}
	if period == nil {
		return nil, fmt.Errorf("billing period %s: %w", id, ErrNotFound)
	}
	entries, err := m.store.AuditTrail(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "load audit trail", Err: err}
	}
	return entries, nil
}

func (m *PeriodManager) appendAudit(ctx context.Context, periodID BillingPeriodID, action AuditAction, details map[string]any) error {
	entry := AuditEntry{
		ID:              uuid.NewString(),
		BillingPeriodID: periodID,
		Action:          action,
		Details:         details,
		CreatedAt:       time.Now().UTC(),
	}
	if err := m.store.AppendAudit(ctx, entry); err != nil {
		return &PersistenceError{Op: "append audit entry", Err: err}
	}
	return nil
}
