/*
audit.go - Append-only billing period audit trail

PURPOSE:
  Every billing-period mutation leaves an immutable audit entry, so a
  financial figure can always be reconstructed forensically: what it was,
  what it became, who forced the change and why.

INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries are never modified
  3. ORDERED: Query returns entries newest-first

DETAILS PAYLOAD:
  Details is a generic key/value payload, opaque to the engine. Each
  action has a documented minimum-fields contract:

    created, calculated:
      total_rent, total_utilities, tenant_count, utility_count
    recalculated:
      prior_total_rent, prior_total_utilities,
      new_total_rent, new_total_utilities, reason
    finalized:
      total_rent, total_utilities, notes

SEE ALSO:
  - manager.go: The only writer of audit entries
  - store.go: Store embeds AuditLog
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT ACTIONS
// =============================================================================

// AuditAction identifies what happened to a billing period.
type AuditAction string

const (
	// AuditCreated: a billing period was computed for the first time.
	AuditCreated AuditAction = "created"
	// AuditCalculated: an existing, non-finalized period was recomputed
	// through the ordinary (non-forced) path.
	AuditCalculated AuditAction = "calculated"
	// AuditFinalized: the period was locked.
	AuditFinalized AuditAction = "finalized"
	// AuditRecalculated: an existing period was overwritten through the
	// explicit recalculation path (including the forced override of a
	// finalized period).
	AuditRecalculated AuditAction = "recalculated"
)

// =============================================================================
// AUDIT ENTRY
// =============================================================================

// AuditEntry is one immutable record of a billing-period action.
type AuditEntry struct {
	ID              string
	BillingPeriodID BillingPeriodID
	Action          AuditAction
	Details         map[string]any
	CreatedAt       time.Time
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	// AppendAudit adds an entry. This is the ONLY write operation.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// AuditTrail returns all entries for a billing period, newest first.
	AuditTrail(ctx context.Context, periodID BillingPeriodID) ([]AuditEntry, error)
}
