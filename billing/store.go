/*
store.go - Persistence interfaces for the billing engine

PURPOSE:
  Defines the boundary between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY CONTRACTS:
  REPLACE-SET: ReplaceAllocations deletes any existing allocations for a
  utility entry and inserts the new set in ONE atomic transaction. A crash
  between delete and insert must not leave an entry with zero or partial
  allocations. This is a correctness requirement, not a style preference.

  UPSERT: UpsertBillingPeriod keys on (property, month, year). One logical
  billing period row exists per property-month; recalculation updates it
  in place, preserving the original ID and CreatedAt.

  MISSING ROWS: Get* methods return (nil, nil) for missing records. The
  service layer translates that into ErrNotFound; stores never invent
  domain errors.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - billing/store: In-memory for tests and dev
*/
package billing

import "context"

// =============================================================================
// PROPERTY / TENANT STORES
// =============================================================================

// PropertyStore persists property records.
type PropertyStore interface {
	SaveProperty(ctx context.Context, p Property) error
	GetProperty(ctx context.Context, id PropertyID) (*Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
}

// TenantStore persists tenant records.
type TenantStore interface {
	SaveTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id TenantID) (*Tenant, error)

	// ListTenantsByProperty returns all tenants of a property, in any
	// occupancy status, ordered by ID.
	ListTenantsByProperty(ctx context.Context, propertyID PropertyID) ([]Tenant, error)
}

// =============================================================================
// UTILITY STORE - Entries and their allocation sets
// =============================================================================

// UtilityStore persists utility entries and allocation batches.
type UtilityStore interface {
	SaveUtilityEntry(ctx context.Context, e UtilityEntry) error
	GetUtilityEntry(ctx context.Context, id UtilityEntryID) (*UtilityEntry, error)

	// ListUtilityEntries returns all entries for a property and month.
	ListUtilityEntries(ctx context.Context, propertyID PropertyID, bm BillingMonth) ([]UtilityEntry, error)

	// ReplaceAllocations atomically swaps the allocation set of a utility
	// entry: delete existing rows, insert the new batch, all-or-nothing.
	// An empty batch clears the entry's allocations.
	ReplaceAllocations(ctx context.Context, entryID UtilityEntryID, allocations []Allocation) error

	// Allocations returns the current allocation set for an entry,
	// ordered by tenant ID.
	Allocations(ctx context.Context, entryID UtilityEntryID) ([]Allocation, error)
}

// =============================================================================
// PERIOD STORE - Billing period upsert
// =============================================================================

// PeriodStore persists billing periods.
type PeriodStore interface {
	// UpsertBillingPeriod inserts or updates the one row keyed by
	// (property, month, year) and returns the stored record. On update the
	// original ID and CreatedAt are preserved.
	UpsertBillingPeriod(ctx context.Context, p BillingPeriod) (*BillingPeriod, error)

	GetBillingPeriod(ctx context.Context, id BillingPeriodID) (*BillingPeriod, error)

	// FindBillingPeriod looks up the period for a property-month.
	FindBillingPeriod(ctx context.Context, propertyID PropertyID, bm BillingMonth) (*BillingPeriod, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface the engine requires.
type Store interface {
	PropertyStore
	TenantStore
	UtilityStore
	PeriodStore
	AuditLog
}
