/*
service.go - Allocation orchestration and record management

PURPOSE:
  The Service wires the pure allocation engine to the persistence layer
  and owns the caller-facing operations on properties, tenants, utility
  entries, and allocations. The billing period lifecycle lives in
  manager.go.

REPLACE SEMANTICS:
  CalculateAllocations is replace-by-computation: existing allocations
  for the utility entry are swapped for the freshly computed set in one
  store transaction. Running it twice with unchanged tenant data yields
  an identical tenant-to-amount mapping.

CONCURRENCY:
  A keyed mutex serializes allocation runs per utility entry, preserving
  the single-writer assumption when the HTTP layer handles requests
  concurrently. The store transaction guarantees the replace itself is
  all-or-nothing even across process crashes.

ERROR FLOW:
  Input validation fails before any persistence side effect. Store
  failures are wrapped in PersistenceError with operation context.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service exposes the allocation operations and record management.
type Service struct {
	store      Store
	engine     *Engine
	entryLocks *keyedMutex
}

// NewService creates a Service on top of the given store, with explicit
// rounding configuration for the allocation engine.
func NewService(store Store, rounding Rounding) *Service {
	return &Service{
		store:      store,
		engine:     NewEngine(rounding),
		entryLocks: newKeyedMutex(),
	}
}

// Engine returns the underlying allocation engine (for read-only use).
func (s *Service) Engine() *Engine { return s.engine }

// =============================================================================
// PROPERTIES
// =============================================================================

// CreateProperty validates and persists a property. A missing ID is
// generated.
func (s *Service) CreateProperty(ctx context.Context, p Property) (*Property, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.ID == "" {
		p.ID = PropertyID(uuid.NewString())
	}
	p.CreatedAt = time.Now().UTC()
	if err := s.store.SaveProperty(ctx, p); err != nil {
		return nil, &PersistenceError{Op: "save property", Err: err}
	}
	return &p, nil
}

func (s *Service) GetProperty(ctx context.Context, id PropertyID) (*Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get property", Err: err}
	}
	if p == nil {
		return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Service) ListProperties(ctx context.Context) ([]Property, error) {
	ps, err := s.store.ListProperties(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list properties", Err: err}
	}
	return ps, nil
}

// =============================================================================
// TENANTS
// =============================================================================

// ValidateTenant checks the tenant invariants: positive room area and
// rent, headcount >= 1, move-out strictly after move-in, known status.
func ValidateTenant(t Tenant) error {
	if t.PropertyID == "" {
		return &ValidationError{Field: "property_id", Reason: "must not be empty"}
	}
	if !t.RoomArea.IsPositive() {
		return &ValidationError{Field: "room_area", Reason: "must be positive"}
	}
	if t.NumberOfPeople < 1 {
		return &ValidationError{Field: "number_of_people", Reason: "must be at least 1"}
	}
	if !t.RentAmount.IsPositive() {
		return &ValidationError{Field: "rent_amount", Reason: "must be positive"}
	}
	if t.MoveInDate.IsZero() {
		return &ValidationError{Field: "move_in_date", Reason: "required"}
	}
	if t.MoveOutDate != nil && !t.MoveOutDate.After(t.MoveInDate) {
		return &ValidationError{Field: "move_out_date", Reason: "must be strictly after move_in_date"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "occupancy_status", Reason: "unknown status " + string(t.Status)}
	}
	return nil
}

// CreateTenant validates and persists a tenant. The owning property must
// exist.
func (s *Service) CreateTenant(ctx context.Context, t Tenant) (*Tenant, error) {
	if err := ValidateTenant(t); err != nil {
		return nil, err
	}
	if _, err := s.GetProperty(ctx, t.PropertyID); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = TenantID(uuid.NewString())
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.store.SaveTenant(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "save tenant", Err: err}
	}
	return &t, nil
}

// UpdateTenant applies a lease edit. Existing allocations are NOT
// recomputed automatically; callers re-run allocation per entry when a
// lease change affects past months.
func (s *Service) UpdateTenant(ctx context.Context, t Tenant) (*Tenant, error) {
	if err := ValidateTenant(t); err != nil {
		return nil, err
	}
	existing, err := s.store.GetTenant(ctx, t.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "get tenant", Err: err}
	}
	if existing == nil {
		return nil, fmt.Errorf("tenant %s: %w", t.ID, ErrNotFound)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveTenant(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "save tenant", Err: err}
	}
	return &t, nil
}

func (s *Service) GetTenant(ctx context.Context, id TenantID) (*Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get tenant", Err: err}
	}
	if t == nil {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *Service) ListTenants(ctx context.Context, propertyID PropertyID) ([]Tenant, error) {
	ts, err := s.store.ListTenantsByProperty(ctx, propertyID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tenants", Err: err}
	}
	return ts, nil
}

// =============================================================================
// UTILITY ENTRIES
// =============================================================================

// ValidateUtilityEntry checks the entry invariants.
func ValidateUtilityEntry(e UtilityEntry) error {
	if e.PropertyID == "" {
		return &ValidationError{Field: "property_id", Reason: "must not be empty"}
	}
	if !e.Month.Valid() {
		return &ValidationError{Field: "month", Reason: "month must be 1-12"}
	}
	if e.UtilityType == "" {
		return &ValidationError{Field: "utility_type", Reason: "must not be empty"}
	}
	if !e.TotalAmount.IsPositive() {
		return &ValidationError{Field: "total_amount", Reason: "must be positive"}
	}
	if !e.Method.Valid() {
		return &ValidationError{Field: "allocation_method", Reason: "unknown method " + string(e.Method)}
	}
	return nil
}

// CreateUtilityEntry validates and persists a utility bill. Allocation is
// a separate, explicit step.
func (s *Service) CreateUtilityEntry(ctx context.Context, e UtilityEntry) (*UtilityEntry, error) {
	if err := ValidateUtilityEntry(e); err != nil {
		return nil, err
	}
	if _, err := s.GetProperty(ctx, e.PropertyID); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = UtilityEntryID(uuid.NewString())
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := s.store.SaveUtilityEntry(ctx, e); err != nil {
		return nil, &PersistenceError{Op: "save utility entry", Err: err}
	}
	return &e, nil
}

// UpdateUtilityEntry rewrites a bill and recomputes its allocations.
// An entry with existing allocations is immutable except through this
// path: the old allocation set is deleted and replaced with the set
// computed from the updated amounts, atomically at the store level.
func (s *Service) UpdateUtilityEntry(ctx context.Context, e UtilityEntry) (*UtilityEntry, error) {
	if err := ValidateUtilityEntry(e); err != nil {
		return nil, err
	}

	unlock := s.entryLocks.Lock(string(e.ID))
	defer unlock()

	existing, err := s.store.GetUtilityEntry(ctx, e.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "get utility entry", Err: err}
	}
	if existing == nil {
		return nil, fmt.Errorf("utility entry %s: %w", e.ID, ErrNotFound)
	}

	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveUtilityEntry(ctx, e); err != nil {
		return nil, &PersistenceError{Op: "save utility entry", Err: err}
	}

	// Recompute only when an allocation set already exists; a bill that
	// was never allocated stays unallocated.
	current, err := s.store.Allocations(ctx, e.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "load allocations", Err: err}
	}
	if len(current) > 0 {
		if _, err := s.calculateLocked(ctx, &e); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (s *Service) GetUtilityEntry(ctx context.Context, id UtilityEntryID) (*UtilityEntry, error) {
	e, err := s.store.GetUtilityEntry(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get utility entry", Err: err}
	}
	if e == nil {
		return nil, fmt.Errorf("utility entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Service) ListUtilityEntries(ctx context.Context, propertyID PropertyID, bm BillingMonth) ([]UtilityEntry, error) {
	es, err := s.store.ListUtilityEntries(ctx, propertyID, bm)
	if err != nil {
		return nil, &PersistenceError{Op: "list utility entries", Err: err}
	}
	return es, nil
}

// =============================================================================
// ALLOCATION OPERATIONS
// =============================================================================

// CalculateAllocations computes and persists the allocation set for a
// utility entry, replacing any existing set atomically.
//
// Returns an EMPTY slice (no error) when no tenant qualifies or the
// total weight is zero; the bill stays observable as unallocated.
func (s *Service) CalculateAllocations(ctx context.Context, entryID UtilityEntryID) ([]Allocation, error) {
	unlock := s.entryLocks.Lock(string(entryID))
	defer unlock()

	entry, err := s.GetUtilityEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return s.calculateLocked(ctx, entry)
}

// calculateLocked runs the allocation for an entry. Callers hold the
// entry lock.
func (s *Service) calculateLocked(ctx context.Context, entry *UtilityEntry) ([]Allocation, error) {
	tenants, err := s.store.ListTenantsByProperty(ctx, entry.PropertyID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tenants", Err: err}
	}

	allocations, err := s.engine.Allocate(*entry, tenants)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range allocations {
		allocations[i].ID = uuid.NewString()
		allocations[i].CreatedAt = now
	}

	if err := s.store.ReplaceAllocations(ctx, entry.ID, allocations); err != nil {
		return nil, &PersistenceError{Op: "replace allocations", Err: err}
	}
	return allocations, nil
}

// CalculateWeightedAllocations computes the allocation breakdown
// (per-tenant weight, effective rate, rounded amount) without persisting
// anything. Zero-weight handling matches CalculateAllocations: an empty
// breakdown, never an error.
func (s *Service) CalculateWeightedAllocations(ctx context.Context, entryID UtilityEntryID) (*AllocationBreakdown, error) {
	entry, err := s.GetUtilityEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	tenants, err := s.store.ListTenantsByProperty(ctx, entry.PropertyID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tenants", Err: err}
	}
	return s.engine.AllocateBreakdown(*entry, tenants)
}

// Allocations returns the persisted allocation set for a utility entry.
func (s *Service) Allocations(ctx context.Context, entryID UtilityEntryID) ([]Allocation, error) {
	if _, err := s.GetUtilityEntry(ctx, entryID); err != nil {
		return nil, err
	}
	allocs, err := s.store.Allocations(ctx, entryID)
	if err != nil {
		return nil, &PersistenceError{Op: "load allocations", Err: err}
	}
	return allocs, nil
}
