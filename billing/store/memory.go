// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hearth/rental-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	properties  map[billing.PropertyID]billing.Property
	tenants     map[billing.TenantID]billing.Tenant
	entries     map[billing.UtilityEntryID]billing.UtilityEntry
	allocations map[billing.UtilityEntryID][]billing.Allocation
	periods     map[billing.BillingPeriodID]billing.BillingPeriod
	audit       []billing.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		properties:  make(map[billing.PropertyID]billing.Property),
		tenants:     make(map[billing.TenantID]billing.Tenant),
		entries:     make(map[billing.UtilityEntryID]billing.UtilityEntry),
		allocations: make(map[billing.UtilityEntryID][]billing.Allocation),
		periods:     make(map[billing.BillingPeriodID]billing.BillingPeriod),
	}
}

// =============================================================================
// PROPERTIES
// =============================================================================

func (m *Memory) SaveProperty(_ context.Context, p billing.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = p
	return nil
}

func (m *Memory) GetProperty(_ context.Context, id billing.PropertyID) (*billing.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.properties[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) ListProperties(_ context.Context) ([]billing.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Property, 0, len(m.properties))
	for _, p := range m.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// TENANTS
// =============================================================================

func (m *Memory) SaveTenant(_ context.Context, t billing.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) GetTenant(_ context.Context, id billing.TenantID) (*billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tenants[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *Memory) ListTenantsByProperty(_ context.Context, propertyID billing.PropertyID) ([]billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Tenant
	for _, t := range m.tenants {
		if t.PropertyID == propertyID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// UTILITY ENTRIES / ALLOCATIONS
// =============================================================================

func (m *Memory) SaveUtilityEntry(_ context.Context, e billing.UtilityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetUtilityEntry(_ context.Context, id billing.UtilityEntryID) (*billing.UtilityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) ListUtilityEntries(_ context.Context, propertyID billing.PropertyID, bm billing.BillingMonth) ([]billing.UtilityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.UtilityEntry
	for _, e := range m.entries {
		if e.PropertyID == propertyID && e.Month == bm {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReplaceAllocations swaps the allocation set under one lock: the map
// write is the commit point, so readers never observe a partial set.
func (m *Memory) ReplaceAllocations(_ context.Context, entryID billing.UtilityEntryID, allocations []billing.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(allocations) == 0 {
		delete(m.allocations, entryID)
		return nil
	}
	cp := make([]billing.Allocation, len(allocations))
	copy(cp, allocations)
	sort.Slice(cp, func(i, j int) bool { return cp[i].TenantID < cp[j].TenantID })
	m.allocations[entryID] = cp
	return nil
}

func (m *Memory) Allocations(_ context.Context, entryID billing.UtilityEntryID) ([]billing.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	allocs := m.allocations[entryID]
	out := make([]billing.Allocation, len(allocs))
	copy(out, allocs)
	return out, nil
}

// =============================================================================
// BILLING PERIODS
// =============================================================================

func (m *Memory) UpsertBillingPeriod(_ context.Context, p billing.BillingPeriod) (*billing.BillingPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range m.periods {
		if existing.PropertyID == p.PropertyID && existing.Month == p.Month {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			p.UpdatedAt = now
			m.periods[p.ID] = p
			return &p, nil
		}
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	m.periods[p.ID] = p
	return &p, nil
}

func (m *Memory) GetBillingPeriod(_ context.Context, id billing.BillingPeriodID) (*billing.BillingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.periods[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) FindBillingPeriod(_ context.Context, propertyID billing.PropertyID, bm billing.BillingMonth) (*billing.BillingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.periods {
		if p.PropertyID == propertyID && p.Month == bm {
			return &p, nil
		}
	}
	return nil, nil
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry billing.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditTrail returns entries newest-first; ties break on insertion order.
func (m *Memory) AuditTrail(_ context.Context, periodID billing.BillingPeriodID) ([]billing.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		if m.audit[i].BillingPeriodID == periodID {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}
