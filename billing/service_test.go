package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth/rental-engine/billing"
	"github.com/hearth/rental-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*billing.Service, *store.Memory) {
	mem := store.NewMemory()
	return billing.NewService(mem, billing.CurrencyRounding()), mem
}

func createProperty(t *testing.T, svc *billing.Service, name string) *billing.Property {
	t.Helper()
	p, err := svc.CreateProperty(context.Background(), billing.Property{Name: name, Address: "Trubarjeva 1"})
	require.NoError(t, err)
	return p
}

func createTenant(t *testing.T, svc *billing.Service, propertyID billing.PropertyID, name string, area string, moveIn time.Time) *billing.Tenant {
	t.Helper()
	tenant, err := svc.CreateTenant(context.Background(), billing.Tenant{
		PropertyID:     propertyID,
		Name:           name,
		RoomArea:       mustDec(area),
		NumberOfPeople: 1,
		MoveInDate:     moveIn,
		Status:         billing.OccupancyActive,
		RentAmount:     mustDec("300"),
	})
	require.NoError(t, err)
	return tenant
}

func createEntry(t *testing.T, svc *billing.Service, propertyID billing.PropertyID, method billing.AllocationMethod, total string) *billing.UtilityEntry {
	t.Helper()
	entry, err := svc.CreateUtilityEntry(context.Background(), billing.UtilityEntry{
		PropertyID:  propertyID,
		Month:       billing.NewBillingMonth(2025, 6),
		UtilityType: billing.UtilityElectricity,
		TotalAmount: mustDec(total),
		Method:      method,
	})
	require.NoError(t, err)
	return entry
}

// =============================================================================
// RECORD MANAGEMENT
// =============================================================================

func TestCreateTenant_RequiresExistingProperty(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTenant(context.Background(), billing.Tenant{
		PropertyID:     "no-such-property",
		Name:           "Ana",
		RoomArea:       mustDec("20"),
		NumberOfPeople: 1,
		MoveInDate:     date(2025, time.January, 1),
		Status:         billing.OccupancyActive,
		RentAmount:     mustDec("300"),
	})
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestCreateTenant_RejectsInvalidLease(t *testing.T) {
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")

	base := billing.Tenant{
		PropertyID:     prop.ID,
		Name:           "Ana",
		RoomArea:       mustDec("20"),
		NumberOfPeople: 1,
		MoveInDate:     date(2025, time.January, 15),
		Status:         billing.OccupancyActive,
		RentAmount:     mustDec("300"),
	}

	// Move-out equal to move-in violates the strictly-after invariant.
	sameDay := base
	sameDay.MoveOutDate = datePtr(2025, time.January, 15)
	_, err := svc.CreateTenant(context.Background(), sameDay)
	require.ErrorIs(t, err, billing.ErrInvalidInput)

	zeroArea := base
	zeroArea.RoomArea = mustDec("0")
	_, err = svc.CreateTenant(context.Background(), zeroArea)
	require.ErrorIs(t, err, billing.ErrInvalidInput)

	noRent := base
	noRent.RentAmount = mustDec("-1")
	_, err = svc.CreateTenant(context.Background(), noRent)
	require.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestUpdateTenant_PreservesCreatedAt(t *testing.T) {
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	tenant := createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	updated := *tenant
	updated.RentAmount = mustDec("350")
	got, err := svc.UpdateTenant(context.Background(), updated)
	require.NoError(t, err)

	assert.True(t, got.RentAmount.Equal(mustDec("350")))
	assert.Equal(t, tenant.CreatedAt, got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(tenant.UpdatedAt))
}

// =============================================================================
// ALLOCATION PERSISTENCE
// =============================================================================

func TestCalculateAllocations_PersistsAndExposesSet(t *testing.T) {
	// GIVEN: three tenants and a 100.00 per_person bill
	// WHEN: calculating allocations
	// THEN: the persisted set matches the computed split exactly

	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	createTenant(t, svc, prop.ID, "Bojan", "30", date(2025, time.January, 1))
	createTenant(t, svc, prop.ID, "Cvetka", "50", date(2025, time.January, 1))
	entry := createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")

	computed, err := svc.CalculateAllocations(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, computed, 3)

	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 3)

	total := mustDec("0")
	for _, a := range persisted {
		assert.Equal(t, entry.ID, a.UtilityEntryID)
		assert.NotEmpty(t, a.ID)
		total = total.Add(a.Amount)
	}
	assert.True(t, total.Equal(mustDec("100.00")), "persisted sum = %s", total)
}

func TestCalculateAllocations_UnknownEntry(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CalculateAllocations(context.Background(), "no-such-entry")
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestCalculateAllocations_RerunReplacesSet(t *testing.T) {
	// Rerunning with unchanged data yields the same tenant-to-amount
	// mapping and never accumulates rows.
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	createTenant(t, svc, prop.ID, "Bojan", "30", date(2025, time.January, 1))
	entry := createEntry(t, svc, prop.ID, billing.MethodPerSqm, "100.00")

	first, err := svc.CalculateAllocations(context.Background(), entry.ID)
	require.NoError(t, err)
	second, err := svc.CalculateAllocations(context.Background(), entry.ID)
	require.NoError(t, err)

	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	firstAmounts := amountByTenant(first)
	secondAmounts := amountByTenant(second)
	assert.Equal(t, firstAmounts, secondAmounts)
}

func TestCalculateAllocations_NoTenants_EmptySetPersisted(t *testing.T) {
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	entry := createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")

	computed, err := svc.CalculateAllocations(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Empty(t, computed)

	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestUpdateUtilityEntry_RecomputesExistingAllocations(t *testing.T) {
	// GIVEN: an entry with a persisted allocation set
	// WHEN: the total amount is updated
	// THEN: the set is replaced with amounts from the new total

	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	createTenant(t, svc, prop.ID, "Bojan", "30", date(2025, time.January, 1))
	entry := createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")

	_, err := svc.CalculateAllocations(context.Background(), entry.ID)
	require.NoError(t, err)

	updated := *entry
	updated.TotalAmount = mustDec("200.00")
	_, err = svc.UpdateUtilityEntry(context.Background(), updated)
	require.NoError(t, err)

	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	total := mustDec("0")
	for _, a := range persisted {
		total = total.Add(a.Amount)
	}
	assert.True(t, total.Equal(mustDec("200.00")), "sum after update = %s", total)
}

func TestUpdateUtilityEntry_UnallocatedStaysUnallocated(t *testing.T) {
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	entry := createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")

	updated := *entry
	updated.TotalAmount = mustDec("150.00")
	_, err := svc.UpdateUtilityEntry(context.Background(), updated)
	require.NoError(t, err)

	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

// =============================================================================
// WEIGHTED BREAKDOWN
// =============================================================================

func TestCalculateWeightedAllocations_DoesNotPersist(t *testing.T) {
	svc, _ := newTestService(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Darja", "25", date(2025, time.January, 1))
	createTenant(t, svc, prop.ID, "Erik", "25", date(2025, time.June, 16))

	entry, err := svc.CreateUtilityEntry(context.Background(), billing.UtilityEntry{
		PropertyID:  prop.ID,
		Month:       billing.NewBillingMonth(2025, 6),
		UtilityType: billing.UtilityWater,
		TotalAmount: mustDec("100.00"),
		Method:      billing.MethodPerPersonWeighted,
	})
	require.NoError(t, err)

	breakdown, err := svc.CalculateWeightedAllocations(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, breakdown.Lines, 2)
	assert.True(t, breakdown.TotalWeight.Equal(mustDec("45")), "total weight = %s", breakdown.TotalWeight)

	// 30 vs 15 person-days on 100.00.
	amounts := map[string]string{}
	for _, line := range breakdown.Lines {
		amounts[line.TenantName] = line.Amount.StringFixed(2)
	}
	assert.Equal(t, "66.67", amounts["Darja"])
	assert.Equal(t, "33.33", amounts["Erik"])

	// Read-only: nothing was persisted.
	persisted, err := svc.Allocations(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}
