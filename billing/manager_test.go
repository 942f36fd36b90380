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

func newTestManager(t *testing.T) (*billing.PeriodManager, *billing.Service) {
	mem := store.NewMemory()
	return billing.NewPeriodManager(mem, billing.CurrencyRounding()),
		billing.NewService(mem, billing.CurrencyRounding())
}

func actions(entries []billing.AuditEntry) []billing.AuditAction {
	out := make([]billing.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

// =============================================================================
// RENT PRORATION
// =============================================================================

func TestCreateOrUpdate_ProratesRentByOccupancy(t *testing.T) {
	// GIVEN: Ana pays 300 and is present all of June, Erik pays 400 and
	//        moves in June 16 (15 of 30 days)
	// WHEN: computing the June billing period
	// THEN: total rent = 300.00 + 400 x 15/30 = 500.00

	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	_, err := svc.CreateTenant(context.Background(), billing.Tenant{
		PropertyID:     prop.ID,
		Name:           "Erik",
		RoomArea:       mustDec("25"),
		NumberOfPeople: 1,
		MoveInDate:     date(2025, time.June, 16),
		Status:         billing.OccupancyActive,
		RentAmount:     mustDec("400"),
	})
	require.NoError(t, err)

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)

	assert.True(t, period.TotalRent.Equal(mustDec("500.00")), "total rent = %s", period.TotalRent)
	assert.Equal(t, billing.StatusCalculated, period.Status)
}

func TestCreateOrUpdate_SumsUtilityTotals(t *testing.T) {
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")
	createEntry(t, svc, prop.ID, billing.MethodPerSqm, "300.00")

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)

	assert.True(t, period.TotalUtilities.Equal(mustDec("400.00")), "total utilities = %s", period.TotalUtilities)
}

func TestCreateOrUpdate_UnknownProperty(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateOrUpdate(context.Background(), "no-such-property", 6, 2025, billing.PeriodOptions{})
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestCreateOrUpdate_InvalidMonth(t *testing.T) {
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")

	for _, month := range []int{0, 13, -1} {
		_, err := mgr.CreateOrUpdate(context.Background(), prop.ID, month, 2025, billing.PeriodOptions{})
		require.ErrorIs(t, err, billing.ErrInvalidInput, "month %d", month)
	}
}

func TestCreateOrUpdate_UpsertKeepsIdentity(t *testing.T) {
	// One row per (property, month, year): recomputation updates in
	// place, it never creates a second period.
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	first, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)
	second, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	found, err := mgr.Find(context.Background(), prop.ID, billing.NewBillingMonth(2025, 6))
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestFinalize_LocksThePeriod(t *testing.T) {
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)

	finalized, err := mgr.Finalize(context.Background(), period.ID, "june closed")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusFinalized, finalized.Status)
	assert.Equal(t, "june closed", finalized.Notes)

	// A second finalize is a state-machine violation.
	_, err = mgr.Finalize(context.Background(), period.ID, "")
	require.ErrorIs(t, err, billing.ErrAlreadyFinalized)

	// Ordinary recomputation is refused once finalized.
	_, err = mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.ErrorIs(t, err, billing.ErrAlreadyFinalized)
}

func TestFinalize_UnknownPeriod(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Finalize(context.Background(), "no-such-period", "")
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestRecalculate_RequiresReason(t *testing.T) {
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)

	_, err = mgr.Recalculate(context.Background(), period.ID, billing.Adjustments{})
	require.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestRecalculate_FinalizedNeedsForce(t *testing.T) {
	// GIVEN: a finalized June period
	// WHEN: recalculating without Force, then with Force
	// THEN: refused first, then recomputed with the new figures

	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)
	_, err = mgr.Finalize(context.Background(), period.ID, "")
	require.NoError(t, err)

	_, err = mgr.Recalculate(context.Background(), period.ID, billing.Adjustments{Reason: "late invoice"})
	require.ErrorIs(t, err, billing.ErrCannotRecalculateFinalized)

	// A late utility bill arrives after finalization.
	createEntry(t, svc, prop.ID, billing.MethodPerPerson, "80.00")

	recalculated, err := mgr.Recalculate(context.Background(), period.ID, billing.Adjustments{
		Reason: "late invoice",
		Force:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, period.ID, recalculated.ID)
	assert.True(t, recalculated.TotalUtilities.Equal(mustDec("80.00")))
	assert.Equal(t, billing.StatusCalculated, recalculated.Status)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAuditTrail_RecordsLifecycleNewestFirst(t *testing.T) {
	// GIVEN: a period that is created, recomputed, finalized, and
	//        force-recalculated
	// THEN: the trail reads recalculated, finalized, calculated, created

	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)
	_, err = mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)
	_, err = mgr.Finalize(context.Background(), period.ID, "")
	require.NoError(t, err)
	_, err = mgr.Recalculate(context.Background(), period.ID, billing.Adjustments{Reason: "correction", Force: true})
	require.NoError(t, err)

	trail, err := mgr.AuditTrail(context.Background(), period.ID)
	require.NoError(t, err)
	require.Len(t, trail, 4)

	assert.Equal(t, []billing.AuditAction{
		billing.AuditRecalculated,
		billing.AuditFinalized,
		billing.AuditCalculated,
		billing.AuditCreated,
	}, actions(trail))
}

func TestAuditTrail_ForcedRecalculationRecordsPriorTotals(t *testing.T) {
	mgr, svc := newTestManager(t)
	prop := createProperty(t, svc, "Vila Mura")
	createTenant(t, svc, prop.ID, "Ana", "20", date(2025, time.January, 1))
	createEntry(t, svc, prop.ID, billing.MethodPerPerson, "100.00")

	period, err := mgr.CreateOrUpdate(context.Background(), prop.ID, 6, 2025, billing.PeriodOptions{})
	require.NoError(t, err)
	_, err = mgr.Finalize(context.Background(), period.ID, "")
	require.NoError(t, err)

	createEntry(t, svc, prop.ID, billing.MethodPerPerson, "50.00")
	_, err = mgr.Recalculate(context.Background(), period.ID, billing.Adjustments{Reason: "missed bill", Force: true})
	require.NoError(t, err)

	trail, err := mgr.AuditTrail(context.Background(), period.ID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)

	latest := trail[0]
	require.Equal(t, billing.AuditRecalculated, latest.Action)
	assert.Equal(t, "100.00", latest.Details["prior_total_utilities"])
	assert.Equal(t, "150.00", latest.Details["new_total_utilities"])
	assert.Equal(t, "missed bill", latest.Details["reason"])
}

func TestAuditTrail_UnknownPeriod(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.AuditTrail(context.Background(), "no-such-period")
	require.ErrorIs(t, err, billing.ErrNotFound)
}
