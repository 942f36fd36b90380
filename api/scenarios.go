/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Seeds the database with realistic data so the billing flows can be
  explored without manual setup.

AVAILABLE SCENARIOS:
  shared-house:    Three tenants, full-month occupancy, bills under
                   per_person and per_sqm methods
  mid-month-move:  One tenant moves in mid-month; weighted methods show
                   partial-month proration

NOTE:
  Scenarios only ADD records; they do not reset existing data. Only use
  in development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearth/rental-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "shared-house",
		Name:        "Shared House",
		Description: "Three tenants all month; electricity split per person, heating per square meter",
	},
	{
		ID:          "mid-month-move",
		Name:        "Mid-Month Move-In",
		Description: "A tenant moves in on the 16th; weighted methods prorate by person-days",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds one scenario's data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "shared-house":
		err = h.loadSharedHouse(r.Context())
	case "mid-month-move":
		err = h.loadMidMonthMove(r.Context())
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadSharedHouse(ctx context.Context) error {
	property, err := h.Service.CreateProperty(ctx, billing.Property{
		Name:    "Vila Mura",
		Address: "Trubarjeva 12, Ljubljana",
	})
	if err != nil {
		return err
	}

	tenants := []billing.Tenant{
		{Name: "Ana", RoomArea: dec("20"), NumberOfPeople: 1, RentAmount: dec("350")},
		{Name: "Bojan", RoomArea: dec("30"), NumberOfPeople: 1, RentAmount: dec("420")},
		{Name: "Cvetka", RoomArea: dec("50"), NumberOfPeople: 2, RentAmount: dec("560")},
	}
	for _, t := range tenants {
		t.PropertyID = property.ID
		t.Status = billing.OccupancyActive
		t.MoveInDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
		if _, err := h.Service.CreateTenant(ctx, t); err != nil {
			return err
		}
	}

	bills := []billing.UtilityEntry{
		{UtilityType: billing.UtilityElectricity, TotalAmount: dec("100"), Method: billing.MethodPerPerson},
		{UtilityType: billing.UtilityHeating, TotalAmount: dec("300"), Method: billing.MethodPerSqm},
	}
	for _, b := range bills {
		b.PropertyID = property.ID
		b.Month = billing.NewBillingMonth(2025, 6)
		entry, err := h.Service.CreateUtilityEntry(ctx, b)
		if err != nil {
			return err
		}
		if _, err := h.Service.CalculateAllocations(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMidMonthMove(ctx context.Context) error {
	property, err := h.Service.CreateProperty(ctx, billing.Property{
		Name:    "Blok Savsko",
		Address: "Savska cesta 3, Maribor",
	})
	if err != nil {
		return err
	}

	full := billing.Tenant{
		PropertyID: property.ID, Name: "Darja",
		RoomArea: dec("25"), NumberOfPeople: 1, RentAmount: dec("400"),
		Status:     billing.OccupancyActive,
		MoveInDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if _, err := h.Service.CreateTenant(ctx, full); err != nil {
		return err
	}

	// Moves in on the 16th of a 30-day month: 15 person-days.
	mover := billing.Tenant{
		PropertyID: property.ID, Name: "Erik",
		RoomArea: dec("25"), NumberOfPeople: 1, RentAmount: dec("400"),
		Status:     billing.OccupancyActive,
		MoveInDate: time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
	}
	if _, err := h.Service.CreateTenant(ctx, mover); err != nil {
		return err
	}

	entry, err := h.Service.CreateUtilityEntry(ctx, billing.UtilityEntry{
		PropertyID:  property.ID,
		Month:       billing.NewBillingMonth(2025, 6),
		UtilityType: billing.UtilityWater,
		TotalAmount: dec("100"),
		Method:      billing.MethodPerPersonWeighted,
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.CalculateAllocations(ctx, entry.ID); err != nil {
		return err
	}

	_, err = h.Periods.CreateOrUpdate(ctx, property.ID, 6, 2025, billing.PeriodOptions{
		Notes: "demo period",
	})
	return err
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
