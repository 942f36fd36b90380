/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Money and area fields use decimal.Decimal, which marshals as a quoted
  decimal string ("123.45") and unmarshals from both quoted and unquoted
  numbers. Clients never see binary floating point.

DATES:
  Lease dates travel as "2006-01-02"; timestamps as RFC3339.

VALIDATION:
  Domain validation lives in the billing package; handlers only parse.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearth/rental-engine/billing"
)

const dateLayout = "2006-01-02"

// =============================================================================
// PROPERTIES
// =============================================================================

type PropertyDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreatePropertyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func toPropertyDTO(p billing.Property) PropertyDTO {
	return PropertyDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Address:   p.Address,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TENANTS
// =============================================================================

type TenantDTO struct {
	ID             string          `json:"id"`
	PropertyID     string          `json:"property_id"`
	Name           string          `json:"name"`
	RoomArea       decimal.Decimal `json:"room_area"`
	NumberOfPeople int             `json:"number_of_people"`
	MoveInDate     string          `json:"move_in_date"`
	MoveOutDate    *string         `json:"move_out_date,omitempty"`
	Status         string          `json:"occupancy_status"`
	RentAmount     decimal.Decimal `json:"rent_amount"`
}

type TenantRequest struct {
	PropertyID     string          `json:"property_id"`
	Name           string          `json:"name"`
	RoomArea       decimal.Decimal `json:"room_area"`
	NumberOfPeople int             `json:"number_of_people"`
	MoveInDate     string          `json:"move_in_date"`
	MoveOutDate    *string         `json:"move_out_date,omitempty"`
	Status         string          `json:"occupancy_status"`
	RentAmount     decimal.Decimal `json:"rent_amount"`
}

func toTenantDTO(t billing.Tenant) TenantDTO {
	dto := TenantDTO{
		ID:             string(t.ID),
		PropertyID:     string(t.PropertyID),
		Name:           t.Name,
		RoomArea:       t.RoomArea,
		NumberOfPeople: t.NumberOfPeople,
		MoveInDate:     t.MoveInDate.Format(dateLayout),
		Status:         string(t.Status),
		RentAmount:     t.RentAmount,
	}
	if t.MoveOutDate != nil {
		s := t.MoveOutDate.Format(dateLayout)
		dto.MoveOutDate = &s
	}
	return dto
}

// =============================================================================
// UTILITY ENTRIES / ALLOCATIONS
// =============================================================================

type UtilityEntryDTO struct {
	ID          string          `json:"id"`
	PropertyID  string          `json:"property_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	UtilityType string          `json:"utility_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Method      string          `json:"allocation_method"`
}

type UtilityEntryRequest struct {
	PropertyID  string          `json:"property_id"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	UtilityType string          `json:"utility_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Method      string          `json:"allocation_method"`
}

func toUtilityEntryDTO(e billing.UtilityEntry) UtilityEntryDTO {
	return UtilityEntryDTO{
		ID:          string(e.ID),
		PropertyID:  string(e.PropertyID),
		Year:        e.Month.Year,
		Month:       int(e.Month.Month),
		UtilityType: string(e.UtilityType),
		TotalAmount: e.TotalAmount,
		Method:      string(e.Method),
	}
}

type AllocationDTO struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	UtilityEntryID string          `json:"utility_entry_id"`
	Amount         decimal.Decimal `json:"allocated_amount"`
}

func toAllocationDTOs(allocs []billing.Allocation) []AllocationDTO {
	out := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		out[i] = AllocationDTO{
			ID:             a.ID,
			TenantID:       string(a.TenantID),
			UtilityEntryID: string(a.UtilityEntryID),
			Amount:         a.Amount,
		}
	}
	return out
}

type BreakdownLineDTO struct {
	TenantID   string          `json:"tenant_id"`
	TenantName string          `json:"tenant_name,omitempty"`
	Weight     decimal.Decimal `json:"weight"`
	Amount     decimal.Decimal `json:"amount"`
}

type BreakdownDTO struct {
	UtilityEntryID string             `json:"utility_entry_id"`
	Method         string             `json:"allocation_method"`
	Year           int                `json:"year"`
	Month          int                `json:"month"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	TotalWeight    decimal.Decimal    `json:"total_weight"`
	Rate           decimal.Decimal    `json:"rate"`
	Lines          []BreakdownLineDTO `json:"lines"`
}

func toBreakdownDTO(b *billing.AllocationBreakdown) BreakdownDTO {
	dto := BreakdownDTO{
		UtilityEntryID: string(b.UtilityEntryID),
		Method:         string(b.Method),
		Year:           b.Month.Year,
		Month:          int(b.Month.Month),
		TotalAmount:    b.TotalAmount,
		TotalWeight:    b.TotalWeight,
		Rate:           b.Rate,
		Lines:          make([]BreakdownLineDTO, len(b.Lines)),
	}
	for i, l := range b.Lines {
		dto.Lines[i] = BreakdownLineDTO{
			TenantID:   string(l.TenantID),
			TenantName: l.TenantName,
			Weight:     l.Weight,
			Amount:     l.Amount,
		}
	}
	return dto
}

// =============================================================================
// BILLING PERIODS / AUDIT
// =============================================================================

type BillingPeriodDTO struct {
	ID             string          `json:"id"`
	PropertyID     string          `json:"property_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	TotalRent      decimal.Decimal `json:"total_rent_calculated"`
	TotalUtilities decimal.Decimal `json:"total_utilities_calculated"`
	Status         string          `json:"calculation_status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

type CreateBillingPeriodRequest struct {
	PropertyID string `json:"property_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Notes      string `json:"notes,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

type FinalizeRequest struct {
	Notes string `json:"notes,omitempty"`
}

type RecalculateRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

func toBillingPeriodDTO(p billing.BillingPeriod) BillingPeriodDTO {
	return BillingPeriodDTO{
		ID:             string(p.ID),
		PropertyID:     string(p.PropertyID),
		Year:           p.Month.Year,
		Month:          int(p.Month.Month),
		TotalRent:      p.TotalRent,
		TotalUtilities: p.TotalUtilities,
		Status:         string(p.Status),
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

type AuditEntryDTO struct {
	ID              string         `json:"id"`
	BillingPeriodID string         `json:"billing_period_id"`
	Action          string         `json:"action"`
	Details         map[string]any `json:"details"`
	CreatedAt       string         `json:"created_at"`
}

func toAuditEntryDTOs(entries []billing.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryDTO{
			ID:              e.ID,
			BillingPeriodID: string(e.BillingPeriodID),
			Action:          string(e.Action),
			Details:         e.Details,
			CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
