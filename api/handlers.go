/*
handlers.go - HTTP API handlers for the rental billing engine

PURPOSE:
  Exposes the billing engine via REST. Handles HTTP request/response and
  JSON serialization, and delegates everything else to the billing
  package.

ENDPOINTS:
  Properties:
    GET    /api/properties                     List properties
    POST   /api/properties                     Create property
    GET    /api/properties/{id}                Get property
    GET    /api/properties/{id}/tenants        List tenants
    GET    /api/properties/{id}/utilities      List bills (?year=&month=)
    GET    /api/properties/{id}/billing-period Find period (?year=&month=)

  Tenants:
    POST   /api/tenants                        Create tenant
    GET    /api/tenants/{id}                   Get tenant
    PUT    /api/tenants/{id}                   Update lease

  Utility entries:
    POST   /api/utilities                      Create bill
    GET    /api/utilities/{id}                 Get bill
    PUT    /api/utilities/{id}                 Update bill (recomputes allocations)
    POST   /api/utilities/{id}/allocations     Calculate + persist allocations
    GET    /api/utilities/{id}/allocations     Persisted allocation set
    GET    /api/utilities/{id}/breakdown       Weighted breakdown (no side effect)

  Billing periods:
    POST   /api/billing-periods                Create/update period
    GET    /api/billing-periods/{id}           Get period
    POST   /api/billing-periods/{id}/finalize  Lock period
    POST   /api/billing-periods/{id}/recalculate  Audited recompute
    GET    /api/billing-periods/{id}/audit     Audit trail, newest first

ERROR HANDLING:
  Billing-core errors pass through verbatim, mapped by classification:
  - 400: validation errors (billing.IsClientError)
  - 404: missing records (billing.IsNotFound)
  - 409: state-machine conflicts (billing.IsConflict)
  - 500: persistence and unknown failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearth/rental-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *billing.Service
	Periods *billing.PeriodManager
}

// NewHandler creates a handler on top of a billing store.
func NewHandler(store billing.Store) *Handler {
	rounding := billing.CurrencyRounding()
	return &Handler{
		Service: billing.NewService(store, rounding),
		Periods: billing.NewPeriodManager(store, rounding),
	}
}

// =============================================================================
// PROPERTY HANDLERS
// =============================================================================

func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := h.Service.ListProperties(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PropertyDTO, len(properties))
	for i, p := range properties {
		dtos[i] = toPropertyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	p, err := h.Service.CreateProperty(r.Context(), billing.Property{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPropertyDTO(*p))
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetProperty(r.Context(), billing.PropertyID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyDTO(*p))
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Service.ListTenants(r.Context(), billing.PropertyID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TenantDTO, len(tenants))
	for i, t := range tenants {
		dtos[i] = toTenantDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.decodeTenant(w, r, "")
	if !ok {
		return
	}
	created, err := h.Service.CreateTenant(r.Context(), *tenant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenantDTO(*created))
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.GetTenant(r.Context(), billing.TenantID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(*t))
}

func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.decodeTenant(w, r, billing.TenantID(chi.URLParam(r, "id")))
	if !ok {
		return
	}
	updated, err := h.Service.UpdateTenant(r.Context(), *tenant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(*updated))
}

func (h *Handler) decodeTenant(w http.ResponseWriter, r *http.Request, id billing.TenantID) (*billing.Tenant, bool) {
	var req TenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return nil, false
	}

	moveIn, err := time.Parse(dateLayout, req.MoveInDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid move_in_date, want YYYY-MM-DD", err)
		return nil, false
	}
	var moveOut *time.Time
	if req.MoveOutDate != nil {
		d, err := time.Parse(dateLayout, *req.MoveOutDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid move_out_date, want YYYY-MM-DD", err)
			return nil, false
		}
		moveOut = &d
	}

	status := billing.OccupancyStatus(req.Status)
	if req.Status == "" {
		status = billing.OccupancyActive
	}

	return &billing.Tenant{
		ID:             id,
		PropertyID:     billing.PropertyID(req.PropertyID),
		Name:           req.Name,
		RoomArea:       req.RoomArea,
		NumberOfPeople: req.NumberOfPeople,
		MoveInDate:     moveIn,
		MoveOutDate:    moveOut,
		Status:         status,
		RentAmount:     req.RentAmount,
	}, true
}

// =============================================================================
// UTILITY ENTRY HANDLERS
// =============================================================================

func (h *Handler) ListUtilities(w http.ResponseWriter, r *http.Request) {
	bm, ok := monthQuery(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.ListUtilityEntries(r.Context(), billing.PropertyID(chi.URLParam(r, "id")), bm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]UtilityEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toUtilityEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUtilityEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := decodeUtilityEntry(w, r, "")
	if !ok {
		return
	}
	created, err := h.Service.CreateUtilityEntry(r.Context(), *entry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUtilityEntryDTO(*created))
}

func (h *Handler) GetUtilityEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.GetUtilityEntry(r.Context(), billing.UtilityEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUtilityEntryDTO(*e))
}

func (h *Handler) UpdateUtilityEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := decodeUtilityEntry(w, r, billing.UtilityEntryID(chi.URLParam(r, "id")))
	if !ok {
		return
	}
	updated, err := h.Service.UpdateUtilityEntry(r.Context(), *entry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUtilityEntryDTO(*updated))
}

func decodeUtilityEntry(w http.ResponseWriter, r *http.Request, id billing.UtilityEntryID) (*billing.UtilityEntry, bool) {
	var req UtilityEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return nil, false
	}
	return &billing.UtilityEntry{
		ID:          id,
		PropertyID:  billing.PropertyID(req.PropertyID),
		Month:       billing.NewBillingMonth(req.Year, req.Month),
		UtilityType: billing.UtilityType(req.UtilityType),
		TotalAmount: req.TotalAmount,
		Method:      billing.AllocationMethod(req.Method),
	}, true
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// CalculateAllocations computes and persists the allocation set.
// POST /api/utilities/{id}/allocations
func (h *Handler) CalculateAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := h.Service.CalculateAllocations(r.Context(), billing.UtilityEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// GetAllocations returns the persisted allocation set.
// GET /api/utilities/{id}/allocations
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := h.Service.Allocations(r.Context(), billing.UtilityEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// GetBreakdown returns the weighted allocation breakdown without
// persisting anything.
// GET /api/utilities/{id}/breakdown
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.Service.CalculateWeightedAllocations(r.Context(), billing.UtilityEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTO(breakdown))
}

// =============================================================================
// BILLING PERIOD HANDLERS
// =============================================================================

func (h *Handler) CreateBillingPeriod(w http.ResponseWriter, r *http.Request) {
	var req CreateBillingPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	period, err := h.Periods.CreateOrUpdate(r.Context(),
		billing.PropertyID(req.PropertyID), req.Month, req.Year,
		billing.PeriodOptions{Notes: req.Notes, Force: req.Force})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*period))
}

func (h *Handler) GetBillingPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.Periods.Get(r.Context(), billing.BillingPeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*period))
}

// FindBillingPeriod looks up a period by property and month.
// GET /api/properties/{id}/billing-period?year=&month=
func (h *Handler) FindBillingPeriod(w http.ResponseWriter, r *http.Request) {
	bm, ok := monthQuery(w, r)
	if !ok {
		return
	}
	propertyID := billing.PropertyID(chi.URLParam(r, "id"))
	period, err := h.Periods.Find(r.Context(), propertyID, bm)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*period))
}

func (h *Handler) FinalizeBillingPeriod(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	period, err := h.Periods.Finalize(r.Context(), billing.BillingPeriodID(chi.URLParam(r, "id")), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*period))
}

func (h *Handler) RecalculateBillingPeriod(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	period, err := h.Periods.Recalculate(r.Context(),
		billing.BillingPeriodID(chi.URLParam(r, "id")),
		billing.Adjustments{Reason: req.Reason, Notes: req.Notes, Force: req.Force})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingPeriodDTO(*period))
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Periods.AuditTrail(r.Context(), billing.BillingPeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntryDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func monthQuery(w http.ResponseWriter, r *http.Request) (billing.BillingMonth, bool) {
	year, err1 := strconv.Atoi(r.URL.Query().Get("year"))
	month, err2 := strconv.Atoi(r.URL.Query().Get("month"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "year and month query parameters are required", nil)
		return billing.BillingMonth{}, false
	}
	bm := billing.NewBillingMonth(year, month)
	if !bm.Valid() {
		writeError(w, http.StatusBadRequest, "month must be 1-12", nil)
		return billing.BillingMonth{}, false
	}
	return bm, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a billing error to an HTTP status without
// rewriting its message; core failures pass through verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case billing.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
