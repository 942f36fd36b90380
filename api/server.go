/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SECURITY NOTE:
  No authentication middleware. All endpoints are public; put this
  behind a reverse proxy that handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", h.ListProperties)
			r.Post("/", h.CreateProperty)
			r.Get("/{id}", h.GetProperty)
			r.Get("/{id}/tenants", h.ListTenants)
			r.Get("/{id}/utilities", h.ListUtilities)
			r.Get("/{id}/billing-period", h.FindBillingPeriod)
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", h.CreateTenant)
			r.Get("/{id}", h.GetTenant)
			r.Put("/{id}", h.UpdateTenant)
		})

		r.Route("/utilities", func(r chi.Router) {
			r.Post("/", h.CreateUtilityEntry)
			r.Get("/{id}", h.GetUtilityEntry)
			r.Put("/{id}", h.UpdateUtilityEntry)
			r.Post("/{id}/allocations", h.CalculateAllocations)
			r.Get("/{id}/allocations", h.GetAllocations)
			r.Get("/{id}/breakdown", h.GetBreakdown)
		})

		r.Route("/billing-periods", func(r chi.Router) {
			r.Post("/", h.CreateBillingPeriod)
			r.Get("/{id}", h.GetBillingPeriod)
			r.Post("/{id}/finalize", h.FinalizeBillingPeriod)
			r.Post("/{id}/recalculate", h.RecalculateBillingPeriod)
			r.Get("/{id}/audit", h.GetAuditTrail)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
