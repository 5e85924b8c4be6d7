/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/statements/*   Statement assembly and retrieval
  /api/people/*       Per-person statements and lease reports
  /api/reports/*      Cross-person reconciliation
  /api/expenses/*     Recurring-expense versioning
  /api/imports/*      CSV ingestion and job status

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

	// Middleware
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
		// Statement routes
		r.Route("/statements", func(r chi.Router) {
			r.Post("/", h.BuildStatement)
			r.Post("/summary", h.BuildSummary)
			r.Get("/{id}", h.GetStatement)
		})

		// Per-person routes
		r.Route("/people/{number}", func(r chi.Router) {
			r.Get("/statements", h.ListStatements)
			r.Get("/lease/revenue", h.LeaseRevenue)
			r.Get("/lease/expense", h.LeaseExpense)
		})

		// Reconciliation routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/reconcile", h.Reconcile)
		})

		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Post("/one-time", h.CreateOneTime)
			r.Route("/recurring", func(r chi.Router) {
				r.Post("/", h.CreateRecurring)
				r.Get("/{id}", h.GetRecurring)
				r.Post("/{id}/change-rate", h.ChangeRate)
				r.Post("/{id}/deactivate", h.Deactivate)
				r.Post("/{id}/reactivate", h.Reactivate)
			})
		})

		// Import routes
		r.Route("/imports", func(r chi.Router) {
			r.Post("/driver-shifts", h.ImportDriverShifts)
			r.Post("/card-charges", h.ImportCardCharges)
			r.Get("/jobs", h.ListJobs)
			r.Get("/jobs/{id}", h.GetJob)
		})
	})

	return r
}
