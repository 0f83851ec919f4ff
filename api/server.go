/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back office frontend

ROUTE GROUPS:
  /api/bookings/*     Booking read models
  /api/venues/*       Pricing point and bank account links
  /api/events/*       Finance events and pricing
  /api/rules/*        Rule catalog and custom rules
  /api/simulations    Dry-run evaluation
  /api/incidents/*    Post-hoc corrections
  /api/cashflows/*    Batch generation and submission
  /api/invoices/*     Invoice generation

SECURITY NOTE:
  No authentication middleware currently. The service is meant to sit behind
  the back office gateway, which authenticates.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
		})

		// Venue routes
		r.Route("/venues", func(r chi.Router) {
			r.Post("/{id}/pricing-point", h.SetPricingPoint)
			r.Post("/{id}/bank-account", h.LinkBankAccount)
		})

		// Event and pricing routes
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Post("/{id}/price", h.PriceEvent)
			r.Get("/{id}/pricing", h.GetEventPricing)
			r.Post("/{id}/cancel-pricing", h.CancelEventPricing)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Get("/custom", h.ListCustomRules)
			r.Post("/custom", h.CreateCustomRule)
		})

		// Simulation routes
		r.Post("/simulations", h.Simulate)

		// Incident routes
		r.Route("/incidents", func(r chi.Router) {
			r.Post("/overpayment", h.CreateOverpaymentIncident)
			r.Post("/commercial-gesture", h.CreateCommercialGesture)
			r.Post("/{id}/validate", h.ValidateIncident)
			r.Post("/{id}/cancel", h.CancelIncident)
		})

		// Cashflow routes
		r.Route("/cashflows", func(r chi.Router) {
			r.Post("/generate", h.GenerateCashflows)
			r.Route("/batches/{id}", func(r chi.Router) {
				r.Post("/submit", h.SubmitBatch)
				r.Get("/", h.ListBatchCashflows)
			})
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.GenerateInvoice)
			r.Get("/", h.ListInvoices)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
