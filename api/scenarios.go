/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario seeds venues, bookings and
	rules, then runs them through the engine so the loaded state contains
	real pricings rather than hand-written rows.

AVAILABLE SCENARIOS:

	first-sales:          Small venue, every booking reimbursed in full
	degressive-tiers:     Bookstore crossing the 20 000 EUR revenue tier
	negotiated-rate:      Offerer with a custom 80% reimbursement rate
	overpayment-incident: Priced booking corrected through an incident
	invoice-cycle:        Full chain through cashflows and an invoice

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed venues, pricing points and bank accounts
 3. Register bookings and price their events through the engine
 4. Optionally run incidents, cashflows and invoicing

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "degressive-tiers"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared handler context and error helpers
  - finance/pricing.go: The engine the loaders drive
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/culturepass/finance-engine/finance"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "first-sales",
		Name:        "First Sales",
		Description: "Small venue below every revenue tier, full reimbursement",
		Category:    "pricing",
	},
	{
		ID:          "degressive-tiers",
		Name:        "Degressive Tiers",
		Description: "Bookstore crossing 20 000 EUR: books keep 95%, the rest degrades",
		Category:    "pricing",
	},
	{
		ID:          "negotiated-rate",
		Name:        "Negotiated Rate",
		Description: "Offerer with a custom 80% rate overriding the catalog",
		Category:    "rules",
	},
	{
		ID:          "overpayment-incident",
		Name:        "Overpayment Incident",
		Description: "Priced booking corrected through reversal and new price",
		Category:    "incidents",
	},
	{
		ID:          "invoice-cycle",
		Name:        "Invoice Cycle",
		Description: "Pricings batched into cashflows and folded into an invoice",
		Category:    "invoicing",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "first-sales":
		err = h.loadFirstSalesScenario(ctx)
	case "degressive-tiers":
		err = h.loadDegressiveTiersScenario(ctx)
	case "negotiated-rate":
		err = h.loadNegotiatedRateScenario(ctx)
	case "overpayment-incident":
		err = h.loadOverpaymentIncidentScenario(ctx)
	case "invoice-cycle":
		err = h.loadInvoiceCycleScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// demoBooking builds a booking used two weeks ago, so it always falls inside
// the current revenue year and before any cashflow cutoff.
func demoBooking(id, venueID, offererID string, quantity int64, unitPrice string) *finance.Booking {
	now := time.Now().UTC()
	return &finance.Booking{
		ID:          id,
		Quantity:    quantity,
		UnitPrice:   decimal.RequireFromString(unitPrice),
		DateCreated: now.AddDate(0, 0, -30),
		DateUsed:    now.AddDate(0, 0, -14),
		Status:      finance.BookingUsed,
		VenueID:     venueID,
		OffererID:   offererID,
		OfferID:     "offer-" + id,
	}
}

// priceNewBooking registers a booking and runs it through event creation and
// pricing.
func (h *Handler) priceNewBooking(ctx context.Context, b *finance.Booking) (*finance.Pricing, error) {
	if err := h.Store.SaveBooking(ctx, b); err != nil {
		return nil, err
	}
	event, err := h.Engine.AddBookingEvent(ctx, b.ID, finance.MotiveBookingUsed)
	if err != nil {
		return nil, err
	}
	return h.Engine.PriceEvent(ctx, event.ID)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFirstSalesScenario(ctx context.Context) error {
	if err := h.Store.SetPricingPoint(ctx, "venue-librairie", "pp-librairie"); err != nil {
		return err
	}

	sales := []*finance.Booking{
		demoBooking("demo-sale-1", "venue-librairie", "offerer-librairie", 1, "18.50"),
		demoBooking("demo-sale-2", "venue-librairie", "offerer-librairie", 2, "12.00"),
		demoBooking("demo-sale-3", "venue-librairie", "offerer-librairie", 1, "45.00"),
	}
	for _, b := range sales {
		if _, err := h.priceNewBooking(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadDegressiveTiersScenario(ctx context.Context) error {
	if err := h.Store.SetPricingPoint(ctx, "venue-megastore", "pp-megastore"); err != nil {
		return err
	}

	// 200 x 100 EUR lands exactly on the first tier: still reimbursed in full.
	opening := demoBooking("demo-opening", "venue-megastore", "offerer-megastore", 200, "100.00")
	if _, err := h.priceNewBooking(ctx, opening); err != nil {
		return err
	}

	// The next standard sale crosses the tier and drops to 95%.
	crossing := demoBooking("demo-crossing", "venue-megastore", "offerer-megastore", 1, "60.00")
	if _, err := h.priceNewBooking(ctx, crossing); err != nil {
		return err
	}

	// A book sale above the tier keeps the protected 95% book rate.
	book := demoBooking("demo-book", "venue-megastore", "offerer-megastore", 1, "25.00")
	book.Subcategory = finance.SubcategoryPaperBook
	_, err := h.priceNewBooking(ctx, book)
	return err
}

func (h *Handler) loadNegotiatedRateScenario(ctx context.Context) error {
	if err := h.Store.SetPricingPoint(ctx, "venue-theatre", "pp-theatre"); err != nil {
		return err
	}

	rate := decimal.RequireFromString("0.80")
	rule := &finance.CustomRule{
		ID:         "demo-negotiated-80",
		OffererID:  "offerer-theatre",
		CustomRate: &rate,
		Start:      time.Now().UTC().AddDate(0, -6, 0),
	}
	if err := h.Store.AddCustomRule(ctx, rule); err != nil {
		return err
	}

	b := demoBooking("demo-negotiated", "venue-theatre", "offerer-theatre", 2, "35.00")
	_, err := h.priceNewBooking(ctx, b)
	return err
}

func (h *Handler) loadOverpaymentIncidentScenario(ctx context.Context) error {
	if err := h.Store.SetPricingPoint(ctx, "venue-cinema", "pp-cinema"); err != nil {
		return err
	}

	// 13 seats reimbursed, but only 7 were actually used.
	b := demoBooking("demo-overpaid", "venue-cinema", "offerer-cinema", 13, "5.00")
	if _, err := h.priceNewBooking(ctx, b); err != nil {
		return err
	}

	incident, err := h.Engine.CreateOverpaymentIncident(ctx, b.ID, 3500)
	if err != nil {
		return err
	}
	events, err := h.Engine.ValidateIncident(ctx, incident.ID)
	if err != nil {
		return err
	}
	for _, event := range events {
		if _, err := h.Engine.PriceEvent(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadInvoiceCycleScenario(ctx context.Context) error {
	if err := h.Store.SetPricingPoint(ctx, "venue-musee", "pp-musee"); err != nil {
		return err
	}
	if err := h.Store.AddBankAccountLink(ctx, finance.BankAccountLink{
		VenueID:       "venue-musee",
		BankAccountID: "iban-demo",
		Start:         time.Now().UTC().AddDate(-1, 0, 0),
	}); err != nil {
		return err
	}

	for i, price := range []string{"9.50", "14.00", "21.00"} {
		b := demoBooking(fmt.Sprintf("demo-visit-%d", i+1), "venue-musee", "offerer-musee", 1, price)
		if _, err := h.priceNewBooking(ctx, b); err != nil {
			return err
		}
	}

	batch, err := h.Engine.GenerateCashflows(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := h.Engine.SubmitBatch(ctx, batch.ID); err != nil {
		return err
	}
	_, err = h.Engine.GenerateInvoice(ctx, "iban-demo", batch.CashflowIDs, false)
	return err
}
