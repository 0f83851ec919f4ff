/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the reimbursement engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                  Register a booking read model
    GET    /api/bookings/{id}             Get booking details

  Venues:
    POST   /api/venues/{id}/pricing-point Point a venue at its pricing point
    POST   /api/venues/{id}/bank-account  Open a bank account link

  Events and pricings:
    POST   /api/events                    Record a booking-used event
    GET    /api/events/{id}               Get event details
    POST   /api/events/{id}/price         Price a READY event
    GET    /api/events/{id}/pricing       Get the event's pricing
    POST   /api/events/{id}/cancel-pricing Cancel after booking cancellation

  Rules:
    GET    /api/rules                     List the standard catalog
    GET    /api/rules/custom              List custom rules
    POST   /api/rules/custom              Create a custom rule

  Simulation:
    POST   /api/simulations               Dry-run a stream of bookings

  Incidents:
    POST   /api/incidents/overpayment        Open an overpayment incident
    POST   /api/incidents/commercial-gesture Open a commercial gesture
    POST   /api/incidents/{id}/validate      Validate, emitting events
    POST   /api/incidents/{id}/cancel        Cancel before validation

  Cashflows and invoices:
    POST   /api/cashflows/generate        Run one cashflow batch
    POST   /api/cashflows/batches/{id}/submit Send a batch for review
    POST   /api/invoices                  Generate an invoice
    GET    /api/invoices                  List a bank account's invoices

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, empty invoice
  - 404: Resource not found
  - 409: State-machine violations (double pricing, wrong status),
         missing pricing point (retryable precondition)
  - 500: Internal errors, conservation failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/culturepass/finance-engine/finance"
	"github.com/culturepass/finance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *finance.Engine

	// currentScenario tracks the loaded demo scenario, if any.
	currentScenario string
}

// NewHandler creates a new handler with the given store and engine.
func NewHandler(store *sqlite.Store, engine *finance.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking registers a booking read model.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive", nil)
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
		return
	}
	dateCreated, err := parseDate(req.DateCreated)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_created", err)
		return
	}
	var dateUsed time.Time
	if req.DateUsed != "" {
		if dateUsed, err = parseDate(req.DateUsed); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date_used", err)
			return
		}
	}
	status := finance.BookingStatus(req.Status)
	if status == "" {
		status = finance.BookingUsed
	}
	switch status {
	case finance.BookingUsed, finance.BookingCancelled, finance.BookingReimbursed:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	booking := &finance.Booking{
		ID:          req.ID,
		Quantity:    req.Quantity,
		UnitPrice:   unitPrice,
		DateCreated: dateCreated,
		DateUsed:    dateUsed,
		Status:      status,
		VenueID:     req.VenueID,
		OffererID:   req.OffererID,
		OfferID:     req.OfferID,
		Digital:     req.Digital,
		Subcategory: finance.Subcategory(req.Subcategory),
		Collective:  req.Collective,
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if err := h.Store.SaveBooking(r.Context(), booking); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(booking))
}

// GetBooking returns a single booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	booking, err := h.Store.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(booking))
}

// =============================================================================
// VENUE HANDLERS
// =============================================================================

// SetPricingPoint points a venue at its pricing point.
func (h *Handler) SetPricingPoint(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "id")
	var req SetPricingPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PricingPointID == "" {
		writeError(w, http.StatusBadRequest, "pricing_point_id is required", nil)
		return
	}
	if err := h.Store.SetPricingPoint(r.Context(), venueID, req.PricingPointID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set pricing point", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkBankAccount opens a venue's bank account link.
func (h *Handler) LinkBankAccount(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "id")
	var req LinkBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BankAccountID == "" {
		writeError(w, http.StatusBadRequest, "bank_account_id is required", nil)
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}
	link := finance.BankAccountLink{
		VenueID:       venueID,
		BankAccountID: req.BankAccountID,
		Start:         start,
	}
	if req.End != nil {
		end, err := parseDate(*req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end", err)
			return
		}
		link.End = &end
	}
	if err := h.Store.AddBankAccountLink(r.Context(), link); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to link bank account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EVENT AND PRICING HANDLERS
// =============================================================================

// CreateEvent records a booking-used finance event.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	motive := finance.FinanceEventMotive(req.Motive)
	if motive == "" {
		motive = finance.MotiveBookingUsed
	}
	switch motive {
	case finance.MotiveBookingUsed, finance.MotiveBookingUsedAfterCancellation,
		finance.MotiveBookingUnused, finance.MotiveBookingCancelledAfterUse:
	default:
		writeError(w, http.StatusBadRequest, "Invalid motive for a booking event", nil)
		return
	}
	event, err := h.Engine.AddBookingEvent(r.Context(), req.BookingID, motive)
	if err != nil {
		writeDomainError(w, "Failed to add event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// GetEvent returns a single finance event.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := h.Store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get event", err)
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "Event not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// PriceEvent prices a READY event.
func (h *Handler) PriceEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pricing, err := h.Engine.PriceEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to price event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPricingDTO(pricing))
}

// GetEventPricing returns the event's pricing, if any.
func (h *Handler) GetEventPricing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pricing, err := h.Store.PricingForEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get pricing", err)
		return
	}
	if pricing == nil {
		writeError(w, http.StatusNotFound, "Event has no pricing", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPricingDTO(pricing))
}

// CancelEventPricing cancels a priced event's pricing after the booking was
// cancelled.
func (h *Handler) CancelEventPricing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.CancelEventPricing(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to cancel pricing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns the standard rule catalog.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	dtos := make([]RuleDTO, len(finance.RegularRules))
	for i, rule := range finance.RegularRules {
		dtos[i] = RuleDTO{
			Description: rule.Description(),
			Group:       rule.Group().Label,
			Rate:        rule.Rate().String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCustomRules returns all custom rules.
func (h *Handler) ListCustomRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.CustomRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list custom rules", err)
		return
	}
	dtos := make([]CustomRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toCustomRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomRule creates a custom rule.
func (h *Handler) CreateCustomRule(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if (req.OfferID == "") == (req.OffererID == "") {
		writeError(w, http.StatusBadRequest, "Exactly one of offer_id and offerer_id must be set", nil)
		return
	}
	if (req.AmountCents == nil) == (req.Rate == nil) {
		writeError(w, http.StatusBadRequest, "Exactly one of amount_cents and rate must be set", nil)
		return
	}
	if req.OfferID != "" && len(req.Subcategories) > 0 {
		writeError(w, http.StatusBadRequest, "Subcategories only narrow offerer-scoped rules", nil)
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}

	rule := &finance.CustomRule{
		ID:        uuid.NewString(),
		OfferID:   req.OfferID,
		OffererID: req.OffererID,
		Start:     start,
	}
	for _, sub := range req.Subcategories {
		rule.Subcategories = append(rule.Subcategories, finance.Subcategory(sub))
	}
	if req.AmountCents != nil {
		if *req.AmountCents < 0 {
			writeError(w, http.StatusBadRequest, "amount_cents must be >= 0", nil)
			return
		}
		amount := finance.Cents(*req.AmountCents)
		rule.Amount = &amount
	}
	if req.Rate != nil {
		rate, err := decimal.NewFromString(*req.Rate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid rate", err)
			return
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			writeError(w, http.StatusBadRequest, "rate must be within [0, 1]", nil)
			return
		}
		rule.CustomRate = &rate
	}
	if req.End != nil {
		end, err := parseDate(*req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end", err)
			return
		}
		if !start.Before(end) {
			writeError(w, http.StatusBadRequest, "end must be after start", nil)
			return
		}
		rule.End = &end
	}

	if err := h.Store.AddCustomRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create custom rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomRuleDTO(rule))
}

// =============================================================================
// SIMULATION HANDLER
// =============================================================================

// Simulate dry-runs a stream of bookings against the catalog. Bookings are
// evaluated in the order given; nothing is persisted.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PricingPointID == "" {
		writeError(w, http.StatusBadRequest, "pricing_point_id is required", nil)
		return
	}

	bookings := make([]*finance.Booking, 0, len(req.BookingIDs))
	for _, id := range req.BookingIDs {
		booking, err := h.Store.GetBooking(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
			return
		}
		if booking == nil {
			writeError(w, http.StatusNotFound, "Booking not found: "+id, nil)
			return
		}
		bookings = append(bookings, booking)
	}
	customRules, err := h.Store.CustomRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load custom rules", err)
		return
	}

	results, err := finance.FindAllBookingReimbursements(req.PricingPointID, bookings, finance.NewCustomRuleFinder(customRules))
	if err != nil {
		writeDomainError(w, "Failed to simulate", err)
		return
	}
	dtos := make([]SimulatedReimbursementDTO, len(results))
	for i, res := range results {
		dto := SimulatedReimbursementDTO{
			BookingID:   res.Booking.ID,
			Rule:        res.Rule.Description(),
			AmountCents: int64(res.Amount),
		}
		if custom, ok := res.Rule.(*finance.CustomRule); ok {
			dto.CustomRuleID = custom.ID
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INCIDENT HANDLERS
// =============================================================================

// CreateOverpaymentIncident opens an overpayment incident on a priced booking.
func (h *Handler) CreateOverpaymentIncident(w http.ResponseWriter, r *http.Request) {
	h.createIncident(w, r, finance.IncidentOverpayment)
}

// CreateCommercialGesture opens a commercial gesture on a priced booking.
func (h *Handler) CreateCommercialGesture(w http.ResponseWriter, r *http.Request) {
	h.createIncident(w, r, finance.IncidentCommercialGesture)
}

func (h *Handler) createIncident(w http.ResponseWriter, r *http.Request, kind finance.IncidentKind) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AmountCents < 0 {
		writeError(w, http.StatusBadRequest, "amount_cents must be >= 0", nil)
		return
	}
	var incident *finance.BookingFinanceIncident
	var err error
	if kind == finance.IncidentOverpayment {
		incident, err = h.Engine.CreateOverpaymentIncident(r.Context(), req.BookingID, finance.Cents(req.AmountCents))
	} else {
		incident, err = h.Engine.CreateCommercialGesture(r.Context(), req.BookingID, finance.Cents(req.AmountCents))
	}
	if err != nil {
		writeDomainError(w, "Failed to create incident", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentDTO(incident))
}

// ValidateIncident validates an incident, emitting its finance events.
func (h *Handler) ValidateIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.Engine.ValidateIncident(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to validate incident", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, event := range events {
		dtos[i] = toEventDTO(event)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CancelIncident cancels a pending incident.
func (h *Handler) CancelIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.CancelIncident(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to cancel incident", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CASHFLOW HANDLERS
// =============================================================================

// GenerateCashflows runs one cashflow batch up to the given cutoff.
func (h *Handler) GenerateCashflows(w http.ResponseWriter, r *http.Request) {
	var req GenerateCashflowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cutoff := time.Now()
	if req.Cutoff != "" {
		var err error
		if cutoff, err = parseDate(req.Cutoff); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cutoff", err)
			return
		}
	}
	batch, err := h.Engine.GenerateCashflows(r.Context(), cutoff)
	if err != nil {
		writeDomainError(w, "Failed to generate cashflows", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// SubmitBatch sends a batch's pending cashflows for review.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.SubmitBatch(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to submit batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBatchCashflows returns a batch's cashflows, optionally filtered by
// status (?status=pending).
func (h *Handler) ListBatchCashflows(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := finance.CashflowStatus(r.URL.Query().Get("status"))
	cashflows, err := h.Store.CashflowsOfBatch(r.Context(), id, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cashflows", err)
		return
	}
	dtos := make([]CashflowDTO, len(cashflows))
	for i, cf := range cashflows {
		dtos[i] = toCashflowDTO(cf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// GenerateInvoice folds reviewed cashflows into an invoice.
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BankAccountID == "" || len(req.CashflowIDs) == 0 {
		writeError(w, http.StatusBadRequest, "bank_account_id and cashflow_ids are required", nil)
		return
	}
	invoice, err := h.Engine.GenerateInvoice(r.Context(), req.BankAccountID, req.CashflowIDs, req.IsDebitNote)
	if err != nil {
		writeDomainError(w, "Failed to generate invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(invoice))
}

// ListInvoices lists a bank account's invoices (?bank_account_id=).
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	bankAccountID := r.URL.Query().Get("bank_account_id")
	if bankAccountID == "" {
		writeError(w, http.StatusBadRequest, "bank_account_id is required", nil)
		return
	}
	invoices, err := h.Engine.InvoicesOf(r.Context(), bankAccountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i, invoice := range invoices {
		dtos[i] = toInvoiceDTO(invoice)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DTO CONVERSION
// =============================================================================

func toBookingDTO(b *finance.Booking) BookingDTO {
	dto := BookingDTO{
		ID:          b.ID,
		Quantity:    b.Quantity,
		UnitPrice:   b.UnitPrice.StringFixed(2),
		TotalCents:  int64(b.TotalCents()),
		DateCreated: b.DateCreated.Format(time.RFC3339),
		Status:      string(b.Status),
		VenueID:     b.VenueID,
		OffererID:   b.OffererID,
		OfferID:     b.OfferID,
		Digital:     b.Digital,
		Subcategory: string(b.Subcategory),
		Collective:  b.Collective,
	}
	if !b.DateUsed.IsZero() {
		dto.DateUsed = b.DateUsed.Format(time.RFC3339)
	}
	return dto
}

func toEventDTO(e *finance.FinanceEvent) EventDTO {
	return EventDTO{
		ID:             e.ID,
		Motive:         string(e.Motive),
		Status:         string(e.Status),
		BookingID:      e.BookingID,
		IncidentID:     e.IncidentID,
		VenueID:        e.VenueID,
		PricingPointID: e.PricingPointID,
		ValueDate:      e.ValueDate.Format(time.RFC3339),
		CreationDate:   e.CreationDate.Format(time.RFC3339),
	}
}

func toPricingDTO(p *finance.Pricing) PricingDTO {
	lines := make([]PricingLineDTO, len(p.Lines))
	for i, line := range p.Lines {
		lines[i] = PricingLineDTO{Category: string(line.Category), AmountCents: int64(line.Amount)}
	}
	return PricingDTO{
		ID:             p.ID,
		EventID:        p.EventID,
		BookingID:      p.BookingID,
		Status:         string(p.Status),
		VenueID:        p.VenueID,
		PricingPointID: p.PricingPointID,
		ValueDate:      p.ValueDate.Format(time.RFC3339),
		AmountCents:    int64(p.Amount),
		RevenueCents:   int64(p.Revenue),
		StandardRule:   p.StandardRule,
		CustomRuleID:   p.CustomRuleID,
		Lines:          lines,
	}
}

func toCustomRuleDTO(rule *finance.CustomRule) CustomRuleDTO {
	dto := CustomRuleDTO{
		ID:        rule.ID,
		OfferID:   rule.OfferID,
		OffererID: rule.OffererID,
		Start:     rule.Start.Format(time.RFC3339),
	}
	for _, sub := range rule.Subcategories {
		dto.Subcategories = append(dto.Subcategories, string(sub))
	}
	if rule.Amount != nil {
		amount := int64(*rule.Amount)
		dto.AmountCents = &amount
	}
	if rule.CustomRate != nil {
		rate := rule.CustomRate.String()
		dto.Rate = &rate
	}
	if rule.End != nil {
		end := rule.End.Format(time.RFC3339)
		dto.End = &end
	}
	return dto
}

func toIncidentDTO(incident *finance.BookingFinanceIncident) IncidentDTO {
	return IncidentDTO{
		ID:                  incident.ID,
		Kind:                string(incident.Kind),
		Status:              string(incident.Status),
		BookingID:           incident.BookingID,
		VenueID:             incident.VenueID,
		NewTotalAmountCents: int64(incident.NewTotalAmount),
		CreationDate:        incident.CreationDate.Format(time.RFC3339),
	}
}

func toCashflowDTO(cf *finance.Cashflow) CashflowDTO {
	return CashflowDTO{
		ID:            cf.ID,
		BatchID:       cf.BatchID,
		BankAccountID: cf.BankAccountID,
		Status:        string(cf.Status),
		AmountCents:   int64(cf.Amount),
		PricingIDs:    cf.PricingIDs,
	}
}

func toBatchDTO(batch *finance.CashflowBatch) BatchDTO {
	return BatchDTO{
		ID:          batch.ID,
		Label:       batch.Label,
		Cutoff:      batch.Cutoff.Format(time.RFC3339),
		CashflowIDs: batch.CashflowIDs,
	}
}

func toInvoiceDTO(invoice *finance.Invoice) InvoiceDTO {
	lines := make([]InvoiceLineDTO, len(invoice.Lines))
	for i, line := range invoice.Lines {
		lines[i] = InvoiceLineDTO{
			Label:                   line.Label,
			Group:                   line.Group.Label,
			ReimbursedAmountCents:   int64(line.ReimbursedAmount),
			ContributionAmountCents: int64(line.ContributionAmount),
			Rate:                    line.Rate.String(),
		}
	}
	return InvoiceDTO{
		ID:            invoice.ID,
		Reference:     invoice.Reference,
		Token:         invoice.Token,
		BankAccountID: invoice.BankAccountID,
		Date:          invoice.Date.Format(time.RFC3339),
		AmountCents:   int64(invoice.Amount),
		IsDebitNote:   invoice.IsDebitNote,
		CashflowIDs:   invoice.CashflowIDs,
		Lines:         lines,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// parseDate accepts RFC3339 or a bare calendar date (UTC midnight).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
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

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, domainStatus(err), message, err)
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, finance.ErrBookingNotFound),
		errors.Is(err, finance.ErrEventNotFound),
		errors.Is(err, finance.ErrCashflowNotFound),
		errors.Is(err, finance.ErrRuleNotFound):
		return http.StatusNotFound
	case finance.IsStateMachineViolation(err),
		errors.Is(err, finance.ErrIncidentNotValidated),
		finance.IsRetryable(err):
		return http.StatusConflict
	case errors.Is(err, finance.ErrNoInvoiceToGenerate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
