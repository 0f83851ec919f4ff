package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culturepass/finance-engine/api"
	"github.com/culturepass/finance-engine/finance"
	"github.com/culturepass/finance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := finance.NewEngine(store, nil)
	server := httptest.NewServer(api.NewRouter(api.NewHandler(store, engine), []string{"*"}))
	t.Cleanup(server.Close)
	return server
}

// doJSON sends a request and decodes the response body into out (if non-nil).
func doJSON(t *testing.T, server *httptest.Server, method, path string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func setupVenue(t *testing.T, server *httptest.Server, venueID, pricingPointID, bankAccountID string) {
	t.Helper()
	status := doJSON(t, server, http.MethodPost, "/api/venues/"+venueID+"/pricing-point",
		map[string]string{"pricing_point_id": pricingPointID}, nil)
	require.Equal(t, http.StatusNoContent, status)
	status = doJSON(t, server, http.MethodPost, "/api/venues/"+venueID+"/bank-account",
		map[string]string{"bank_account_id": bankAccountID, "start": "2022-01-01"}, nil)
	require.Equal(t, http.StatusNoContent, status)
}

func registerBooking(t *testing.T, server *httptest.Server, id string, quantity int64, unitPrice string) {
	t.Helper()
	status := doJSON(t, server, http.MethodPost, "/api/bookings", map[string]any{
		"id":           id,
		"quantity":     quantity,
		"unit_price":   unitPrice,
		"date_created": "2023-03-01",
		"date_used":    "2023-03-15",
		"venue_id":     "venue-1",
		"offerer_id":   "offerer-1",
		"offer_id":     "offer-1",
	}, nil)
	require.Equal(t, http.StatusCreated, status)
}

// =============================================================================
// FULL LIFECYCLE TEST
// =============================================================================

func TestAPI_BookingToInvoiceLifecycle(t *testing.T) {
	// GIVEN: A configured venue and a used booking
	// WHEN: Walking the whole chain over HTTP
	// THEN: Event, pricing, cashflow batch and invoice line up, and the
	//       booking ends up reimbursed

	server := newTestServer(t)
	setupVenue(t, server, "venue-1", "pp-1", "iban-1")
	registerBooking(t, server, "booking-1", 13, "5.00")

	var booking api.BookingDTO
	status := doJSON(t, server, http.MethodGet, "/api/bookings/booking-1", nil, &booking)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(6500), booking.TotalCents)
	assert.Equal(t, "used", booking.Status)

	var event api.EventDTO
	status = doJSON(t, server, http.MethodPost, "/api/events",
		map[string]string{"booking_id": "booking-1"}, &event)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ready", event.Status)
	assert.Equal(t, "pp-1", event.PricingPointID)

	var pricing api.PricingDTO
	status = doJSON(t, server, http.MethodPost, "/api/events/"+event.ID+"/price", nil, &pricing)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(-6500), pricing.AmountCents)
	assert.Equal(t, int64(6500), pricing.RevenueCents)
	require.Len(t, pricing.Lines, 2)
	assert.Equal(t, int64(-6500), pricing.Lines[0].AmountCents)

	var fetched api.PricingDTO
	status = doJSON(t, server, http.MethodGet, "/api/events/"+event.ID+"/pricing", nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, pricing.ID, fetched.ID)

	var batch api.BatchDTO
	status = doJSON(t, server, http.MethodPost, "/api/cashflows/generate",
		map[string]string{}, &batch)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "VIR1", batch.Label)
	require.Len(t, batch.CashflowIDs, 1)

	var cashflows []api.CashflowDTO
	status = doJSON(t, server, http.MethodGet, "/api/cashflows/batches/"+batch.ID+"/", nil, &cashflows)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cashflows, 1)
	assert.Equal(t, "pending", cashflows[0].Status)
	assert.Equal(t, int64(-6500), cashflows[0].AmountCents)

	status = doJSON(t, server, http.MethodPost, "/api/cashflows/batches/"+batch.ID+"/submit", nil, nil)
	require.Equal(t, http.StatusNoContent, status)

	var invoice api.InvoiceDTO
	status = doJSON(t, server, http.MethodPost, "/api/invoices", map[string]any{
		"bank_account_id": "iban-1",
		"cashflow_ids":    batch.CashflowIDs,
	}, &invoice)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, fmt.Sprintf("F%02d0000001", time.Now().Year()%100), invoice.Reference)
	assert.Equal(t, int64(-6500), invoice.AmountCents)
	require.Len(t, invoice.Lines, 1)
	assert.Equal(t, "Réservations", invoice.Lines[0].Label)

	var invoices []api.InvoiceDTO
	status = doJSON(t, server, http.MethodGet, "/api/invoices?bank_account_id=iban-1", nil, &invoices)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, invoices, 1)

	status = doJSON(t, server, http.MethodGet, "/api/bookings/booking-1", nil, &booking)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reimbursed", booking.Status)
}

// =============================================================================
// INCIDENT FLOW TEST
// =============================================================================

func TestAPI_OverpaymentIncidentFlow(t *testing.T) {
	server := newTestServer(t)
	setupVenue(t, server, "venue-1", "pp-1", "iban-1")
	registerBooking(t, server, "booking-1", 13, "5.00")

	var event api.EventDTO
	status := doJSON(t, server, http.MethodPost, "/api/events",
		map[string]string{"booking_id": "booking-1"}, &event)
	require.Equal(t, http.StatusCreated, status)
	status = doJSON(t, server, http.MethodPost, "/api/events/"+event.ID+"/price", nil, nil)
	require.Equal(t, http.StatusCreated, status)

	var incident api.IncidentDTO
	status = doJSON(t, server, http.MethodPost, "/api/incidents/overpayment", map[string]any{
		"booking_id":   "booking-1",
		"amount_cents": 3500,
	}, &incident)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "created", incident.Status)

	var events []api.EventDTO
	status = doJSON(t, server, http.MethodPost, "/api/incidents/"+incident.ID+"/validate", nil, &events)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, events, 2)

	var reversal api.PricingDTO
	status = doJSON(t, server, http.MethodPost, "/api/events/"+events[0].ID+"/price", nil, &reversal)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(6500), reversal.AmountCents)

	var newPrice api.PricingDTO
	status = doJSON(t, server, http.MethodPost, "/api/events/"+events[1].ID+"/price", nil, &newPrice)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(-3500), newPrice.AmountCents)

	// A validated incident cannot be validated again
	status = doJSON(t, server, http.MethodPost, "/api/incidents/"+incident.ID+"/validate", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

// =============================================================================
// RULE AND SIMULATION TESTS
// =============================================================================

func TestAPI_ListRules_ReturnsCatalog(t *testing.T) {
	server := newTestServer(t)

	var rules []api.RuleDTO
	status := doJSON(t, server, http.MethodGet, "/api/rules/", nil, &rules)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, rules, len(finance.RegularRules))
}

func TestAPI_CreateCustomRule_Validation(t *testing.T) {
	server := newTestServer(t)

	// Both scopes set
	status := doJSON(t, server, http.MethodPost, "/api/rules/custom", map[string]any{
		"offer_id": "offer-1", "offerer_id": "offerer-1", "rate": "0.80", "start": "2023-01-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Both amount and rate set
	status = doJSON(t, server, http.MethodPost, "/api/rules/custom", map[string]any{
		"offerer_id": "offerer-1", "rate": "0.80", "amount_cents": 500, "start": "2023-01-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Rate out of range
	status = doJSON(t, server, http.MethodPost, "/api/rules/custom", map[string]any{
		"offerer_id": "offerer-1", "rate": "1.10", "start": "2023-01-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var rule api.CustomRuleDTO
	status = doJSON(t, server, http.MethodPost, "/api/rules/custom", map[string]any{
		"offerer_id": "offerer-1", "rate": "0.80", "start": "2023-01-01",
	}, &rule)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, rule.ID)
	require.NotNil(t, rule.Rate)
	assert.Equal(t, "0.8", *rule.Rate)

	var rules []api.CustomRuleDTO
	status = doJSON(t, server, http.MethodGet, "/api/rules/custom", nil, &rules)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, rules, 1)
}

func TestAPI_Simulate_AppliesCustomRule(t *testing.T) {
	server := newTestServer(t)
	setupVenue(t, server, "venue-1", "pp-1", "iban-1")
	registerBooking(t, server, "booking-1", 1, "100.00")

	status := doJSON(t, server, http.MethodPost, "/api/rules/custom", map[string]any{
		"offerer_id": "offerer-1", "rate": "0.80", "start": "2023-01-01",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var results []api.SimulatedReimbursementDTO
	status = doJSON(t, server, http.MethodPost, "/api/simulations", map[string]any{
		"pricing_point_id": "pp-1",
		"booking_ids":      []string{"booking-1"},
	}, &results)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, results, 1)
	assert.Equal(t, int64(8000), results[0].AmountCents)
	assert.NotEmpty(t, results[0].CustomRuleID)

	// Nothing was persisted by the dry run
	status = doJSON(t, server, http.MethodGet, "/api/events/booking-1/pricing", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestAPI_ErrorStatuses(t *testing.T) {
	server := newTestServer(t)
	setupVenue(t, server, "venue-1", "pp-1", "iban-1")

	// Unknown booking
	status := doJSON(t, server, http.MethodGet, "/api/bookings/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Event for an unknown booking
	status = doJSON(t, server, http.MethodPost, "/api/events",
		map[string]string{"booking_id": "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Invalid booking payload
	status = doJSON(t, server, http.MethodPost, "/api/bookings", map[string]any{
		"id": "b-bad", "quantity": 0, "unit_price": "5.00", "date_created": "2023-03-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Double pricing is a conflict
	registerBooking(t, server, "booking-1", 1, "10.00")
	var event api.EventDTO
	status = doJSON(t, server, http.MethodPost, "/api/events",
		map[string]string{"booking_id": "booking-1"}, &event)
	require.Equal(t, http.StatusCreated, status)
	status = doJSON(t, server, http.MethodPost, "/api/events/"+event.ID+"/price", nil, nil)
	require.Equal(t, http.StatusCreated, status)
	status = doJSON(t, server, http.MethodPost, "/api/events/"+event.ID+"/price", nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Empty invoice request
	status = doJSON(t, server, http.MethodPost, "/api/invoices", map[string]any{
		"bank_account_id": "iban-1", "cashflow_ids": []string{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
