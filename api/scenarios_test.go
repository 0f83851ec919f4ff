/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario loads cleanly and sets up the expected state:
	venues, bookings, rules and (for the invoice cycle) a finished invoice.

These double as integration tests of the whole HTTP surface.
*/
package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culturepass/finance-engine/api"
)

func loadScenario(t *testing.T, server *httptest.Server, id string) int {
	t.Helper()
	return doJSON(t, server, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": id}, nil)
}

func TestScenarios_ListAndCurrent(t *testing.T) {
	server := newTestServer(t)

	var list []api.ScenarioDTO
	status := doJSON(t, server, http.MethodGet, "/api/scenarios/", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 5)

	var current *api.ScenarioDTO
	status = doJSON(t, server, http.MethodGet, "/api/scenarios/current", nil, &current)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, current, "no scenario loaded yet")

	require.Equal(t, http.StatusOK, loadScenario(t, server, "first-sales"))
	status = doJSON(t, server, http.MethodGet, "/api/scenarios/current", nil, &current)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, current)
	assert.Equal(t, "first-sales", current.ID)
}

func TestLoadScenario_Unknown(t *testing.T) {
	server := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, loadScenario(t, server, "nope"))
}

func TestLoadScenario_AllLoadCleanly(t *testing.T) {
	server := newTestServer(t)
	for _, id := range []string{
		"first-sales", "degressive-tiers", "negotiated-rate",
		"overpayment-incident", "invoice-cycle",
	} {
		assert.Equal(t, http.StatusOK, loadScenario(t, server, id), "scenario %s", id)
	}
}

func TestLoadScenario_ResetsPreviousData(t *testing.T) {
	// GIVEN: The first-sales scenario is loaded
	// WHEN: Loading negotiated-rate
	// THEN: The earlier scenario's bookings are gone

	server := newTestServer(t)
	require.Equal(t, http.StatusOK, loadScenario(t, server, "first-sales"))
	status := doJSON(t, server, http.MethodGet, "/api/bookings/demo-sale-1", nil, nil)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, http.StatusOK, loadScenario(t, server, "negotiated-rate"))
	status = doJSON(t, server, http.MethodGet, "/api/bookings/demo-sale-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	var rules []api.CustomRuleDTO
	status = doJSON(t, server, http.MethodGet, "/api/rules/custom", nil, &rules)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, rules, 1)
	assert.Equal(t, "demo-negotiated-80", rules[0].ID)
}

func TestLoadScenario_InvoiceCycle_EndsInvoiced(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusOK, loadScenario(t, server, "invoice-cycle"))

	var invoices []api.InvoiceDTO
	status := doJSON(t, server, http.MethodGet, "/api/invoices?bank_account_id=iban-demo", nil, &invoices)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(-4450), invoices[0].AmountCents, "9.50 + 14.00 + 21.00, reimbursed in full")

	var booking api.BookingDTO
	status = doJSON(t, server, http.MethodGet, "/api/bookings/demo-visit-1", nil, &booking)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "reimbursed", booking.Status)
}
