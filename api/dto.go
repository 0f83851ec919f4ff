/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every monetary field is integer euro cents with an explicit _cents suffix,
  except a booking's unit price which crosses the API as a decimal string
  ("30.00") the way the upstream catalog stores it. Rates are decimal
  strings ("0.95").

TYPES:
  Bookings:
    BookingDTO, CreateBookingRequest

  Events and pricings:
    EventDTO, CreateEventRequest, PricingDTO, PricingLineDTO

  Rules:
    RuleDTO, CustomRuleDTO, CreateCustomRuleRequest

  Simulation:
    SimulateRequest, SimulatedReimbursementDTO

  Incidents:
    IncidentDTO, CreateIncidentRequest

  Cashflows and invoices:
    GenerateCashflowsRequest, BatchDTO, CashflowDTO,
    GenerateInvoiceRequest, InvoiceDTO, InvoiceLineDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - finance/types.go: The domain model these project
*/
package api

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// BOOKINGS
// =============================================================================

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID          string `json:"id"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalCents  int64  `json:"total_cents"`
	DateCreated string `json:"date_created"`
	DateUsed    string `json:"date_used,omitempty"`
	Status      string `json:"status"`
	VenueID     string `json:"venue_id"`
	OffererID   string `json:"offerer_id"`
	OfferID     string `json:"offer_id"`
	Digital     bool   `json:"digital"`
	Subcategory string `json:"subcategory,omitempty"`
	Collective  bool   `json:"collective"`
}

// CreateBookingRequest registers a booking read model. The engine never
// creates bookings itself; this endpoint mirrors them in from the catalog.
type CreateBookingRequest struct {
	ID          string `json:"id"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	DateCreated string `json:"date_created"`
	DateUsed    string `json:"date_used"`
	Status      string `json:"status"`
	VenueID     string `json:"venue_id"`
	OffererID   string `json:"offerer_id"`
	OfferID     string `json:"offer_id"`
	Digital     bool   `json:"digital"`
	Subcategory string `json:"subcategory"`
	Collective  bool   `json:"collective"`
}

// =============================================================================
// VENUES
// =============================================================================

// SetPricingPointRequest points a venue at its pricing point.
type SetPricingPointRequest struct {
	PricingPointID string `json:"pricing_point_id"`
}

// LinkBankAccountRequest opens a venue's bank account link. The previous
// link, if any, must be closed by the back office before opening a new one.
type LinkBankAccountRequest struct {
	BankAccountID string  `json:"bank_account_id"`
	Start         string  `json:"start"`
	End           *string `json:"end,omitempty"`
}

// =============================================================================
// EVENTS AND PRICINGS
// =============================================================================

// EventDTO represents a finance event in API responses.
type EventDTO struct {
	ID             string `json:"id"`
	Motive         string `json:"motive"`
	Status         string `json:"status"`
	BookingID      string `json:"booking_id,omitempty"`
	IncidentID     string `json:"incident_id,omitempty"`
	VenueID        string `json:"venue_id"`
	PricingPointID string `json:"pricing_point_id,omitempty"`
	ValueDate      string `json:"value_date"`
	CreationDate   string `json:"creation_date"`
}

// CreateEventRequest records that a booking was used (or used again after a
// cancellation).
type CreateEventRequest struct {
	BookingID string `json:"booking_id"`
	Motive    string `json:"motive"`
}

// PricingLineDTO is one categorized component of a pricing amount.
type PricingLineDTO struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
}

// PricingDTO represents a pricing in API responses.
type PricingDTO struct {
	ID             string           `json:"id"`
	EventID        string           `json:"event_id"`
	BookingID      string           `json:"booking_id,omitempty"`
	Status         string           `json:"status"`
	VenueID        string           `json:"venue_id"`
	PricingPointID string           `json:"pricing_point_id"`
	ValueDate      string           `json:"value_date"`
	AmountCents    int64            `json:"amount_cents"`
	RevenueCents   int64            `json:"revenue_cents"`
	StandardRule   string           `json:"standard_rule,omitempty"`
	CustomRuleID   string           `json:"custom_rule_id,omitempty"`
	Lines          []PricingLineDTO `json:"lines"`
}

// =============================================================================
// RULES
// =============================================================================

// RuleDTO represents a catalog rule in API responses.
type RuleDTO struct {
	Description string `json:"description"`
	Group       string `json:"group"`
	Rate        string `json:"rate"`
}

// CustomRuleDTO represents a custom rule in API responses.
type CustomRuleDTO struct {
	ID            string   `json:"id"`
	OfferID       string   `json:"offer_id,omitempty"`
	OffererID     string   `json:"offerer_id,omitempty"`
	Subcategories []string `json:"subcategories,omitempty"`
	AmountCents   *int64   `json:"amount_cents,omitempty"`
	Rate          *string  `json:"rate,omitempty"`
	Start         string   `json:"start"`
	End           *string  `json:"end,omitempty"`
}

// CreateCustomRuleRequest creates a custom rule. Exactly one of offer_id and
// offerer_id, and exactly one of amount_cents and rate, must be set.
type CreateCustomRuleRequest struct {
	OfferID       string   `json:"offer_id,omitempty"`
	OffererID     string   `json:"offerer_id,omitempty"`
	Subcategories []string `json:"subcategories,omitempty"`
	AmountCents   *int64   `json:"amount_cents,omitempty"`
	Rate          *string  `json:"rate,omitempty"`
	Start         string   `json:"start"`
	End           *string  `json:"end,omitempty"`
}

// =============================================================================
// SIMULATION
// =============================================================================

// SimulateRequest evaluates a stream of already-registered bookings, in
// order, against the catalog without persisting anything.
type SimulateRequest struct {
	PricingPointID string   `json:"pricing_point_id"`
	BookingIDs     []string `json:"booking_ids"`
}

// SimulatedReimbursementDTO is one booking's simulated outcome.
type SimulatedReimbursementDTO struct {
	BookingID    string `json:"booking_id"`
	Rule         string `json:"rule"`
	CustomRuleID string `json:"custom_rule_id,omitempty"`
	AmountCents  int64  `json:"amount_cents"`
}

// =============================================================================
// INCIDENTS
// =============================================================================

// IncidentDTO represents a finance incident in API responses.
type IncidentDTO struct {
	ID                  string `json:"id"`
	Kind                string `json:"kind"`
	Status              string `json:"status"`
	BookingID           string `json:"booking_id"`
	VenueID             string `json:"venue_id"`
	NewTotalAmountCents int64  `json:"new_total_amount_cents"`
	CreationDate        string `json:"creation_date"`
}

// CreateIncidentRequest opens an incident on a priced booking. For an
// overpayment, amount_cents is the corrected total; for a commercial
// gesture, the gesture amount.
type CreateIncidentRequest struct {
	BookingID   string `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
}

// =============================================================================
// CASHFLOWS AND INVOICES
// =============================================================================

// GenerateCashflowsRequest triggers one cashflow batch run.
type GenerateCashflowsRequest struct {
	Cutoff string `json:"cutoff"`
}

// CashflowDTO represents a cashflow in API responses.
type CashflowDTO struct {
	ID            string   `json:"id"`
	BatchID       string   `json:"batch_id"`
	BankAccountID string   `json:"bank_account_id"`
	Status        string   `json:"status"`
	AmountCents   int64    `json:"amount_cents"`
	PricingIDs    []string `json:"pricing_ids"`
}

// BatchDTO represents a cashflow batch in API responses.
type BatchDTO struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Cutoff      string   `json:"cutoff"`
	CashflowIDs []string `json:"cashflow_ids"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// GenerateInvoiceRequest folds reviewed cashflows into an invoice.
type GenerateInvoiceRequest struct {
	BankAccountID string   `json:"bank_account_id"`
	CashflowIDs   []string `json:"cashflow_ids"`
	IsDebitNote   bool     `json:"is_debit_note"`
}

// InvoiceLineDTO is one aggregated invoice line.
type InvoiceLineDTO struct {
	Label                   string `json:"label"`
	Group                   string `json:"group"`
	ReimbursedAmountCents   int64  `json:"reimbursed_amount_cents"`
	ContributionAmountCents int64  `json:"contribution_amount_cents"`
	Rate                    string `json:"rate"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID            string           `json:"id"`
	Reference     string           `json:"reference"`
	Token         string           `json:"token"`
	BankAccountID string           `json:"bank_account_id"`
	Date          string           `json:"date"`
	AmountCents   int64            `json:"amount_cents"`
	IsDebitNote   bool             `json:"is_debit_note"`
	CashflowIDs   []string         `json:"cashflow_ids"`
	Lines         []InvoiceLineDTO `json:"lines"`
}
