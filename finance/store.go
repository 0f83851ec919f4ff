/*
store.go - Persistence interface for the finance engine

PURPOSE:
  Defines the boundary between the pricing/batching logic and the database.
  The engine treats persistence as an abstract transactional store: bulk
  fetch-by-filter, row-level locking for the invoice reference scheme, and
  atomic multi-row status updates.

MUTATION CONTRACT:
  Pricings, cashflows and invoices are never edited after creation; the only
  allowed writes on existing rows are the status transitions named here, and
  each pricing transition appends a PricingLog entry. Corrections create NEW
  pricings through incident events.

TRANSACTIONS:
  WithTx executes a function against a transactional view of the store.
  The engine never partially commits: a cashflow or invoice generation either
  lands in full or rolls back in full.

IMPLEMENTATIONS:
  - finance/store/memory: in-memory, for tests and development
  - store/sqlite: production embedded store

SEE ALSO:
  - pricing.go, cashflow.go, invoice.go: the three consumers of this contract
*/
package finance

import (
	"context"
	"time"
)

// =============================================================================
// READ MODELS - external collaborators the engine only consults
// =============================================================================

// VenueResolver resolves the two venue attachments the engine depends on.
type VenueResolver interface {
	// PricingPointFor returns the venue's pricing point (the revenue
	// aggregation anchor). Returns ErrPricingPointNotFound when none is
	// configured; the caller leaves the event pending.
	PricingPointFor(ctx context.Context, venueID string) (string, error)

	// BankAccountFor returns the venue's active bank account at the given
	// date, or ok=false when no link covers it (the venue is skipped from
	// the batch, not an error).
	BankAccountFor(ctx context.Context, venueID string, at time.Time) (bankAccountID string, ok bool, err error)
}

// BookingStore reads bookings and advances their status once invoiced.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (*Booking, error)

	// MarkBookingsReimbursed transitions the bookings to REIMBURSED, leaving
	// cancelled bookings untouched.
	MarkBookingsReimbursed(ctx context.Context, ids []string) error
}

// =============================================================================
// ENGINE-OWNED ENTITIES
// =============================================================================

// EventStore persists finance events.
type EventStore interface {
	AddEvent(ctx context.Context, event *FinanceEvent) error
	GetEvent(ctx context.Context, id string) (*FinanceEvent, error)
	UpdateEventStatus(ctx context.Context, id string, status FinanceEventStatus) error
}

// PricingStore persists pricings, their lines and their status logs.
type PricingStore interface {
	// SavePricing persists a new pricing with its lines and an initial log
	// entry. The pricing is immutable afterwards except for status.
	SavePricing(ctx context.Context, pricing *Pricing, log PricingLog) error

	// PricingForEvent returns the event's non-cancelled pricing, or nil.
	PricingForEvent(ctx context.Context, eventID string) (*Pricing, error)

	// LatestPricingForBooking returns the booking's most recent
	// non-cancelled pricing (the one an incident reverses), or nil.
	LatestPricingForBooking(ctx context.Context, bookingID string) (*Pricing, error)

	// ValidatedPricings returns every VALIDATED pricing with
	// valueDate <= cutoff, in one bulk fetch.
	ValidatedPricings(ctx context.Context, cutoff time.Time) ([]*Pricing, error)

	// Pricings loads pricings (with lines) by ID.
	Pricings(ctx context.Context, ids []string) ([]*Pricing, error)

	// UpdatePricingStatus transitions the given pricings from one status to
	// another atomically, appending one log entry per pricing. Pricings not
	// in the expected `from` status make the whole call fail.
	UpdatePricingStatus(ctx context.Context, ids []string, from, to PricingStatus, reason PricingLogReason) error

	// CurrentRevenue sums the booking totals (cents) of non-cancelled,
	// individual-booking pricings at the pricing point with valueDate in
	// [periodStart, periodEnd], excluding pricings of excludeBookingID.
	CurrentRevenue(ctx context.Context, pricingPointID string, periodStart, periodEnd time.Time, excludeBookingID string) (Cents, error)
}

// RuleStore persists custom reimbursement rules.
type RuleStore interface {
	CustomRules(ctx context.Context) ([]*CustomRule, error)
	GetCustomRule(ctx context.Context, id string) (*CustomRule, error)
	AddCustomRule(ctx context.Context, rule *CustomRule) error
}

// IncidentStore persists booking finance incidents.
type IncidentStore interface {
	SaveIncident(ctx context.Context, incident *BookingFinanceIncident) error
	GetIncident(ctx context.Context, id string) (*BookingFinanceIncident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status IncidentStatus) error
}

// CashflowStore persists batches and cashflows.
type CashflowStore interface {
	// NextBatchLabel allocates the next "VIR{n}" label.
	NextBatchLabel(ctx context.Context) (string, error)
	SaveBatch(ctx context.Context, batch *CashflowBatch) error
	SaveCashflow(ctx context.Context, cashflow *Cashflow) error
	Cashflows(ctx context.Context, ids []string) ([]*Cashflow, error)

	// CashflowsOfBatch returns the batch's cashflows, optionally filtered
	// by status.
	CashflowsOfBatch(ctx context.Context, batchID string, status CashflowStatus) ([]*Cashflow, error)

	// UpdateCashflowStatus transitions cashflows from one status to another
	// atomically. Cashflows not in the expected status fail the call.
	UpdateCashflowStatus(ctx context.Context, ids []string, from, to CashflowStatus) error
}

// InvoiceStore persists invoices and allocates reference numbers.
type InvoiceStore interface {
	SaveInvoice(ctx context.Context, invoice *Invoice) error
	Invoices(ctx context.Context, bankAccountID string) ([]*Invoice, error)

	// NextReference allocates the next reference for the named scheme and
	// year ("F240000001", ...). Implementations MUST hold an exclusive lock
	// around read-increment-persist: this is the single serialization point
	// of the whole engine, and it is what keeps references gapless per year
	// under concurrent batch runs.
	NextReference(ctx context.Context, scheme string, year int) (string, error)
}

// =============================================================================
// STORE - the full contract
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	VenueResolver
	BookingStore
	EventStore
	PricingStore
	RuleStore
	IncidentStore
	CashflowStore
	InvoiceStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction rolls back; no partial invoice or cashflow is ever
	// observable.
	WithTx(ctx context.Context, fn func(Store) error) error
}
