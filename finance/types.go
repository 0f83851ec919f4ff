/*
Package finance computes how much an offerer must be reimbursed for each
booking, batches those amounts into periodic bank transfers (cashflows), and
folds cashflows into invoices.

PURPOSE:
  This package is the reimbursement-rule evaluation and pricing core. Given a
  finance event (a booking was used, or a correction incident was validated),
  it elects the single applicable reimbursement rule from a prioritized,
  time-bounded, cumulative-threshold-aware catalog and computes a cent-exact
  signed amount split into categorized lines.

KEY CONCEPTS IN THIS FILE (types.go):
  - Booking: read-only view of a purchase (the engine never mutates offers)
  - FinanceEvent: a discrete trigger for pricing, with a motive and status
  - Pricing: the persisted monetary result, with categorized lines
  - Cashflow: a batched bank transfer grouping pricings for one bank account
  - Invoice: a billing document summarizing cashflow lines by rate and group

DESIGN PRINCIPLES:
  1. Immutability: a pricing's amount never changes once VALIDATED; the only
     allowed mutation is an explicit status transition, and corrections are
     expressed as NEW pricings (reversal + new price)
  2. Precision: integer cents everywhere, decimals only at rule boundaries
  3. Auditability: every status transition writes a PricingLog entry

SIGN CONVENTION:
  Negative amounts are outgoing: money the marketplace owes the offerer.
  A normal booking reimbursement is therefore negative. A positive cashflow
  total means the offerer owes the marketplace (debit-note direction).

SEE ALSO:
  - rules.go: the reimbursement rule catalog
  - pricing.go: event pricing
  - cashflow.go, invoice.go: downstream batching
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BOOKING - Read-only view of the purchase
// =============================================================================

// BookingStatus is the subset of the booking lifecycle this engine reads and
// (once invoiced) advances.
type BookingStatus string

const (
	BookingUsed       BookingStatus = "used"
	BookingCancelled  BookingStatus = "cancelled"
	BookingReimbursed BookingStatus = "reimbursed"
)

// Subcategory identifies the offer's category. Only the few categories that
// change reimbursement behavior are named; everything else is opaque.
type Subcategory string

const (
	SubcategoryPaperBook   Subcategory = "paper-book"
	SubcategoryDigitalBook Subcategory = "digital-book"
	SubcategoryCinemaCard  Subcategory = "cinema-card"
	SubcategoryMuseumCard  Subcategory = "museum-card"
)

// ReimbursementClass is the base regime an offer falls into, derived from the
// digital flag and the subcategory. It drives rule relevance.
type ReimbursementClass string

const (
	// ClassStandard: physical offers, and digital offers in the card
	// exception categories. Eligible for full or degressive reimbursement.
	ClassStandard ReimbursementClass = "standard"
	// ClassBook: book offers, paper or digital. Their own rate schedule.
	ClassBook ReimbursementClass = "book"
	// ClassNotReimbursed: digital offers outside every exception category.
	ClassNotReimbursed ReimbursementClass = "not-reimbursed"
	// ClassCollective: collective (group education) bookings, reimbursed in
	// full and excluded from cumulative revenue.
	ClassCollective ReimbursementClass = "collective"
)

// Booking is the read model of a purchase. The engine reads it, prices it,
// and eventually marks it reimbursed; it never edits its monetary fields.
type Booking struct {
	ID          string
	Quantity    int64
	UnitPrice   decimal.Decimal // euros, 2 fractional digits
	DateCreated time.Time
	DateUsed    time.Time
	Status      BookingStatus
	VenueID     string
	OffererID   string
	OfferID     string
	Digital     bool
	Subcategory Subcategory
	Collective  bool
}

// TotalEuros is the booking's total price (unit price times quantity).
func (b *Booking) TotalEuros() decimal.Decimal {
	return b.UnitPrice.Mul(decimal.NewFromInt(b.Quantity))
}

// TotalCents is the total price in euro cents.
func (b *Booking) TotalCents() Cents {
	return CentsFromEuros(b.TotalEuros())
}

// Class derives the booking's reimbursement class.
func (b *Booking) Class() ReimbursementClass {
	if b.Collective {
		return ClassCollective
	}
	switch b.Subcategory {
	case SubcategoryPaperBook, SubcategoryDigitalBook:
		return ClassBook
	}
	if !b.Digital {
		return ClassStandard
	}
	switch b.Subcategory {
	case SubcategoryCinemaCard, SubcategoryMuseumCard:
		// Digital sales of physical access cards are reimbursed like
		// physical offers.
		return ClassStandard
	}
	return ClassNotReimbursed
}

// =============================================================================
// FINANCE EVENT - A discrete trigger for pricing
// =============================================================================

type FinanceEventStatus string

const (
	// EventPending: the booking's venue has no pricing point yet.
	EventPending FinanceEventStatus = "pending"
	// EventReady: has a pricing point, ready to be priced.
	EventReady FinanceEventStatus = "ready"
	EventPriced FinanceEventStatus = "priced"
	// EventCancelled: the booking was marked unused after the event was created.
	EventCancelled      FinanceEventStatus = "cancelled"
	EventNotToBePriced  FinanceEventStatus = "not-to-be-priced"
)

type FinanceEventMotive string

const (
	MotiveBookingUsed                  FinanceEventMotive = "booking-used"
	MotiveBookingUsedAfterCancellation FinanceEventMotive = "booking-used-after-cancellation"
	MotiveBookingUnused                FinanceEventMotive = "booking-unused"
	MotiveBookingCancelledAfterUse     FinanceEventMotive = "booking-cancelled-after-use"
	MotiveIncidentReversal             FinanceEventMotive = "incident-reversal-of-original-event"
	MotiveIncidentNewPrice             FinanceEventMotive = "incident-new-price"
	MotiveIncidentCommercialGesture    FinanceEventMotive = "incident-commercial-gesture"
)

// FinanceEvent triggers exactly one pricing. It references either a booking
// or an incident, never both.
type FinanceEvent struct {
	ID         string
	Motive     FinanceEventMotive
	Status     FinanceEventStatus
	BookingID  string // empty for incident events
	IncidentID string // empty for booking events
	VenueID    string
	// PricingPointID is resolved from the venue when the event is added.
	// Empty while the venue has no pricing point (status stays pending).
	PricingPointID string
	// ValueDate is the booking's use date, denormalized: it orders pricing
	// and anchors the civil-year revenue bucket and cashflow cutoffs.
	ValueDate    time.Time
	CreationDate time.Time
}

// =============================================================================
// PRICING - The persisted monetary result
// =============================================================================

type PricingStatus string

const (
	PricingValidated PricingStatus = "validated" // will join the next cashflow
	PricingCancelled PricingStatus = "cancelled" // frozen for audit, never paid
	PricingProcessed PricingStatus = "processed" // has a cashflow
	PricingInvoiced  PricingStatus = "invoiced"  // cashflow was invoiced
)

type PricingLineCategory string

const (
	CategoryOffererRevenue      PricingLineCategory = "offerer-revenue"
	CategoryOffererContribution PricingLineCategory = "offerer-contribution"
	CategoryCommercialGesture   PricingLineCategory = "commercial-gesture"
)

// PricingLine is one categorized component of a pricing amount.
// Invariant: sum of a pricing's line amounts equals the pricing amount.
// Contribution lines are always >= 0; revenue lines carry the
// reimbursement sign.
type PricingLine struct {
	Category PricingLineCategory
	Amount   Cents
}

// Pricing is the computed, persisted result of applying a reimbursement rule
// to a finance event. Owned by exactly one event.
type Pricing struct {
	ID             string
	EventID        string
	BookingID      string // empty for incident-derived pricings
	Status         PricingStatus
	VenueID        string
	PricingPointID string
	ValueDate      time.Time
	CreationDate   time.Time

	// Amount is signed cents; negative = reimbursement owed to the offerer.
	Amount Cents
	// Revenue is the pricing point's cumulative year revenue in cents as of
	// ValueDate, INCLUDING this pricing's booking. Never decreases across a
	// pricing point's pricings within a year.
	Revenue Cents

	// StandardRule is the catalog rule's description, or empty when a custom
	// rule applied (then CustomRuleID is set). Exactly one of the two.
	StandardRule string
	CustomRuleID string

	Lines []PricingLine
}

// LineTotal sums the line amounts. Must equal Amount before persisting.
func (p *Pricing) LineTotal() Cents {
	var total Cents
	for _, line := range p.Lines {
		total += line.Amount
	}
	return total
}

// PricingLogReason explains a status transition.
type PricingLogReason string

const (
	ReasonPriceEvent       PricingLogReason = "price event"
	ReasonMarkAsUnused     PricingLogReason = "mark as unused"
	ReasonGenerateCashflow PricingLogReason = "generate cashflow"
	ReasonGenerateInvoice  PricingLogReason = "generate invoice"
)

// PricingLog records a pricing status transition for audit.
type PricingLog struct {
	PricingID    string
	Timestamp    time.Time
	StatusBefore PricingStatus
	StatusAfter  PricingStatus
	Reason       PricingLogReason
}

// =============================================================================
// CASHFLOW - A batched bank transfer
// =============================================================================

type CashflowStatus string

const (
	// CashflowPending: created, waiting to be sent to the accounting system.
	CashflowPending CashflowStatus = "pending"
	// CashflowUnderReview: sent for review; eligible for invoicing.
	CashflowUnderReview CashflowStatus = "under-review"
	// CashflowAccepted: invoiced and handed to the bank.
	CashflowAccepted CashflowStatus = "accepted"
)

// Cashflow groups the pricings of one bank account within one batch.
// Invariant: Amount equals the sum of its pricings' amounts.
type Cashflow struct {
	ID            string
	BatchID       string
	BankAccountID string
	Status        CashflowStatus
	Amount        Cents
	PricingIDs    []string
	CreationDate  time.Time
}

// CashflowBatch is one run of cashflow generation up to a cutoff.
type CashflowBatch struct {
	ID           string
	Label        string // "VIR1", "VIR2", ...
	Cutoff       time.Time
	CreationDate time.Time
	CashflowIDs  []string
}

// =============================================================================
// INVOICE - A billing document
// =============================================================================

// RuleGroup is the small ordered catalog invoice lines aggregate under.
// Position defines display and aggregation order.
type RuleGroup struct {
	Label    string
	Position int
}

var (
	GroupStandard      = RuleGroup{Label: "Barème général", Position: 1}
	GroupBook          = RuleGroup{Label: "Barème livres", Position: 2}
	GroupNotReimbursed = RuleGroup{Label: "Barème non remboursé", Position: 3}
	GroupCustom        = RuleGroup{Label: "Barème dérogatoire", Position: 4}
	GroupDeprecated    = RuleGroup{Label: "Barème désuet", Position: 5}
)

// InvoiceLine aggregates pricing lines sharing (rate, rule group).
type InvoiceLine struct {
	Label string // "Réservations" or "Incidents"
	Group RuleGroup
	// ReimbursedAmount is the signed sum of revenue-category line amounts
	// (offerer revenue and commercial gestures) for this group.
	ReimbursedAmount Cents
	// ContributionAmount is the sum of contribution-category amounts, >= 0.
	ContributionAmount Cents
	Rate               decimal.Decimal
}

// Invoice summarizes the cashflows of one bank account within one batch.
// A debit note is the positive-direction variant: the offerer owes the
// marketplace.
type Invoice struct {
	ID            string
	Reference     string // gapless per year, e.g. "F240000001"
	Token         string
	BankAccountID string
	Date          time.Time
	Amount        Cents
	IsDebitNote   bool
	CashflowIDs   []string
	Lines         []InvoiceLine
}

// =============================================================================
// INCIDENT - Post-hoc correction of an already priced booking
// =============================================================================

type IncidentKind string

const (
	IncidentOverpayment       IncidentKind = "overpayment"
	IncidentCommercialGesture IncidentKind = "commercial-gesture"
)

type IncidentStatus string

const (
	IncidentCreated   IncidentStatus = "created"
	IncidentValidated IncidentStatus = "validated"
	IncidentCancelled IncidentStatus = "cancelled"
)

// BookingFinanceIncident corrects a booking's effective reimbursable total
// after it was priced. Validation creates new finance events (reversal +
// new price, or a commercial gesture); the original pricing is never edited.
type BookingFinanceIncident struct {
	ID        string
	Kind      IncidentKind
	Status    IncidentStatus
	BookingID string
	VenueID   string
	// NewTotalAmount is the corrected total in cents (overpayment), or the
	// gesture amount (commercial gesture).
	NewTotalAmount Cents
	CreationDate   time.Time
}

// =============================================================================
// BANKING - Venue resolution read models
// =============================================================================

// BankAccountLink links a venue to a bank account over a half-open timespan.
// The engine only reads links; managing them is the offerer back office's job.
type BankAccountLink struct {
	VenueID       string
	BankAccountID string
	Start         time.Time
	End           *time.Time // nil = still active
}

// ActiveAt reports whether the link covers the given instant.
func (l BankAccountLink) ActiveAt(at time.Time) bool {
	if at.Before(l.Start) {
		return false
	}
	return l.End == nil || at.Before(*l.End)
}
