/*
selector.go - Rule election and the cumulative revenue ledger

PURPOSE:
  For a single booking, evaluated in ValueDate order within its pricing
  point's civil-year bucket, compute the cumulative physical revenue, filter
  the catalog to active+relevant rules, and elect exactly one.

ELECTION POLICY:
  1. A matching custom rule wins outright.
  2. The above-threshold book rule wins unconditionally when relevant, even
     when its computed amount is NOT the minimum (explicit non-minimum
     tie-break).
  3. Otherwise the relevant rule with the MINIMUM applied amount wins - the
     most conservative reimbursement. Ties break by catalog order, which is
     stable.

CUMULATIVE ORDERING CONVENTION:
  The running total is incremented with the current booking BEFORE the rules
  are evaluated for that same booking: thresholds see the POST-increment
  cumulative value. This matches the reference behavior and is pinned by a
  dedicated regression test; do not "fix" it to the exclude-self variant.

SEE ALSO:
  - rules.go: the catalog
  - pricing.go: the persisted path, which queries revenue from the store
*/
package finance

import (
	"fmt"
)

// AppliedReimbursement pairs an elected rule with its computed amount.
// Transient: produced during evaluation, never persisted.
type AppliedReimbursement struct {
	Rule   ReimbursementRule
	Amount Cents // positive: the reimbursed magnitude
}

// BookingReimbursement is the legacy batch-evaluation result: one booking,
// its elected rule and the reimbursed amount.
type BookingReimbursement struct {
	Booking *Booking
	Rule    ReimbursementRule
	Amount  Cents
}

// ElectRule picks the single applicable rule for a booking. cumulative is the
// pricing point's physical revenue for the civil year, in cents, including
// the booking itself (post-increment convention).
//
// An empty relevant set is a programming error: the catalog's base rules
// cover every booking class.
func ElectRule(b *Booking, finder *CustomRuleFinder, cumulative Cents) (AppliedReimbursement, error) {
	if custom := finder.Get(b); custom != nil {
		return AppliedReimbursement{Rule: custom, Amount: custom.Apply(b)}, nil
	}

	elected := ReimbursementRule(nil)
	var electedAmount Cents
	for _, rule := range RegularRules {
		if !rule.IsActive(b) || !rule.IsRelevant(b, cumulative) {
			continue
		}
		if rule == RuleBookAbove20k {
			// Books above the threshold keep their own rate, whatever the
			// generic tier would pay.
			return AppliedReimbursement{Rule: rule, Amount: rule.Apply(b)}, nil
		}
		amount := rule.Apply(b)
		if elected == nil || amount < electedAmount {
			elected = rule
			electedAmount = amount
		}
	}
	if elected == nil {
		return AppliedReimbursement{}, fmt.Errorf("booking %s (class %s): %w", b.ID, b.Class(), ErrNoRuleFound)
	}
	return AppliedReimbursement{Rule: elected, Amount: electedAmount}, nil
}

// =============================================================================
// REVENUE LEDGER - cumulative physical revenue per (pricing point, year)
// =============================================================================

// RevenueLedger accumulates physical revenue per (pricing point, civil year).
// It is scoped to one batch evaluation; never promote it to process-wide
// state.
type RevenueLedger struct {
	totals map[revenueKey]Cents
}

type revenueKey struct {
	PricingPointID string
	Year           int
}

func NewRevenueLedger() *RevenueLedger {
	return &RevenueLedger{totals: make(map[revenueKey]Cents)}
}

// Add records a booking's contribution and returns the post-increment
// cumulative value for its bucket. Only bookings the physical-reimbursement
// rule considers relevant contribute: digital exclusions, books and
// collective bookings do not move the degressive thresholds.
func (l *RevenueLedger) Add(pricingPointID string, b *Booking) Cents {
	k := revenueKey{PricingPointID: pricingPointID, Year: b.DateCreated.Year()}
	if RulePhysicalOffers.IsRelevant(b, 0) {
		l.totals[k] += b.TotalCents()
	}
	return l.totals[k]
}

// Current returns the cumulative value without recording anything.
func (l *RevenueLedger) Current(pricingPointID string, year int) Cents {
	return l.totals[revenueKey{PricingPointID: pricingPointID, Year: year}]
}

// FindAllBookingReimbursements evaluates a stream of bookings, in ValueDate
// order, that share a pricing point. The running total is threaded through a
// ledger owned by this call.
//
// This is the legacy evaluation path: it computes but does not persist.
// pricing.go is the persisted equivalent for single events.
func FindAllBookingReimbursements(pricingPointID string, bookings []*Booking, finder *CustomRuleFinder) ([]BookingReimbursement, error) {
	ledger := NewRevenueLedger()
	out := make([]BookingReimbursement, 0, len(bookings))
	for _, b := range bookings {
		cumulative := ledger.Add(pricingPointID, b)
		applied, err := ElectRule(b, finder, cumulative)
		if err != nil {
			return nil, err
		}
		out = append(out, BookingReimbursement{Booking: b, Rule: applied.Rule, Amount: applied.Amount})
	}
	return out, nil
}
