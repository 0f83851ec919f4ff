/*
custom.go - Custom reimbursement rules

PURPOSE:
  Some offers or offerers negotiate a reimbursement that overrides the
  standard catalog: either an explicit rate, or a fixed amount per booked
  unit. A custom rule applies within a half-open timespan; overlapping rules
  for the same target are rejected at creation time by the back office, so at
  most one rule is active for a booking.

SCOPE:
  A rule targets exactly one offer OR one offerer, never both. An offerer
  rule may be narrowed to a set of subcategories.

SEE ALSO:
  - rules.go: the standard catalog these rules override
  - selector.go: a matching custom rule short-circuits election
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomRule overrides the standard catalog for one offer or one offerer.
// Exactly one of Amount and CustomRate is set.
type CustomRule struct {
	ID        string
	OfferID   string // set for offer-scoped rules
	OffererID string // set for offerer-scoped rules
	// Subcategories narrows an offerer-scoped rule. Empty = all offers.
	Subcategories []Subcategory

	// Amount is a fixed reimbursement per booked unit, in cents.
	Amount *Cents
	// CustomRate is a rate in [0, 1].
	CustomRate *decimal.Decimal

	// Timespan: lower bound inclusive and required, upper bound exclusive
	// and optional.
	Start time.Time
	End   *time.Time
}

var _ ReimbursementRule = (*CustomRule)(nil)

// Description is empty: a pricing priced under a custom rule records the
// rule's ID, not a description.
func (r *CustomRule) Description() string { return "" }

func (r *CustomRule) Group() RuleGroup { return GroupCustom }

// Rate returns the explicit rate, or zero for fixed-amount rules (the
// invoice step computes an effective rate from the amounts instead).
func (r *CustomRule) Rate() decimal.Decimal {
	if r.CustomRate != nil {
		return *r.CustomRate
	}
	return decimal.Zero
}

// IsActive checks the timespan against the booking's use date.
func (r *CustomRule) IsActive(b *Booking) bool {
	if b.DateUsed.Before(r.Start) {
		return false
	}
	return r.End == nil || b.DateUsed.Before(*r.End)
}

// IsRelevant matches the rule's target. Cumulative revenue is irrelevant for
// custom rules.
func (r *CustomRule) IsRelevant(b *Booking, _ Cents) bool {
	if r.OfferID != "" && b.OfferID == r.OfferID {
		return true
	}
	if r.OffererID == "" || b.OffererID != r.OffererID {
		return false
	}
	if len(r.Subcategories) == 0 {
		return true
	}
	for _, sub := range r.Subcategories {
		if b.Subcategory == sub {
			return true
		}
	}
	return false
}

func (r *CustomRule) Apply(b *Booking) Cents {
	if r.Amount != nil {
		return Cents(b.Quantity) * *r.Amount
	}
	return r.ApplyTo(b, b.TotalCents())
}

func (r *CustomRule) ApplyTo(b *Booking, total Cents) Cents {
	if r.Amount != nil {
		return Cents(b.Quantity) * *r.Amount
	}
	return ApplyRate(total, *r.CustomRate)
}

// =============================================================================
// CUSTOM RULE FINDER
// =============================================================================

// CustomRuleFinder resolves the custom rule applicable to a booking, if any.
// It is loaded once per pricing run from the store; lookups are in-memory.
type CustomRuleFinder struct {
	rules []*CustomRule
}

func NewCustomRuleFinder(rules []*CustomRule) *CustomRuleFinder {
	return &CustomRuleFinder{rules: rules}
}

// Get returns the active, relevant custom rule for the booking, or nil.
// Offer-scoped rules take precedence over offerer-scoped ones.
func (f *CustomRuleFinder) Get(b *Booking) *CustomRule {
	if f == nil {
		return nil
	}
	var offererMatch *CustomRule
	for _, rule := range f.rules {
		if !rule.IsActive(b) || !rule.IsRelevant(b, 0) {
			continue
		}
		if rule.OfferID != "" {
			return rule
		}
		if offererMatch == nil {
			offererMatch = rule
		}
	}
	return offererMatch
}
