/*
rules.go - The reimbursement rule catalog

PURPOSE:
  Defines the closed, compile-time catalog of reimbursement rules. Each rule
  is a value with a rate, a rule group, an optional validity window, and a
  relevance predicate over (booking, cumulative year revenue). Selection
  logic (selector.go) iterates this static list; no dynamic registration.

RULE FAMILIES:
  - Base rules: digital exclusion (0%), physical full reimbursement (100%),
    collective full reimbursement (100%). One of these matches every booking,
    so rule election can never come up empty.
  - Degressive rules: once a pricing point's cumulative physical revenue for
    the civil year crosses thresholds, the rate degrades. Two mutually
    exclusive sets exist: the legacy set (Sept 2019 - Sept 2021: 95/85/70)
    and the current set (since Sept 2021: 95/92/90). Validity windows keep
    them from ever being combined.
  - Book rules: books keep 100% up to the first threshold and 95% above it,
    whatever the generic tier says. The above-threshold book rule wins
    election unconditionally (see selector.go).
  - Historical ceiling: the pre-2019 flat 0% above 20 000 EUR, kept so that
    old pricings can still be re-evaluated and reported.

THRESHOLD CONVENTION:
  Tier boundaries are lower-exclusive, upper-inclusive: a cumulative revenue
  of exactly 20 000 EUR still belongs to the lower tier. Regression tests pin
  both edges of every tier.

VALIDITY CONVENTION:
  validFrom < booking.DateCreated < validUntil, strict on both ends; a zero
  time means unbounded. A booking created exactly at a boundary does not
  activate the rule.

SEE ALSO:
  - selector.go: rule election and the cumulative revenue ledger
  - custom.go: per-offer/per-offerer override rules
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REVENUE THRESHOLDS AND RULE-SET DATES
// =============================================================================

const (
	// Cumulative-revenue tier boundaries, in cents.
	RevenueTier1 Cents = 20_000_00
	RevenueTier2 Cents = 40_000_00
	RevenueTier3 Cents = 150_000_00
)

var (
	// DegressiveRatesStart is when the legacy degressive set replaced the
	// flat ceiling rule.
	DegressiveRatesStart = time.Date(2019, time.September, 1, 0, 0, 0, 0, time.UTC)
	// CurrentRatesStart is when the current degressive set replaced the
	// legacy one. The two sets are never combined.
	CurrentRatesStart = time.Date(2021, time.September, 1, 0, 0, 0, 0, time.UTC)
)

// =============================================================================
// RULE CONTRACT
// =============================================================================

// ReimbursementRule is the contract every rule in the catalog satisfies.
// Custom rules (custom.go) satisfy it too.
type ReimbursementRule interface {
	// Description is the rule's stable, human-readable identity. It is what
	// a Pricing records and what reporting displays.
	Description() string
	Group() RuleGroup
	Rate() decimal.Decimal

	// IsActive checks the rule's validity window against the booking.
	IsActive(b *Booking) bool
	// IsRelevant checks applicability. cumulative is the pricing point's
	// physical revenue for the civil year, in cents, including the booking
	// under evaluation (see selector.go for the ordering convention).
	IsRelevant(b *Booking, cumulative Cents) bool

	// Apply computes the reimbursed amount (positive cents) for the booking.
	Apply(b *Booking) Cents
	// ApplyTo computes the reimbursed amount for an overridden total, used
	// when an incident changes the booking's effective price.
	ApplyTo(b *Booking, total Cents) Cents
}

// =============================================================================
// STANDARD RULES - rate-based catalog entries
// =============================================================================

// standardRule is the single concrete shape behind every catalog entry.
// The catalog is closed; behavior differences live in the relevance
// predicate, not in subtypes.
type standardRule struct {
	description string
	group       RuleGroup
	rate        decimal.Decimal
	validFrom   time.Time // zero = unbounded
	validUntil  time.Time // zero = unbounded
	relevant    func(b *Booking, cumulative Cents) bool
}

func (r *standardRule) Description() string   { return r.description }
func (r *standardRule) Group() RuleGroup      { return r.group }
func (r *standardRule) Rate() decimal.Decimal { return r.rate }

func (r *standardRule) IsActive(b *Booking) bool {
	if !r.validFrom.IsZero() && !r.validFrom.Before(b.DateCreated) {
		return false
	}
	if !r.validUntil.IsZero() && !b.DateCreated.Before(r.validUntil) {
		return false
	}
	return true
}

func (r *standardRule) IsRelevant(b *Booking, cumulative Cents) bool {
	return r.relevant(b, cumulative)
}

func (r *standardRule) Apply(b *Booking) Cents {
	return r.ApplyTo(b, b.TotalCents())
}

func (r *standardRule) ApplyTo(_ *Booking, total Cents) Cents {
	return ApplyRate(total, r.rate)
}

// =============================================================================
// RELEVANCE PREDICATES
// =============================================================================

func isStandardClass(b *Booking, _ Cents) bool { return b.Class() == ClassStandard }
func isNotReimbursed(b *Booking, _ Cents) bool { return b.Class() == ClassNotReimbursed }
func isCollective(b *Booking, _ Cents) bool    { return b.Class() == ClassCollective }

func standardBetween(lower, upper Cents) func(*Booking, Cents) bool {
	return func(b *Booking, cumulative Cents) bool {
		return b.Class() == ClassStandard && lower < cumulative && cumulative <= upper
	}
}

func standardAbove(lower Cents) func(*Booking, Cents) bool {
	return func(b *Booking, cumulative Cents) bool {
		return b.Class() == ClassStandard && cumulative > lower
	}
}

// =============================================================================
// THE CATALOG
// =============================================================================

var (
	// RuleDigitalThings: no reimbursement for digital offers outside the
	// exception categories.
	RuleDigitalThings = &standardRule{
		description: "Pas de remboursement pour les offres digitales",
		group:       GroupNotReimbursed,
		rate:        decimal.Zero,
		relevant:    isNotReimbursed,
	}

	// RulePhysicalOffers: full reimbursement for physical offers (and the
	// digital card exceptions).
	RulePhysicalOffers = &standardRule{
		description: "Remboursement total pour les offres physiques",
		group:       GroupStandard,
		rate:        decimal.NewFromInt(1),
		relevant:    isStandardClass,
	}

	// RuleCollectiveOffers: collective bookings are always reimbursed in full.
	RuleCollectiveOffers = &standardRule{
		description: "Remboursement total pour les offres éducationnelles",
		group:       GroupStandard,
		rate:        decimal.NewFromInt(1),
		relevant:    isCollective,
	}

	// RuleLegacyCeiling: the historical flat 0% above 20 000 EUR, superseded
	// by the degressive sets. Kept for re-evaluation of old pricings.
	RuleLegacyCeiling = &standardRule{
		description: "Pas de remboursement au-dessus de 20 000 € par lieu (ancien barème)",
		group:       GroupDeprecated,
		rate:        decimal.Zero,
		validUntil:  DegressiveRatesStart,
		relevant:    standardAbove(RevenueTier1),
	}

	// Legacy degressive set (Sept 2019 - Sept 2021).
	RuleLegacyBetween20kAnd40k = &standardRule{
		description: "Remboursement à 95 % entre 20 000 € et 40 000 € par lieu (avant le 1er septembre 2021)",
		group:       GroupDeprecated,
		rate:        MustRate("0.95"),
		validFrom:   DegressiveRatesStart,
		validUntil:  CurrentRatesStart,
		relevant:    standardBetween(RevenueTier1, RevenueTier2),
	}
	RuleLegacyBetween40kAnd150k = &standardRule{
		description: "Remboursement à 85 % entre 40 000 € et 150 000 € par lieu (avant le 1er septembre 2021)",
		group:       GroupDeprecated,
		rate:        MustRate("0.85"),
		validFrom:   DegressiveRatesStart,
		validUntil:  CurrentRatesStart,
		relevant:    standardBetween(RevenueTier2, RevenueTier3),
	}
	RuleLegacyAbove150k = &standardRule{
		description: "Remboursement à 70 % au-dessus de 150 000 € par lieu (avant le 1er septembre 2021)",
		group:       GroupDeprecated,
		rate:        MustRate("0.70"),
		validFrom:   DegressiveRatesStart,
		validUntil:  CurrentRatesStart,
		relevant:    standardAbove(RevenueTier3),
	}

	// Current degressive set (since Sept 2021).
	RuleBetween20kAnd40k = &standardRule{
		description: "Remboursement à 95 % entre 20 000 € et 40 000 € par lieu",
		group:       GroupStandard,
		rate:        MustRate("0.95"),
		validFrom:   CurrentRatesStart,
		relevant:    standardBetween(RevenueTier1, RevenueTier2),
	}
	RuleBetween40kAnd150k = &standardRule{
		description: "Remboursement à 92 % entre 40 000 € et 150 000 € par lieu",
		group:       GroupStandard,
		rate:        MustRate("0.92"),
		validFrom:   CurrentRatesStart,
		relevant:    standardBetween(RevenueTier2, RevenueTier3),
	}
	RuleAbove150k = &standardRule{
		description: "Remboursement à 90 % au-dessus de 150 000 € par lieu",
		group:       GroupStandard,
		rate:        MustRate("0.90"),
		validFrom:   CurrentRatesStart,
		relevant:    standardAbove(RevenueTier3),
	}

	// Book rules. The above-threshold one always wins election when relevant.
	RuleBookBelow20k = &standardRule{
		description: "Remboursement total des livres jusqu'à 20 000 € par lieu",
		group:       GroupBook,
		rate:        decimal.NewFromInt(1),
		relevant: func(b *Booking, cumulative Cents) bool {
			return b.Class() == ClassBook && cumulative <= RevenueTier1
		},
	}
	RuleBookAbove20k = &standardRule{
		description: "Remboursement à 95 % des livres au-delà de 20 000 € par lieu",
		group:       GroupBook,
		rate:        MustRate("0.95"),
		relevant: func(b *Booking, cumulative Cents) bool {
			return b.Class() == ClassBook && cumulative > RevenueTier1
		},
	}

	// RuleCommercialGesture labels gesture pricings. It is not electable and
	// therefore not part of RegularRules.
	RuleCommercialGesture = &standardRule{
		description: "Geste commercial",
		group:       GroupCustom,
		rate:        decimal.NewFromInt(1),
		relevant:    func(*Booking, Cents) bool { return false },
	}
)

// RegularRules is the election catalog. Order is stable and breaks ties when
// two relevant rules compute the same amount.
var RegularRules = []ReimbursementRule{
	RuleDigitalThings,
	RulePhysicalOffers,
	RuleCollectiveOffers,
	RuleLegacyCeiling,
	RuleLegacyBetween20kAnd40k,
	RuleLegacyBetween40kAnd150k,
	RuleLegacyAbove150k,
	RuleBetween20kAnd40k,
	RuleBetween40kAnd150k,
	RuleAbove150k,
	RuleBookBelow20k,
	RuleBookAbove20k,
}

// FindRuleByDescription resolves a catalog rule from the reference stored on
// a pricing. Custom rules are resolved by ID through the store instead.
func FindRuleByDescription(description string) (ReimbursementRule, error) {
	if description == RuleCommercialGesture.Description() {
		return RuleCommercialGesture, nil
	}
	for _, rule := range RegularRules {
		if rule.Description() == description {
			return rule, nil
		}
	}
	return nil, ErrRuleNotFound
}
