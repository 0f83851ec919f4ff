/*
invoice.go - Invoice generation from reviewed cashflows

PURPOSE:
  Folds one bank account's UNDER_REVIEW cashflows into an invoice whose lines
  aggregate the underlying pricing lines by (rule group, rate), with incident
  corrections reported on separate lines.

REFERENCE NUMBERS:
  References are gapless per civil year ("F240000001", "F240000002", ...).
  The eligibility check runs BEFORE the reference is allocated, so an aborted
  generation never burns a number. The allocation itself is serialized by the
  store (see InvoiceStore.NextReference).

CASCADE:
  Generating an invoice atomically advances the whole chain:
    cashflows  UNDER_REVIEW -> ACCEPTED
    pricings   PROCESSED    -> INVOICED
    bookings                -> REIMBURSED (cancelled bookings excepted)

SEE ALSO:
  - cashflow.go: how cashflows reach UNDER_REVIEW
*/
package finance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// Reference schemes. Each scheme has its own gapless sequence per year.
	SchemeInvoiceReference   = "invoice.reference"
	SchemeDebitNoteReference = "debit-note.reference"

	// Invoice line labels.
	LineLabelBookings  = "Réservations"
	LineLabelIncidents = "Incidents"
)

// GenerateInvoice builds and persists the invoice summarizing the given
// UNDER_REVIEW cashflows of one bank account. isDebitNote selects the
// positive-direction document (the offerer owes the marketplace).
func (e *Engine) GenerateInvoice(ctx context.Context, bankAccountID string, cashflowIDs []string, isDebitNote bool) (*Invoice, error) {
	cashflows, err := e.store.Cashflows(ctx, cashflowIDs)
	if err != nil {
		return nil, err
	}
	if len(cashflows) != len(cashflowIDs) {
		return nil, fmt.Errorf("bank account %s: %w", bankAccountID, ErrCashflowNotFound)
	}
	var total Cents
	var pricingIDs []string
	for _, cf := range cashflows {
		if cf.BankAccountID != bankAccountID {
			return nil, fmt.Errorf("cashflow %s belongs to another bank account: %w", cf.ID, ErrInvalidCashflowStatus)
		}
		if cf.Status != CashflowUnderReview {
			return nil, fmt.Errorf("cashflow %s has status %s: %w", cf.ID, cf.Status, ErrInvalidCashflowStatus)
		}
		total += cf.Amount
		pricingIDs = append(pricingIDs, cf.PricingIDs...)
	}

	pricings, err := e.store.Pricings(ctx, pricingIDs)
	if err != nil {
		return nil, err
	}
	lines, err := e.buildLines(ctx, pricings)
	if err != nil {
		return nil, err
	}
	// Eligibility gate BEFORE the reference is allocated: an empty invoice
	// must never consume a gapless number.
	if len(lines) == 0 {
		return nil, fmt.Errorf("bank account %s: %w", bankAccountID, ErrNoInvoiceToGenerate)
	}

	invoice := &Invoice{
		ID:            uuid.NewString(),
		Token:         uuid.NewString(),
		BankAccountID: bankAccountID,
		Date:          e.now(),
		Amount:        total,
		IsDebitNote:   isDebitNote,
		CashflowIDs:   cashflowIDs,
		Lines:         lines,
	}
	scheme := SchemeInvoiceReference
	if isDebitNote {
		scheme = SchemeDebitNoteReference
	}

	var bookingIDs []string
	for _, p := range pricings {
		if p.BookingID != "" {
			bookingIDs = append(bookingIDs, p.BookingID)
		}
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		reference, err := s.NextReference(ctx, scheme, invoice.Date.Year())
		if err != nil {
			return err
		}
		invoice.Reference = reference
		if err := s.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := s.UpdateCashflowStatus(ctx, cashflowIDs, CashflowUnderReview, CashflowAccepted); err != nil {
			return err
		}
		if err := s.UpdatePricingStatus(ctx, pricingIDs, PricingProcessed, PricingInvoiced, ReasonGenerateInvoice); err != nil {
			return err
		}
		return s.MarkBookingsReimbursed(ctx, bookingIDs)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("generated invoice",
		"reference", invoice.Reference, "bankAccount", bankAccountID,
		"amount", int64(invoice.Amount), "lines", len(invoice.Lines), "debitNote", isDebitNote)
	return invoice, nil
}

// =============================================================================
// LINE AGGREGATION
// =============================================================================

// lineKey identifies one invoice line: booking vs incident, rule group, and
// the rate. Amount-based custom rules have no intrinsic rate so they key on
// the rule itself and get an effective rate computed from the aggregates.
type lineKey struct {
	label      string
	groupLabel string
	rate       string
}

type lineAgg struct {
	group       RuleGroup
	rate        decimal.Decimal
	hasRate     bool
	reimbursed  Cents
	contributed Cents
	fullValue   Cents // negated revenue lines, for effective-rate computation
}

func (e *Engine) buildLines(ctx context.Context, pricings []*Pricing) ([]InvoiceLine, error) {
	aggs := make(map[lineKey]*lineAgg)
	for _, pricing := range pricings {
		group, rate, hasRate, err := e.lineRuleInfo(ctx, pricing)
		if err != nil {
			return nil, err
		}
		label := LineLabelBookings
		if pricing.BookingID == "" {
			label = LineLabelIncidents
		}
		key := lineKey{label: label, groupLabel: group.Label}
		if hasRate {
			key.rate = rate.String()
		} else {
			key.rate = "custom:" + pricing.CustomRuleID
		}
		agg := aggs[key]
		if agg == nil {
			agg = &lineAgg{group: group, rate: rate, hasRate: hasRate}
			aggs[key] = agg
		}
		for _, line := range pricing.Lines {
			switch line.Category {
			case CategoryOffererRevenue, CategoryCommercialGesture:
				agg.reimbursed += line.Amount
				agg.fullValue -= line.Amount
			case CategoryOffererContribution:
				agg.contributed += line.Amount
			}
		}
	}

	lines := make([]InvoiceLine, 0, len(aggs))
	for key, agg := range aggs {
		rate := agg.rate
		if !agg.hasRate {
			rate = effectiveRate(agg.reimbursed+agg.contributed, agg.fullValue)
		}
		lines = append(lines, InvoiceLine{
			Label:              key.label,
			Group:              agg.group,
			ReimbursedAmount:   agg.reimbursed,
			ContributionAmount: agg.contributed,
			Rate:               rate,
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Group.Position != lines[j].Group.Position {
			return lines[i].Group.Position < lines[j].Group.Position
		}
		if lines[i].Label != lines[j].Label {
			return lines[i].Label < lines[j].Label
		}
		return lines[i].Rate.LessThan(lines[j].Rate)
	})
	return lines, nil
}

// lineRuleInfo resolves the rule group and rate a pricing aggregates under.
// hasRate is false for amount-based custom rules.
func (e *Engine) lineRuleInfo(ctx context.Context, pricing *Pricing) (RuleGroup, decimal.Decimal, bool, error) {
	if pricing.CustomRuleID != "" {
		rule, err := e.store.GetCustomRule(ctx, pricing.CustomRuleID)
		if err != nil {
			return RuleGroup{}, decimal.Zero, false, err
		}
		if rule == nil {
			return RuleGroup{}, decimal.Zero, false, fmt.Errorf("custom rule %s: %w", pricing.CustomRuleID, ErrRuleNotFound)
		}
		if rule.CustomRate != nil {
			return GroupCustom, *rule.CustomRate, true, nil
		}
		return GroupCustom, decimal.Zero, false, nil
	}
	rule, err := FindRuleByDescription(pricing.StandardRule)
	if err != nil {
		return RuleGroup{}, decimal.Zero, false, fmt.Errorf("pricing %s: %w", pricing.ID, err)
	}
	return rule.Group(), rule.Rate(), true, nil
}

// effectiveRate derives the rate actually granted by an amount-based custom
// rule: paid amount over full booking value, 4 decimal places.
func effectiveRate(paid, fullValue Cents) decimal.Decimal {
	if fullValue == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(-paid)).
		Div(decimal.NewFromInt(int64(fullValue))).
		Round(4)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// InvoicesOf lists a bank account's invoices.
func (e *Engine) InvoicesOf(ctx context.Context, bankAccountID string) ([]*Invoice, error) {
	return e.store.Invoices(ctx, bankAccountID)
}
