/*
errors.go - Centralized error types for the finance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API handlers, batch jobs) match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Precondition errors - recoverable, the event/venue is retried later
  2. State-machine violations - programming errors, abort the transaction
  3. Empty-result errors - expected, named conditions
  4. Arithmetic invariant violations - fatal, never persisted

USAGE:
  if errors.Is(err, finance.ErrPricingPointNotFound) {
      // leave the event unpriced, retry at the next run
  }
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPricingPointNotFound is returned when a booking's venue has no
	// resolvable pricing point. The event stays unpriced and is retried once
	// the pricing point is configured. Recoverable, not a bug.
	ErrPricingPointNotFound = errors.New("venue has no pricing point")

	// ErrAlreadyPriced is returned when pricing an event that already has a
	// non-cancelled pricing. Pricing is a one-way transition per event;
	// corrections go through incident events, never a second pricing.
	ErrAlreadyPriced = errors.New("event is already priced")

	// ErrEventNotPriceable is returned when the event is not in READY status.
	ErrEventNotPriceable = errors.New("event is not ready to be priced")

	// ErrNoRuleFound indicates that no reimbursement rule matched a booking.
	// The catalog guarantees at least one base rule matches every booking, so
	// this is a programming error, never a user error.
	ErrNoRuleFound = errors.New("no reimbursement rule matches booking")

	// ErrRuleNotFound is returned when a pricing references a rule that is
	// not in the catalog (nor a stored custom rule).
	ErrRuleNotFound = errors.New("reimbursement rule not found")

	// ErrNoInvoiceToGenerate is returned when the requested cashflows would
	// produce an invoice with zero lines. No reference number is consumed.
	ErrNoInvoiceToGenerate = errors.New("no invoice to generate")

	// ErrEventNotFound is returned when a referenced finance event does not exist.
	ErrEventNotFound = errors.New("finance event not found")

	// ErrBookingNotFound is returned when a referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrCashflowNotFound is returned when a referenced cashflow does not exist.
	ErrCashflowNotFound = errors.New("cashflow not found")

	// ErrInvalidCashflowStatus is returned when an invoice is generated from
	// cashflows that are not UNDER_REVIEW, or a status transition is illegal.
	ErrInvalidCashflowStatus = errors.New("cashflow is not in an invoiceable status")

	// ErrInvalidPricingStatus is returned when a pricing operation requires a
	// status the pricing is not in, e.g. cancelling a non-VALIDATED pricing.
	ErrInvalidPricingStatus = errors.New("pricing is not in the required status")

	// ErrAmountMismatch is an arithmetic invariant violation: the sum of a
	// pricing's lines differs from its amount, or a cashflow total differs
	// from the sum of its pricings. Fatal; nothing is persisted.
	ErrAmountMismatch = errors.New("amount does not match sum of lines")

	// ErrIncidentNotValidated is returned when pricing events are requested
	// for an incident that has not been validated.
	ErrIncidentNotValidated = errors.New("incident is not validated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PricingPointError identifies which venue blocked a pricing.
type PricingPointError struct {
	VenueID string
}

func (e *PricingPointError) Error() string {
	return fmt.Sprintf("venue %s has no pricing point", e.VenueID)
}

func (e *PricingPointError) Unwrap() error { return ErrPricingPointNotFound }

// AmountMismatchError reports a conservation failure before persist.
type AmountMismatchError struct {
	What     string // "pricing" or "cashflow"
	ID       string
	Expected Cents
	Actual   Cents
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("%s %s: amount %s does not match sum of parts %s",
		e.What, e.ID, e.Expected, e.Actual)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error is a precondition failure that may
// succeed on a later run (e.g. once a pricing point or bank account is set).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPricingPointNotFound)
}

// IsStateMachineViolation returns true for errors that indicate a
// double-charge or double-reimbursement risk. These must abort the caller's
// transaction and must never be silently swallowed.
func IsStateMachineViolation(err error) bool {
	return errors.Is(err, ErrAlreadyPriced) ||
		errors.Is(err, ErrEventNotPriceable) ||
		errors.Is(err, ErrInvalidPricingStatus) ||
		errors.Is(err, ErrInvalidCashflowStatus)
}
