/*
pricing.go - Pricing of finance events

PURPOSE:
  Converts a finance event (booking used, incident reversal, incident new
  price, commercial gesture) into a persisted Pricing with categorized lines.

CONTRACT (PriceEvent):
  - The event must be READY. Pricing an already-priced event is a
    state-machine violation: pricing is a one-way transition per event, and
    corrections create NEW events, never a second pricing of the same one.
  - For a booking event, the elected rule's amount becomes an
    OFFERER_REVENUE line (signed, magnitude = full booking value) and an
    OFFERER_CONTRIBUTION line (the non-reimbursed complement, always >= 0).
  - A reversal prices to the exact negation of the original pricing, line by
    line, so that reprocessing nets to zero cent for cent.
  - A commercial gesture pays out under the COMMERCIAL_GESTURE category.
  - Conservation: sum(lines) == amount is checked before persisting; a
    mismatch aborts, nothing inconsistent is ever stored.

REVENUE:
  The pricing records the pricing point's cumulative civil-year revenue
  INCLUDING the event's own contribution (post-increment convention, same as
  the selector). Collective bookings never contribute.

SEE ALSO:
  - selector.go: rule election
  - cashflow.go: what happens to VALIDATED pricings next
*/
package finance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Engine prices finance events and exposes the batching operations built on
// top of them (cashflow.go, invoice.go).
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

// =============================================================================
// EVENT CREATION
// =============================================================================

// AddBookingEvent records a finance event for a booking. Usage motives make
// the event READY for pricing; if the venue has no pricing point yet the
// event is stored PENDING and picked up once the pricing point is configured.
// Cancellation motives (unused, cancelled after use) are recorded
// NOT_TO_BE_PRICED and cancel the booking's active pricing instead.
func (e *Engine) AddBookingEvent(ctx context.Context, bookingID string, motive FinanceEventMotive) (*FinanceEvent, error) {
	booking, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}

	event := &FinanceEvent{
		ID:           uuid.NewString(),
		Motive:       motive,
		Status:       EventReady,
		BookingID:    booking.ID,
		VenueID:      booking.VenueID,
		ValueDate:    booking.DateUsed,
		CreationDate: e.now(),
	}
	cancellation := motive == MotiveBookingUnused || motive == MotiveBookingCancelledAfterUse
	if cancellation {
		event.Status = EventNotToBePriced
	}
	pricingPoint, err := e.store.PricingPointFor(ctx, booking.VenueID)
	switch {
	case err == nil:
		event.PricingPointID = pricingPoint
	case IsRetryable(err) && !cancellation:
		event.Status = EventPending
	case IsRetryable(err):
		// An unpriced venue has nothing to cancel; the event is still recorded.
	default:
		return nil, err
	}

	if err := e.store.AddEvent(ctx, event); err != nil {
		return nil, err
	}
	if cancellation {
		if err := e.cancelBookingPricing(ctx, booking.ID); err != nil {
			return nil, err
		}
	}
	e.logger.Info("added finance event",
		"event", event.ID, "booking", bookingID, "motive", string(motive), "status", string(event.Status))
	return event, nil
}

// cancelBookingPricing cancels the booking's active pricing, if any.
func (e *Engine) cancelBookingPricing(ctx context.Context, bookingID string) error {
	pricing, err := e.store.LatestPricingForBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if pricing == nil {
		return nil
	}
	return e.CancelEventPricing(ctx, pricing.EventID)
}

// =============================================================================
// PRICING
// =============================================================================

// PriceEvent prices a READY event and marks it PRICED, atomically.
func (e *Engine) PriceEvent(ctx context.Context, eventID string) (*Pricing, error) {
	event, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrEventNotFound)
	}
	if event.Status == EventPriced {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrAlreadyPriced)
	}
	if event.Status != EventReady {
		return nil, fmt.Errorf("event %s has status %s: %w", eventID, event.Status, ErrEventNotPriceable)
	}
	if event.PricingPointID == "" {
		return nil, &PricingPointError{VenueID: event.VenueID}
	}
	if existing, err := e.store.PricingForEvent(ctx, eventID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("event %s already has pricing %s: %w", eventID, existing.ID, ErrAlreadyPriced)
	}

	pricing, err := e.computePricing(ctx, event)
	if err != nil {
		return nil, err
	}
	if total := pricing.LineTotal(); total != pricing.Amount {
		return nil, &AmountMismatchError{What: "pricing", ID: pricing.ID, Expected: pricing.Amount, Actual: total}
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		if err := s.SavePricing(ctx, pricing, PricingLog{
			PricingID:    pricing.ID,
			Timestamp:    e.now(),
			StatusBefore: pricing.Status,
			StatusAfter:  pricing.Status,
			Reason:       ReasonPriceEvent,
		}); err != nil {
			return err
		}
		return s.UpdateEventStatus(ctx, event.ID, EventPriced)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("priced event",
		"event", event.ID, "pricing", pricing.ID, "amount", int64(pricing.Amount), "revenue", int64(pricing.Revenue))
	return pricing, nil
}

func (e *Engine) computePricing(ctx context.Context, event *FinanceEvent) (*Pricing, error) {
	var incident *BookingFinanceIncident
	bookingID := event.BookingID
	if event.IncidentID != "" {
		var err error
		incident, err = e.store.GetIncident(ctx, event.IncidentID)
		if err != nil {
			return nil, err
		}
		bookingID = incident.BookingID
	}
	booking, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}

	periodStart, periodEnd := revenuePeriod(event.ValueDate)
	revenue, err := e.store.CurrentRevenue(ctx, event.PricingPointID, periodStart, periodEnd, booking.ID)
	if err != nil {
		return nil, err
	}
	// Post-increment convention: the event's own contribution joins the
	// cumulative value BEFORE the rule thresholds are tested.
	if !booking.Collective {
		switch event.Motive {
		case MotiveBookingUsed, MotiveBookingUsedAfterCancellation:
			revenue += booking.TotalCents()
		case MotiveIncidentNewPrice, MotiveIncidentCommercialGesture:
			revenue += incident.NewTotalAmount
		}
	}

	pricing := &Pricing{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		Status:         PricingValidated,
		VenueID:        booking.VenueID,
		PricingPointID: event.PricingPointID,
		ValueDate:      event.ValueDate,
		CreationDate:   e.now(),
		Revenue:        revenue,
	}

	switch event.Motive {
	case MotiveBookingUsed, MotiveBookingUsedAfterCancellation:
		customRules, err := e.store.CustomRules(ctx)
		if err != nil {
			return nil, err
		}
		applied, err := ElectRule(booking, NewCustomRuleFinder(customRules), revenue)
		if err != nil {
			return nil, err
		}
		pricing.BookingID = booking.ID
		pricing.Amount = -applied.Amount // outgoing, thus negative
		offererRevenue := -booking.TotalCents()
		pricing.Lines = []PricingLine{
			{Category: CategoryOffererRevenue, Amount: offererRevenue},
			{Category: CategoryOffererContribution, Amount: pricing.Amount - offererRevenue},
		}
		if custom, ok := applied.Rule.(*CustomRule); ok {
			pricing.CustomRuleID = custom.ID
		} else {
			pricing.StandardRule = applied.Rule.Description()
		}

	case MotiveIncidentReversal:
		original, err := e.originalPricing(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		pricing.Amount = -original.Amount
		pricing.StandardRule = original.StandardRule
		pricing.CustomRuleID = original.CustomRuleID
		pricing.Lines = make([]PricingLine, len(original.Lines))
		for i, line := range original.Lines {
			pricing.Lines[i] = PricingLine{Category: line.Category, Amount: -line.Amount}
		}

	case MotiveIncidentNewPrice:
		original, err := e.originalPricing(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		rule, err := e.resolveRule(ctx, original)
		if err != nil {
			return nil, err
		}
		pricing.Amount = -rule.ApplyTo(booking, incident.NewTotalAmount)
		pricing.StandardRule = original.StandardRule
		pricing.CustomRuleID = original.CustomRuleID
		offererRevenue := -incident.NewTotalAmount
		pricing.Lines = []PricingLine{
			{Category: CategoryOffererRevenue, Amount: offererRevenue},
			{Category: CategoryOffererContribution, Amount: pricing.Amount - offererRevenue},
		}

	case MotiveIncidentCommercialGesture:
		pricing.Amount = -incident.NewTotalAmount
		pricing.StandardRule = RuleCommercialGesture.Description()
		pricing.Lines = []PricingLine{
			{Category: CategoryCommercialGesture, Amount: pricing.Amount},
			{Category: CategoryOffererContribution, Amount: 0},
		}

	default:
		return nil, fmt.Errorf("event %s has motive %s: %w", event.ID, event.Motive, ErrEventNotPriceable)
	}
	return pricing, nil
}

func (e *Engine) originalPricing(ctx context.Context, bookingID string) (*Pricing, error) {
	original, err := e.store.LatestPricingForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("booking %s has no pricing to correct: %w", bookingID, ErrBookingNotFound)
	}
	return original, nil
}

// resolveRule finds the rule a pricing was priced under.
func (e *Engine) resolveRule(ctx context.Context, pricing *Pricing) (ReimbursementRule, error) {
	if pricing.CustomRuleID != "" {
		rule, err := e.store.GetCustomRule(ctx, pricing.CustomRuleID)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			return nil, fmt.Errorf("custom rule %s: %w", pricing.CustomRuleID, ErrRuleNotFound)
		}
		return rule, nil
	}
	return FindRuleByDescription(pricing.StandardRule)
}

// CancelEventPricing cancels a priced event's pricing after the booking was
// cancelled. The pricing's lines are frozen for audit, not deleted, and the
// event can be priced again later if the booking is used again.
func (e *Engine) CancelEventPricing(ctx context.Context, eventID string) error {
	pricing, err := e.store.PricingForEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if pricing == nil {
		return nil
	}
	if pricing.Status != PricingValidated {
		return fmt.Errorf("pricing %s has status %s: %w", pricing.ID, pricing.Status, ErrInvalidPricingStatus)
	}
	return e.store.WithTx(ctx, func(s Store) error {
		if err := s.UpdatePricingStatus(ctx, []string{pricing.ID}, PricingValidated, PricingCancelled, ReasonMarkAsUnused); err != nil {
			return err
		}
		return s.UpdateEventStatus(ctx, eventID, EventCancelled)
	})
}

// revenuePeriod returns the first and last instants of the civil year of the
// given value date, in UTC.
func revenuePeriod(valueDate time.Time) (time.Time, time.Time) {
	year := valueDate.UTC().Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	return start, end
}
