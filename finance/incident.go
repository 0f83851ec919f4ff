/*
incident.go - Post-hoc corrections of priced bookings

PURPOSE:
  An incident corrects a booking AFTER it was priced, without ever editing
  the original pricing. Validation emits new finance events:

    overpayment        -> one reversal event (exact negation of the original
                          pricing) plus one new-price event at the corrected
                          total
    commercial gesture -> one gesture event paying out the gesture amount

  The events then flow through the ordinary pricing pipeline, so a corrected
  booking nets to reversal + new price and the audit trail keeps all three
  pricings.

SEE ALSO:
  - pricing.go: how each emitted event is priced
*/
package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateOverpaymentIncident records that a booking's reimbursable total must
// become newTotal (cents). The correction takes effect on validation.
func (e *Engine) CreateOverpaymentIncident(ctx context.Context, bookingID string, newTotal Cents) (*BookingFinanceIncident, error) {
	return e.createIncident(ctx, bookingID, IncidentOverpayment, newTotal)
}

// CreateCommercialGesture records a goodwill payout of the given amount
// (cents) on top of the booking's reimbursement.
func (e *Engine) CreateCommercialGesture(ctx context.Context, bookingID string, amount Cents) (*BookingFinanceIncident, error) {
	return e.createIncident(ctx, bookingID, IncidentCommercialGesture, amount)
}

func (e *Engine) createIncident(ctx context.Context, bookingID string, kind IncidentKind, amount Cents) (*BookingFinanceIncident, error) {
	booking, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}
	if original, err := e.store.LatestPricingForBooking(ctx, bookingID); err != nil {
		return nil, err
	} else if original == nil {
		return nil, fmt.Errorf("booking %s has no pricing to correct: %w", bookingID, ErrBookingNotFound)
	}

	incident := &BookingFinanceIncident{
		ID:             uuid.NewString(),
		Kind:           kind,
		Status:         IncidentCreated,
		BookingID:      bookingID,
		VenueID:        booking.VenueID,
		NewTotalAmount: amount,
		CreationDate:   e.now(),
	}
	if err := e.store.SaveIncident(ctx, incident); err != nil {
		return nil, err
	}
	e.logger.Info("created finance incident",
		"incident", incident.ID, "kind", string(kind), "booking", bookingID, "amount", int64(amount))
	return incident, nil
}

// ValidateIncident marks the incident VALIDATED and emits its finance
// events. The events are READY immediately: the original pricing proves the
// venue already has a pricing point.
func (e *Engine) ValidateIncident(ctx context.Context, incidentID string) ([]*FinanceEvent, error) {
	incident, err := e.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrIncidentNotValidated)
	}
	if incident.Status != IncidentCreated {
		return nil, fmt.Errorf("incident %s has status %s: %w", incidentID, incident.Status, ErrIncidentNotValidated)
	}
	original, err := e.originalPricing(ctx, incident.BookingID)
	if err != nil {
		return nil, err
	}

	var motives []FinanceEventMotive
	switch incident.Kind {
	case IncidentOverpayment:
		motives = []FinanceEventMotive{MotiveIncidentReversal, MotiveIncidentNewPrice}
	case IncidentCommercialGesture:
		motives = []FinanceEventMotive{MotiveIncidentCommercialGesture}
	default:
		return nil, fmt.Errorf("incident %s has kind %s: %w", incidentID, incident.Kind, ErrIncidentNotValidated)
	}

	events := make([]*FinanceEvent, 0, len(motives))
	err = e.store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateIncidentStatus(ctx, incident.ID, IncidentValidated); err != nil {
			return err
		}
		for _, motive := range motives {
			event := &FinanceEvent{
				ID:             uuid.NewString(),
				Motive:         motive,
				Status:         EventReady,
				IncidentID:     incident.ID,
				VenueID:        incident.VenueID,
				PricingPointID: original.PricingPointID,
				ValueDate:      e.now(),
				CreationDate:   e.now(),
			}
			if err := s.AddEvent(ctx, event); err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("validated finance incident",
		"incident", incident.ID, "kind", string(incident.Kind), "events", len(events))
	return events, nil
}

// CancelIncident cancels a pending incident before validation. Validated
// incidents cannot be cancelled: their events may already be priced, so the
// correction path is a counter-incident.
func (e *Engine) CancelIncident(ctx context.Context, incidentID string) error {
	incident, err := e.store.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if incident == nil {
		return fmt.Errorf("incident %s: %w", incidentID, ErrIncidentNotValidated)
	}
	if incident.Status != IncidentCreated {
		return fmt.Errorf("incident %s has status %s: %w", incidentID, incident.Status, ErrIncidentNotValidated)
	}
	return e.store.UpdateIncidentStatus(ctx, incidentID, IncidentCancelled)
}
