/*
cashflow.go - Batching pricings into bank transfers

PURPOSE:
  Periodically folds every VALIDATED pricing up to a cutoff into cashflows,
  one per bank account, under a freshly labeled batch ("VIR{n}").

CONTRACT (GenerateCashflows):
  - One bulk fetch of eligible pricings (valueDate <= cutoff), grouped
    in memory by the bank account active for the pricing's venue at the
    cutoff. Venues without an active bank account link are skipped, not
    failed: their pricings stay VALIDATED and join a later batch.
  - Each cashflow's amount is the sum of its pricings' amounts, checked
    against a recomputed total before persisting.
  - Grouped pricings transition VALIDATED -> PROCESSED inside the same
    transaction as the cashflow insert. A crash leaves either both or
    neither.
  - A second run with the same cutoff finds no VALIDATED pricings and
    produces an empty batch: generation is idempotent at the pricing level.

SEE ALSO:
  - invoice.go: what happens to UNDER_REVIEW cashflows next
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateCashflows batches every VALIDATED pricing with valueDate <= cutoff
// into per-bank-account cashflows under a new batch. Returns the batch, which
// may hold zero cashflows when nothing was eligible.
func (e *Engine) GenerateCashflows(ctx context.Context, cutoff time.Time) (*CashflowBatch, error) {
	label, err := e.store.NextBatchLabel(ctx)
	if err != nil {
		return nil, err
	}
	batch := &CashflowBatch{
		ID:           uuid.NewString(),
		Label:        label,
		Cutoff:       cutoff,
		CreationDate: e.now(),
	}

	pricings, err := e.store.ValidatedPricings(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	// Group by bank account. The venue -> bank account resolution is cached
	// per run: a batch can span thousands of pricings for a handful of venues.
	type group struct {
		pricings []*Pricing
		total    Cents
	}
	groups := make(map[string]*group)
	accounts := make(map[string]string) // venueID -> bankAccountID, "" = unlinked
	var skipped int
	for _, pricing := range pricings {
		account, cached := accounts[pricing.VenueID]
		if !cached {
			var ok bool
			account, ok, err = e.store.BankAccountFor(ctx, pricing.VenueID, cutoff)
			if err != nil {
				return nil, err
			}
			if !ok {
				account = ""
			}
			accounts[pricing.VenueID] = account
		}
		if account == "" {
			skipped++
			continue
		}
		g := groups[account]
		if g == nil {
			g = &group{}
			groups[account] = g
		}
		g.pricings = append(g.pricings, pricing)
		g.total += pricing.Amount
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		if err := s.SaveBatch(ctx, batch); err != nil {
			return err
		}
		for account, g := range groups {
			cashflow := &Cashflow{
				ID:            uuid.NewString(),
				BatchID:       batch.ID,
				BankAccountID: account,
				Status:        CashflowPending,
				Amount:        g.total,
				CreationDate:  e.now(),
			}
			var check Cents
			for _, pricing := range g.pricings {
				cashflow.PricingIDs = append(cashflow.PricingIDs, pricing.ID)
				check += pricing.Amount
			}
			if check != cashflow.Amount {
				return &AmountMismatchError{What: "cashflow", ID: cashflow.ID, Expected: cashflow.Amount, Actual: check}
			}
			if err := s.SaveCashflow(ctx, cashflow); err != nil {
				return err
			}
			if err := s.UpdatePricingStatus(ctx, cashflow.PricingIDs, PricingValidated, PricingProcessed, ReasonGenerateCashflow); err != nil {
				return err
			}
			batch.CashflowIDs = append(batch.CashflowIDs, cashflow.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("generated cashflow batch",
		"batch", batch.Label, "cashflows", len(batch.CashflowIDs), "pricings", len(pricings)-skipped, "skipped", skipped)
	return batch, nil
}

// SubmitBatch sends a batch's PENDING cashflows for review, making them
// eligible for invoicing.
func (e *Engine) SubmitBatch(ctx context.Context, batchID string) error {
	cashflows, err := e.store.CashflowsOfBatch(ctx, batchID, CashflowPending)
	if err != nil {
		return err
	}
	if len(cashflows) == 0 {
		return nil
	}
	ids := make([]string, len(cashflows))
	for i, cf := range cashflows {
		ids[i] = cf.ID
	}
	if err := e.store.UpdateCashflowStatus(ctx, ids, CashflowPending, CashflowUnderReview); err != nil {
		return fmt.Errorf("submit batch %s: %w", batchID, err)
	}
	e.logger.Info("submitted cashflow batch", "batch", batchID, "cashflows", len(ids))
	return nil
}
