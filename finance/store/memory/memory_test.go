package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culturepass/finance-engine/finance"
	"github.com/culturepass/finance-engine/finance/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func storedPricing(id, bookingID string, amount finance.Cents, valueDate time.Time) *finance.Pricing {
	return &finance.Pricing{
		ID:             id,
		EventID:        "event-" + id,
		BookingID:      bookingID,
		Status:         finance.PricingValidated,
		VenueID:        "venue-1",
		PricingPointID: "pp-1",
		ValueDate:      valueDate,
		CreationDate:   time.Now(),
		Amount:         amount,
		Revenue:        -amount,
		StandardRule:   finance.RulePhysicalOffers.Description(),
		Lines: []finance.PricingLine{
			{Category: finance.CategoryOffererRevenue, Amount: amount},
			{Category: finance.CategoryOffererContribution, Amount: 0},
		},
	}
}

func storedBooking(id string, price string, collective bool) *finance.Booking {
	return &finance.Booking{
		ID:          id,
		Quantity:    1,
		UnitPrice:   decimal.RequireFromString(price),
		DateCreated: time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC),
		DateUsed:    time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC),
		Status:      finance.BookingUsed,
		VenueID:     "venue-1",
		OffererID:   "offerer-1",
		OfferID:     "offer-1",
		Collective:  collective,
	}
}

func priceLog(pricingID string) finance.PricingLog {
	return finance.PricingLog{
		PricingID:    pricingID,
		Timestamp:    time.Now(),
		StatusBefore: finance.PricingValidated,
		StatusAfter:  finance.PricingValidated,
		Reason:       finance.ReasonPriceEvent,
	}
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a pricing then fails
	// WHEN: The transaction returns the error
	// THEN: The store is restored; the pricing and its log are gone

	store := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	valueDate := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	err := store.WithTx(ctx, func(s finance.Store) error {
		if err := s.SavePricing(ctx, storedPricing("p-1", "b-1", -1000, valueDate), priceLog("p-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pricing, err := store.PricingForEvent(ctx, "event-p-1")
	require.NoError(t, err)
	assert.Nil(t, pricing)
	assert.Empty(t, store.PricingLogs())
}

func TestWithTx_RollsBackRulesAndBatches(t *testing.T) {
	// GIVEN: A transaction that adds a custom rule, takes a batch label and
	//        saves the batch, then fails
	// WHEN: The transaction returns the error
	// THEN: The rule is gone and the batch sequence is rewound, so the next
	//       batch reuses the label

	store := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	rate := finance.MustRate("0.80")
	err := store.WithTx(ctx, func(s finance.Store) error {
		if err := s.AddCustomRule(ctx, &finance.CustomRule{
			ID: "rule-1", OffererID: "offerer-1", CustomRate: &rate,
			Start: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			return err
		}
		label, err := s.NextBatchLabel(ctx)
		if err != nil {
			return err
		}
		if err := s.SaveBatch(ctx, &finance.CashflowBatch{
			ID: "batch-1", Label: label, Cutoff: time.Now(), CreationDate: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rules, err := store.CustomRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	rule, err := store.GetCustomRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Nil(t, rule)

	label, err := store.NextBatchLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "VIR1", label, "the aborted batch did not consume the label")
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	valueDate := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	err := store.WithTx(ctx, func(s finance.Store) error {
		return s.SavePricing(ctx, storedPricing("p-1", "b-1", -1000, valueDate), priceLog("p-1"))
	})
	require.NoError(t, err)

	pricing, err := store.PricingForEvent(ctx, "event-p-1")
	require.NoError(t, err)
	require.NotNil(t, pricing)
	assert.Equal(t, finance.Cents(-1000), pricing.Amount)
	assert.Len(t, store.PricingLogs(), 1)
}

// =============================================================================
// STATUS TRANSITION TESTS
// =============================================================================

func TestUpdatePricingStatus_AllOrNothing(t *testing.T) {
	// GIVEN: One VALIDATED and one PROCESSED pricing
	// WHEN: Transitioning both from VALIDATED
	// THEN: The whole call fails and neither row moved

	store := memory.New()
	ctx := context.Background()
	valueDate := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SavePricing(ctx, storedPricing("p-1", "b-1", -1000, valueDate), priceLog("p-1")))
	processed := storedPricing("p-2", "b-2", -2000, valueDate)
	processed.Status = finance.PricingProcessed
	require.NoError(t, store.SavePricing(ctx, processed, priceLog("p-2")))

	err := store.UpdatePricingStatus(ctx, []string{"p-1", "p-2"},
		finance.PricingValidated, finance.PricingProcessed, finance.ReasonGenerateCashflow)
	require.Error(t, err)

	pricings, err := store.Pricings(ctx, []string{"p-1", "p-2"})
	require.NoError(t, err)
	assert.Equal(t, finance.PricingValidated, pricings[0].Status)
	assert.Equal(t, finance.PricingProcessed, pricings[1].Status)
	assert.Len(t, store.PricingLogs(), 2, "no transition logs beyond the initial saves")
}

func TestUpdateCashflowStatus_WrongFromStatus(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	cf := &finance.Cashflow{ID: "cf-1", BatchID: "batch-1", BankAccountID: "iban-1",
		Status: finance.CashflowPending, Amount: -1000, CreationDate: time.Now()}
	require.NoError(t, store.SaveCashflow(ctx, cf))

	err := store.UpdateCashflowStatus(ctx, []string{"cf-1"}, finance.CashflowUnderReview, finance.CashflowAccepted)
	assert.ErrorIs(t, err, finance.ErrInvalidCashflowStatus)
}

// =============================================================================
// REVENUE QUERY TESTS
// =============================================================================

func TestCurrentRevenue_FiltersAndExclusions(t *testing.T) {
	// GIVEN: Pricings for a normal booking, a collective booking, a
	//        cancelled pricing and a booking outside the period
	// WHEN: Querying the 2023 revenue excluding one booking
	// THEN: Only the plain 2023 booking counts

	store := memory.New()
	ctx := context.Background()
	in2023 := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	in2024 := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	store.AddBooking(storedBooking("b-counted", "100.00", false))
	store.AddBooking(storedBooking("b-collective", "500.00", true))
	store.AddBooking(storedBooking("b-cancelled", "50.00", false))
	store.AddBooking(storedBooking("b-2024", "70.00", false))
	store.AddBooking(storedBooking("b-excluded", "30.00", false))

	require.NoError(t, store.SavePricing(ctx, storedPricing("p-1", "b-counted", -10000, in2023), priceLog("p-1")))
	require.NoError(t, store.SavePricing(ctx, storedPricing("p-2", "b-collective", -50000, in2023), priceLog("p-2")))
	cancelled := storedPricing("p-3", "b-cancelled", -5000, in2023)
	cancelled.Status = finance.PricingCancelled
	require.NoError(t, store.SavePricing(ctx, cancelled, priceLog("p-3")))
	require.NoError(t, store.SavePricing(ctx, storedPricing("p-4", "b-2024", -7000, in2024), priceLog("p-4")))
	require.NoError(t, store.SavePricing(ctx, storedPricing("p-5", "b-excluded", -3000, in2023), priceLog("p-5")))

	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)
	revenue, err := store.CurrentRevenue(ctx, "pp-1", start, end, "b-excluded")
	require.NoError(t, err)
	assert.Equal(t, finance.Cents(10000), revenue)
}

// =============================================================================
// VENUE RESOLUTION TESTS
// =============================================================================

func TestPricingPointFor_UnknownVenue_IsRetryable(t *testing.T) {
	store := memory.New()
	_, err := store.PricingPointFor(context.Background(), "venue-unknown")
	require.Error(t, err)
	assert.True(t, finance.IsRetryable(err))
	assert.ErrorIs(t, err, finance.ErrPricingPointNotFound)
}

func TestBankAccountFor_RespectsLinkTimespan(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)
	store.AddBankAccountLink(finance.BankAccountLink{VenueID: "venue-1", BankAccountID: "iban-old", Start: start, End: &end})
	store.AddBankAccountLink(finance.BankAccountLink{VenueID: "venue-1", BankAccountID: "iban-new", Start: end})

	account, ok, err := store.BankAccountFor(ctx, "venue-1", start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "iban-old", account)

	// The closing instant already belongs to the successor link
	account, ok, err = store.BankAccountFor(ctx, "venue-1", end)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "iban-new", account)

	_, ok, err = store.BankAccountFor(ctx, "venue-1", start.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// SEQUENCE TESTS
// =============================================================================

func TestNextBatchLabel_Increments(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	first, err := store.NextBatchLabel(ctx)
	require.NoError(t, err)
	second, err := store.NextBatchLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "VIR1", first)
	assert.Equal(t, "VIR2", second)
}

func TestNextReference_PerSchemeAndYear(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	ref1, err := store.NextReference(ctx, finance.SchemeInvoiceReference, 2024)
	require.NoError(t, err)
	ref2, err := store.NextReference(ctx, finance.SchemeInvoiceReference, 2024)
	require.NoError(t, err)
	assert.Equal(t, "F240000001", ref1)
	assert.Equal(t, "F240000002", ref2)

	// Debit notes and other years count independently
	debit, err := store.NextReference(ctx, finance.SchemeDebitNoteReference, 2024)
	require.NoError(t, err)
	assert.Equal(t, "A240000001", debit)

	nextYear, err := store.NextReference(ctx, finance.SchemeInvoiceReference, 2025)
	require.NoError(t, err)
	assert.Equal(t, "F250000001", nextYear)
}
