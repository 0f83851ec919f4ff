package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culturepass/finance-engine/finance"
)

func noCustomRules() *finance.CustomRuleFinder {
	return finance.NewCustomRuleFinder(nil)
}

// =============================================================================
// ELECTION TESTS
// =============================================================================

func TestElectRule_MinimumAmountWins(t *testing.T) {
	// GIVEN: A physical booking with cumulative revenue in the 95% tier
	// WHEN: Electing a rule
	// THEN: The degressive rule wins over full reimbursement (minimum amount)

	b := testBooking(withPrice(1, "100.00"))
	applied, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier1+1)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleBetween20kAnd40k), applied.Rule)
	assert.Equal(t, finance.Cents(9500), applied.Amount)
}

func TestElectRule_BelowThreshold_FullReimbursement(t *testing.T) {
	b := testBooking(withPrice(1, "100.00"))
	applied, err := finance.ElectRule(b, noCustomRules(), 10_000_00)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), applied.Rule)
	assert.Equal(t, finance.Cents(10000), applied.Amount)
}

func TestElectRule_PostIncrementConvention(t *testing.T) {
	// GIVEN: Cumulative revenue that INCLUDES the booking under evaluation
	// WHEN: The inclusive total lands exactly on the 20 000 EUR boundary
	// THEN: The booking still gets full reimbursement (upper-inclusive tier)
	//
	// Pinned: thresholds are tested against the post-increment cumulative
	// value, not the pre-increment one.

	b := testBooking(withPrice(1, "50.00"))

	onBoundary, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier1)
	require.NoError(t, err)
	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), onBoundary.Rule)
	assert.Equal(t, finance.Cents(5000), onBoundary.Amount)

	oneCentOver, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier1+1)
	require.NoError(t, err)
	assert.Equal(t, finance.ReimbursementRule(finance.RuleBetween20kAnd40k), oneCentOver.Rule)
	assert.Equal(t, finance.Cents(4750), oneCentOver.Amount)
}

func TestElectRule_BookAboveThreshold_WinsUnconditionally(t *testing.T) {
	// GIVEN: A book booking with cumulative revenue above 20 000 EUR
	// WHEN: Electing a rule
	// THEN: The book 95% rule wins even though 95% of the total is not the
	//       minimum a zero-rate rule would produce

	b := testBooking(withSubcategory(finance.SubcategoryPaperBook), withPrice(1, "300.00"))
	applied, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier1+300_00)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleBookAbove20k), applied.Rule)
	assert.Equal(t, finance.Cents(28500), applied.Amount)
}

func TestElectRule_DigitalOffer_NotReimbursed(t *testing.T) {
	b := testBooking(digital, withPrice(1, "9.99"))
	applied, err := finance.ElectRule(b, noCustomRules(), 0)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleDigitalThings), applied.Rule)
	assert.Equal(t, finance.Cents(0), applied.Amount)
}

func TestElectRule_CollectiveBooking_FullWhateverTheRevenue(t *testing.T) {
	b := testBooking(collective, withPrice(1, "500.00"))
	applied, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier3+1)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleCollectiveOffers), applied.Rule)
	assert.Equal(t, finance.Cents(50000), applied.Amount)
}

func TestElectRule_LegacyEra_UsesLegacyRates(t *testing.T) {
	// GIVEN: A booking created in the legacy window (Sept 2019 - Sept 2021)
	// WHEN: Cumulative revenue is in the 40k-150k tier
	// THEN: The legacy 85% rate applies, not the current 92%

	b := testBooking(
		withDateCreated(time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)),
		withPrice(1, "100.00"),
	)
	applied, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier2+1)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleLegacyBetween40kAnd150k), applied.Rule)
	assert.Equal(t, finance.Cents(8500), applied.Amount)
}

func TestElectRule_ChangeoverInstant_FallsBackToFullReimbursement(t *testing.T) {
	// GIVEN: A booking created exactly at the degressive changeover
	// THEN: Neither degressive set activates (strict validity on both ends)
	//       and full reimbursement remains the only relevant rule

	b := testBooking(withDateCreated(finance.CurrentRatesStart), withPrice(1, "100.00"))
	applied, err := finance.ElectRule(b, noCustomRules(), finance.RevenueTier1+1)
	require.NoError(t, err)

	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), applied.Rule)
}

// =============================================================================
// CUSTOM RULE PRECEDENCE TESTS
// =============================================================================

func TestElectRule_CustomRuleShortCircuits(t *testing.T) {
	// GIVEN: An offerer-scoped custom rate of 80%
	// WHEN: Electing for a booking of that offerer, above the first tier
	// THEN: The custom rule wins, thresholds never considered

	rate := finance.MustRate("0.80")
	custom := &finance.CustomRule{
		ID:         "custom-1",
		OffererID:  "offerer-1",
		CustomRate: &rate,
		Start:      time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	b := testBooking(withPrice(1, "100.00"))

	applied, err := finance.ElectRule(b, finance.NewCustomRuleFinder([]*finance.CustomRule{custom}), finance.RevenueTier1+1)
	require.NoError(t, err)
	assert.Equal(t, finance.ReimbursementRule(custom), applied.Rule)
	assert.Equal(t, finance.Cents(8000), applied.Amount)
}

func TestElectRule_OfferScopedBeatsOffererScoped(t *testing.T) {
	offerRate := finance.MustRate("0.60")
	offererRate := finance.MustRate("0.80")
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	byOfferer := &finance.CustomRule{ID: "custom-offerer", OffererID: "offerer-1", CustomRate: &offererRate, Start: start}
	byOffer := &finance.CustomRule{ID: "custom-offer", OfferID: "offer-1", CustomRate: &offerRate, Start: start}

	b := testBooking(withPrice(1, "100.00"))

	// Order in the finder must not matter
	applied, err := finance.ElectRule(b, finance.NewCustomRuleFinder([]*finance.CustomRule{byOfferer, byOffer}), 0)
	require.NoError(t, err)
	assert.Equal(t, finance.ReimbursementRule(byOffer), applied.Rule)
	assert.Equal(t, finance.Cents(6000), applied.Amount)
}

func TestCustomRuleFinder_TimespanAndSubcategories(t *testing.T) {
	amount := finance.Cents(500)
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)
	rule := &finance.CustomRule{
		ID:            "custom-1",
		OffererID:     "offerer-1",
		Subcategories: []finance.Subcategory{finance.SubcategoryCinemaCard},
		Amount:        &amount,
		Start:         start,
		End:           &end,
	}
	finder := finance.NewCustomRuleFinder([]*finance.CustomRule{rule})

	inWindow := testBooking(withSubcategory(finance.SubcategoryCinemaCard))
	inWindow.DateUsed = start // lower bound inclusive
	assert.Equal(t, rule, finder.Get(inWindow))

	atEnd := testBooking(withSubcategory(finance.SubcategoryCinemaCard))
	atEnd.DateUsed = end // upper bound exclusive
	assert.Nil(t, finder.Get(atEnd))

	wrongSubcategory := testBooking(withSubcategory(finance.SubcategoryMuseumCard))
	wrongSubcategory.DateUsed = start
	assert.Nil(t, finder.Get(wrongSubcategory))
}

func TestCustomRule_FixedAmountPerUnit(t *testing.T) {
	amount := finance.Cents(500)
	rule := &finance.CustomRule{
		ID:        "custom-1",
		OffererID: "offerer-1",
		Amount:    &amount,
		Start:     time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	b := testBooking(withPrice(3, "20.00"))

	applied, err := finance.ElectRule(b, finance.NewCustomRuleFinder([]*finance.CustomRule{rule}), 0)
	require.NoError(t, err)
	assert.Equal(t, finance.Cents(1500), applied.Amount, "500 cents per unit, 3 units")
}

// =============================================================================
// REVENUE LEDGER AND BATCH EVALUATION TESTS
// =============================================================================

func TestRevenueLedger_OnlyPhysicalRelevantBookingsContribute(t *testing.T) {
	// GIVEN: A mix of physical, digital, book and collective bookings
	// WHEN: Adding them to the ledger
	// THEN: Only the physical booking moves the cumulative total

	ledger := finance.NewRevenueLedger()

	ledger.Add("pp-1", testBooking(withPrice(1, "100.00")))
	ledger.Add("pp-1", testBooking(digital, withPrice(1, "100.00")))
	ledger.Add("pp-1", testBooking(withSubcategory(finance.SubcategoryPaperBook), withPrice(1, "100.00")))
	ledger.Add("pp-1", testBooking(collective, withPrice(1, "100.00")))

	assert.Equal(t, finance.Cents(10000), ledger.Current("pp-1", 2023))
}

func TestRevenueLedger_BucketsByPricingPointAndYear(t *testing.T) {
	ledger := finance.NewRevenueLedger()
	ledger.Add("pp-1", testBooking(withPrice(1, "100.00")))
	ledger.Add("pp-2", testBooking(withPrice(1, "40.00")))
	ledger.Add("pp-1", testBooking(
		withPrice(1, "25.00"),
		withDateCreated(time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)),
	))

	assert.Equal(t, finance.Cents(10000), ledger.Current("pp-1", 2023))
	assert.Equal(t, finance.Cents(2500), ledger.Current("pp-1", 2024))
	assert.Equal(t, finance.Cents(4000), ledger.Current("pp-2", 2023))
}

func TestFindAllBookingReimbursements_ThresholdCrossing(t *testing.T) {
	// GIVEN: Three 10 000 EUR bookings on one pricing point
	// WHEN: Evaluating the stream in order
	// THEN: The first two stay in the full tier (the second lands exactly on
	//       20 000 EUR inclusive), the third degrades to 95%

	bookings := []*finance.Booking{
		testBooking(withPrice(1, "10000.00")),
		testBooking(withPrice(1, "10000.00")),
		testBooking(withPrice(1, "10000.00")),
	}
	for i, b := range bookings {
		b.ID = string(rune('a' + i))
	}

	results, err := finance.FindAllBookingReimbursements("pp-1", bookings, noCustomRules())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), results[0].Rule)
	assert.Equal(t, finance.Cents(1_000_000), results[0].Amount)
	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), results[1].Rule)
	assert.Equal(t, finance.Cents(1_000_000), results[1].Amount)
	assert.Equal(t, finance.ReimbursementRule(finance.RuleBetween20kAnd40k), results[2].Rule)
	assert.Equal(t, finance.Cents(950_000), results[2].Amount)
}

func TestFindAllBookingReimbursements_BooksDoNotMoveThresholds(t *testing.T) {
	// GIVEN: A large book sale followed by a physical booking
	// THEN: The book sale does not push the physical booking over the tier

	book := testBooking(withSubcategory(finance.SubcategoryPaperBook), withPrice(1, "25000.00"))
	book.ID = "book"
	physical := testBooking(withPrice(1, "100.00"))
	physical.ID = "physical"

	results, err := finance.FindAllBookingReimbursements("pp-1", []*finance.Booking{book, physical}, noCustomRules())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, finance.ReimbursementRule(finance.RuleBookBelow20k), results[0].Rule)
	assert.Equal(t, finance.Cents(2_500_000), results[0].Amount)
	assert.Equal(t, finance.ReimbursementRule(finance.RulePhysicalOffers), results[1].Rule)
	assert.Equal(t, finance.Cents(10000), results[1].Amount)
}
