package finance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/culturepass/finance-engine/finance"
)

// =============================================================================
// CENT CONVERSION TESTS
// =============================================================================

func TestCentsFromEuros_TwoFractionalDigits_Exact(t *testing.T) {
	// GIVEN: A price with 2 fractional digits, the catalog maximum
	// WHEN: Converting to cents
	// THEN: The conversion is exact, no drift

	assert.Equal(t, finance.Cents(1999), finance.CentsFromEuros(decimal.RequireFromString("19.99")))
	assert.Equal(t, finance.Cents(10), finance.CentsFromEuros(decimal.RequireFromString("0.10")))
	assert.Equal(t, finance.Cents(0), finance.CentsFromEuros(decimal.Zero))
	assert.Equal(t, finance.Cents(-1999), finance.CentsFromEuros(decimal.RequireFromString("-19.99")))
}

func TestCents_Euros_RoundTrip(t *testing.T) {
	cases := []int64{0, 1, 99, 100, 6500, -6500, 20_000_00}
	for _, c := range cases {
		euros := finance.Cents(c).Euros()
		assert.Equal(t, finance.Cents(c), finance.CentsFromEuros(euros), "round trip for %d cents", c)
	}
}

// =============================================================================
// RATE APPLICATION TESTS
// =============================================================================

func TestApplyRate_RoundsHalfAwayFromZero(t *testing.T) {
	// GIVEN: Amounts whose rate application lands exactly on half a cent
	// WHEN: Applying the rate
	// THEN: The result rounds away from zero, both signs

	half := finance.MustRate("0.5")
	assert.Equal(t, finance.Cents(1), finance.ApplyRate(1, half))
	assert.Equal(t, finance.Cents(-1), finance.ApplyRate(-1, half))
	assert.Equal(t, finance.Cents(2), finance.ApplyRate(3, half))
	assert.Equal(t, finance.Cents(-2), finance.ApplyRate(-3, half))
}

func TestApplyRate_DegressiveRates(t *testing.T) {
	// 65.50 EUR at 95% = 62.225 EUR, rounds to 62.23
	assert.Equal(t, finance.Cents(6223), finance.ApplyRate(6550, finance.MustRate("0.95")))
	// 100.00 EUR at 92% = 92.00 exactly
	assert.Equal(t, finance.Cents(9200), finance.ApplyRate(10000, finance.MustRate("0.92")))
	// zero rate pays nothing
	assert.Equal(t, finance.Cents(0), finance.ApplyRate(10000, decimal.Zero))
	// full rate is the identity
	assert.Equal(t, finance.Cents(10000), finance.ApplyRate(10000, decimal.NewFromInt(1)))
}

func TestCents_String_FormatsEuros(t *testing.T) {
	assert.Equal(t, "65.00 EUR", finance.Cents(6500).String())
	assert.Equal(t, "-65.00 EUR", finance.Cents(-6500).String())
	assert.Equal(t, "0.05 EUR", finance.Cents(5).String())
	assert.Equal(t, "0.00 EUR", finance.Cents(0).String())
}

func TestCents_SignHelpers(t *testing.T) {
	assert.True(t, finance.Cents(-1).IsNegative())
	assert.True(t, finance.Cents(1).IsPositive())
	assert.True(t, finance.Cents(0).IsZero())
	assert.Equal(t, finance.Cents(5), finance.Cents(-5).Neg())
}
