/*
money.go - Exact monetary arithmetic

PURPOSE:
  All amounts handled by this engine are euro cents stored as integers.
  decimal.Decimal appears only at the rule-definition boundary: reimbursement
  rates (e.g. 0.95) and booking unit prices (euros with 2 fractional digits)
  are decimals, and the conversion to cents happens exactly once, here.

WHY INTEGER CENTS?
  Invoices must reconcile to the cent. Binary floating point cannot represent
  0.10 euros exactly; mixing representations creates off-by-one-cent drift
  that auditors notice. Integer cents make addition and negation exact, and
  the single rounding point (rate application) is explicit and testable.

ROUNDING:
  Applying a rate rounds half away from zero to a whole cent. This is the
  rounding the accounting side reconciles against.

SEE ALSO:
  - rules.go: rates are decimals, applied through ApplyRate
  - types.go: Booking prices are decimals, converted via CentsFromEuros
*/
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Integer euro-cent amounts
// =============================================================================

// Cents is a signed amount of euro cents. Negative amounts are money owed by
// the marketplace to an offerer (an outgoing reimbursement).
type Cents int64

var hundred = decimal.NewFromInt(100)

// CentsFromEuros converts a euro decimal to cents, rounding half away from
// zero. Booking prices carry at most 2 fractional digits so this is exact in
// practice; the rounding only matters for rate application results.
func CentsFromEuros(euros decimal.Decimal) Cents {
	return Cents(euros.Mul(hundred).Round(0).IntPart())
}

// Euros converts back to a euro decimal with 2 fractional digits.
func (c Cents) Euros() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

// ApplyRate multiplies an amount by a rate in [0, 1] and rounds half away
// from zero to a whole cent. This is the ONLY place a pricing amount is
// rounded.
func ApplyRate(amount Cents, rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(amount)).Mul(rate).Round(0).IntPart())
}

func (c Cents) Neg() Cents      { return -c }
func (c Cents) IsZero() bool    { return c == 0 }
func (c Cents) IsNegative() bool { return c < 0 }
func (c Cents) IsPositive() bool { return c > 0 }

// String formats the amount as euros for logs and error messages.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d EUR", sign, v/100, v%100)
}

// MustRate parses a rate literal. Reserved for the static rule catalog where
// a malformed literal is a programming error.
func MustRate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid rate literal %q: %v", s, err))
	}
	return d
}
