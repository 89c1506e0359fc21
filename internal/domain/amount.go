package domain

import "github.com/shopspring/decimal"

// Amount bounds. A decimal outside them is treated as malformed: its
// canonical text could run to millions of digits.
const (
	// MaxAmountIntegerDigits bounds the digits before the decimal point.
	MaxAmountIntegerDigits = 15

	// MaxAmountScale bounds the digits after the decimal point.
	MaxAmountScale = 10

	// MaxAmountTextLen bounds the length of an amount's source text.
	MaxAmountTextLen = 64
)

var amountCeiling = decimal.New(1, MaxAmountIntegerDigits)

// AmountInRange reports whether d can be carried as a money value. It never
// renders d, so it is cheap for any input. A zero with a huge exponent is
// out of range too: rendering it still scales the coefficient.
func AmountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -MaxAmountScale || exp > MaxAmountIntegerDigits {
		return false
	}
	if d.Coefficient().BitLen() > 128 {
		return false
	}
	return d.Abs().LessThan(amountCeiling)
}
