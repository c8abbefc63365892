package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrPrecision = errors.New("amount has more than two decimal places")

// ToCents converts a major-unit amount to minor units. Fractions of a cent are rejected.
func ToCents(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrPrecision
	}
	return shifted.IntPart(), nil
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Format renders cents as a plain major-unit string, e.g. 1050 -> "10.50".
func Format(c int64) string {
	return FromCents(c).StringFixed(2)
}
