package orders

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a major-unit price to minor units, rounding half away from zero.
// The result is only meaningful when CentsFit reports true.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// CentsFit reports whether d in minor units is representable as int64.
func CentsFit(d decimal.Decimal) bool {
	return d.Mul(hundred).Round(0).BigInt().IsInt64()
}

// MulFits reports whether cents*qty stays within int64 for non-negative inputs.
func MulFits(cents int64, qty int) bool {
	return qty == 0 || cents <= math.MaxInt64/int64(qty)
}

// Major renders minor units as a fixed two-place decimal string ("10.00").
func Major(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
