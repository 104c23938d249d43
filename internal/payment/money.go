package payment

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Scale returns the number of minor-unit digits for c (2 for USD, 0 for VND).
func Scale(c Currency) int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}

	scale, _ := currency.Standard.Rounding(unit)

	return int32(scale)
}

// ToMinorUnits converts a major-unit amount into the smallest unit of c,
// e.g. 12.34 USD -> 1234.
func ToMinorUnits(amount decimal.Decimal, c Currency) int64 {
	return amount.Shift(Scale(c)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v int64, c Currency) decimal.Decimal {
	return decimal.New(v, -Scale(c))
}
