package providercsv

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads a formatted amount cell. Surrounding currency symbols
// and spaces are ignored: "150.000 ₫" -> 150000, "$1,234.56" -> 1234.56.
func parseAmount(s string, style numberStyle) (decimal.Decimal, error) {
	clean := strings.TrimFunc(s, func(r rune) bool {
		return r != '-' && (r < '0' || r > '9')
	})

	switch style {
	case numberComma:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	default:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	return decimal.NewFromString(clean)
}
