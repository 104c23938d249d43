package notify

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount with its ISO code and the currency's
// standard number of decimals, e.g. "USD 1,000.50" or "VND 250,000".
func FormatAmount(amount decimal.Decimal, c payment.Currency) string {
	scale := payment.Scale(c)
	f, _ := amount.Round(scale).Float64()

	code := string(c)
	if unit, err := currency.ParseISO(code); err == nil {
		code = unit.String()
	}

	return code + " " + printer.Sprint(number.Decimal(f, number.Scale(int(scale))))
}
