package view

import (
	"context"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const (
	dbTimeout       = 5 * time.Second
	providerTimeout = 15 * time.Second
)

// FormatAmount renders an amount with its currency code and the currency's
// minor-unit precision.
func FormatAmount(amount decimal.Decimal, c payment.Currency) string {
	return notify.FormatAmount(amount, c)
}

// FormatTime formats a timestamp as YYYY-MM-DD HH:MM in local time.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// ProviderCtx is for calls that reach a payment provider.
func ProviderCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), providerTimeout)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}
