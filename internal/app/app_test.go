package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/payflow/internal/app"
	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

func TestNewPaymentRouter(t *testing.T) {
	type testCase struct {
		name     string
		regional string
		wantVND  payment.Provider
		wantErr  bool
	}

	tests := []testCase{
		{name: "MoMo", regional: "momo", wantVND: payment.ProviderMoMo},
		{name: "ZaloPay", regional: "ZaloPay", wantVND: payment.ProviderZaloPay},
		{name: "CardIsNotRegional", regional: "stripe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.Config
			cfg.Regional.Provider = tt.regional

			router, err := app.NewPaymentRouter(&cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			vnd, err := router.RouteByCurrency(payment.CurrencyVND)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVND, vnd.Descriptor().Name)

			usd, err := router.RouteByCurrency(payment.CurrencyUSD)
			require.NoError(t, err)
			assert.Equal(t, payment.ProviderStripe, usd.Descriptor().Name)

			assert.Len(t, router.Descriptors(), 3)
		})
	}
}

func TestNewNotifier_LogOnlyWithoutBrokers(t *testing.T) {
	var cfg config.Config

	n, closeFn, err := app.NewNotifier(&cfg, nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())

	multi, ok := n.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 1)
	assert.NoError(t, n.Notify(context.Background(), notify.Event{Kind: notify.KindPaymentCompleted}))
}

func TestStatementParsers_CoverEveryProvider(t *testing.T) {
	parsers := app.StatementParsers()

	for _, p := range []payment.Provider{payment.ProviderStripe, payment.ProviderMoMo, payment.ProviderZaloPay} {
		assert.Contains(t, parsers, p)
	}
}
