package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.True(t, cfg.Production(), "unsigned webhooks must be opted into")
	assert.Equal(t, 10*time.Second, cfg.Checkout.Timeout)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Empty(t, cfg.Notify.KafkaBrokers)
	assert.Equal(t, "postgres://postgres:@localhost:5432/payflow?sslmode=disable", cfg.ConnectionString())

	p, err := cfg.RegionalProvider()
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderMoMo, p)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REGIONAL_PROVIDER", "ZaloPay")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CHECKOUT_TIMEOUT", "3s")
	t.Setenv("ZALOPAY_API_KEY", "zk")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notify.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.Checkout.Timeout)
	assert.Equal(t, "zk", cfg.Regional.ZaloPay.APIKey)

	p, err := cfg.RegionalProvider()
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderZaloPay, p)
}

func TestLoad_DevelopmentOptIn(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Production())
}

func TestLoad_RejectsNonRegionalProvider(t *testing.T) {
	t.Setenv("REGIONAL_PROVIDER", "stripe")

	_, err := config.Load()
	assert.Error(t, err)
}
