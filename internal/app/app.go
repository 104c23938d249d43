// Package app wires configuration into the provider adapters and
// notification channels shared by the binaries.
package app

import (
	"log/slog"

	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/payment/card"
	"github.com/MrJamesThe3rd/payflow/internal/payment/wallet"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
	"github.com/MrJamesThe3rd/payflow/internal/statement/providercsv"
)

// NewPaymentRouter registers every provider adapter from configuration.
// Unsigned webhooks are only accepted outside production.
func NewPaymentRouter(cfg *config.Config, logger *slog.Logger) (*payment.Router, error) {
	regional, err := cfg.RegionalProvider()
	if err != nil {
		return nil, err
	}

	unsigned := !cfg.Production()

	stripe := card.New(card.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SessionTTL:    cfg.Checkout.SessionTTL,
		Timeout:       cfg.Checkout.Timeout,
		AllowUnsigned: unsigned,
	}, logger)

	momo, err := wallet.New(wallet.Config{
		Provider:      payment.ProviderMoMo,
		BaseURL:       cfg.Regional.MoMo.BaseURL,
		APIKey:        cfg.Regional.MoMo.APIKey,
		WebhookSecret: cfg.Regional.MoMo.WebhookSecret,
		Timeout:       cfg.Checkout.Timeout,
		SessionTTL:    cfg.Checkout.SessionTTL,
		AllowUnsigned: unsigned,
	}, logger)
	if err != nil {
		return nil, err
	}

	zalo, err := wallet.New(wallet.Config{
		Provider:      payment.ProviderZaloPay,
		BaseURL:       cfg.Regional.ZaloPay.BaseURL,
		APIKey:        cfg.Regional.ZaloPay.APIKey,
		WebhookSecret: cfg.Regional.ZaloPay.WebhookSecret,
		Timeout:       cfg.Checkout.Timeout,
		SessionTTL:    cfg.Checkout.SessionTTL,
		AllowUnsigned: unsigned,
	}, logger)
	if err != nil {
		return nil, err
	}

	return payment.NewRouter(payment.RouterConfig{RegionalProvider: regional}, stripe, momo, zalo)
}

// NewNotifier always logs; Kafka is added when brokers are configured. The
// returned close func releases the producer.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func() error, error) {
	channels := notify.Multi{notify.NewLogNotifier(logger)}

	if len(cfg.Notify.KafkaBrokers) == 0 {
		return channels, func() error { return nil }, nil
	}

	producer, err := notify.NewKafkaProducer(cfg.Notify.KafkaBrokers)
	if err != nil {
		return nil, nil, err
	}

	kafka := notify.NewKafkaNotifier(producer, cfg.Notify.KafkaTopic)

	return append(channels, kafka), kafka.Close, nil
}

// StatementParsers maps each provider to the layout of its settlement export.
func StatementParsers() map[payment.Provider]statement.Parser {
	return map[payment.Provider]statement.Parser{
		payment.ProviderStripe:  providercsv.NewParser(providercsv.Stripe),
		payment.ProviderMoMo:    providercsv.NewParser(providercsv.MoMo),
		payment.ProviderZaloPay: providercsv.NewParser(providercsv.ZaloPay),
	}
}
