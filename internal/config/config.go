package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"payflow"`
		Port int    `envconfig:"PORT" default:"8080"`
		// Env is "production" or anything else; only non-production may
		// accept unsigned webhooks, so local setups opt out explicitly.
		Env string `envconfig:"APP_ENV" default:"production"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"payflow"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
		MaxWebhookBytes int64         `envconfig:"SERVER_MAX_WEBHOOK_BYTES" default:"1048576"`
	}

	Checkout struct {
		SuccessURL string        `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/payment/success"`
		CancelURL  string        `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:3000/payment/cancel"`
		Timeout    time.Duration `envconfig:"CHECKOUT_TIMEOUT" default:"10s"`
		SessionTTL time.Duration `envconfig:"CHECKOUT_SESSION_TTL" default:"24h"`
	}

	Stripe struct {
		SecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
		WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	}

	Regional struct {
		Provider string `envconfig:"REGIONAL_PROVIDER" default:"momo"`

		MoMo struct {
			BaseURL       string `envconfig:"MOMO_BASE_URL"`
			APIKey        string `envconfig:"MOMO_API_KEY"`
			WebhookSecret string `envconfig:"MOMO_WEBHOOK_SECRET"`
		}

		ZaloPay struct {
			BaseURL       string `envconfig:"ZALOPAY_BASE_URL"`
			APIKey        string `envconfig:"ZALOPAY_API_KEY"`
			WebhookSecret string `envconfig:"ZALOPAY_WEBHOOK_SECRET"`
		}
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	Notify struct {
		Workers      int           `envconfig:"NOTIFY_WORKERS" default:"2"`
		QueueSize    int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
		Timeout      time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
		KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
		KafkaTopic   string        `envconfig:"KAFKA_TOPIC" default:"payflow.notifications"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func (c *Config) Production() bool {
	return c.App.Env == "production"
}

// RegionalProvider validates the configured regional sub-provider.
func (c *Config) RegionalProvider() (payment.Provider, error) {
	p, err := payment.ParseProvider(c.Regional.Provider)
	if err != nil {
		return "", err
	}

	if !p.IsRegional() {
		return "", fmt.Errorf("REGIONAL_PROVIDER must be %s or %s, got %q",
			payment.ProviderMoMo, payment.ProviderZaloPay, c.Regional.Provider)
	}

	return p, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := cfg.RegionalProvider(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
