package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	StripePublishableKey   string
	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeWebhookSecretDev string

	PayPalBaseURL      string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalWebhookID    string

	DedupTTL time.Duration

	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	KafkaBrokers       []string
	KafkaAnnounceTopic string
	KafkaSCRAMUsername string
	KafkaSCRAMPassword string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "eur"),

		StripePublishableKey:   k.String("STRIPE_PUBLISHABLE_KEY"),
		StripeSecretKey:        k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    k.String("STRIPE_WEBHOOK_SECRET"),
		StripeWebhookSecretDev: k.String("STRIPE_WEBHOOK_SECRET_DEV"),

		PayPalBaseURL:      valueOrDefault(k.String("PAYPAL_BASE_URL"), "https://api-m.sandbox.paypal.com"),
		PayPalClientID:     k.String("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: k.String("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookID:    k.String("PAYPAL_WEBHOOK_ID"),

		DedupTTL: parseDuration(k.String("DEDUP_TTL"), "72h"),

		MailAPIURL: k.String("MAIL_API_URL"),
		MailAPIKey: k.String("MAIL_API_KEY"),
		MailFrom:   valueOrDefault(k.String("MAIL_FROM"), "donations@kindbridge.org"),

		KafkaBrokers:       splitAndTrim(k.String("KAFKA_BOOTSTRAP_SERVERS")),
		KafkaAnnounceTopic: valueOrDefault(k.String("KAFKA_ANNOUNCE_TOPIC"), "donations.announcements"),
		KafkaSCRAMUsername: k.String("KAFKA_SCRAM_USERNAME"),
		KafkaSCRAMPassword: k.String("KAFKA_SCRAM_PASSWORD"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

// WebhookSigningSecret selects the signing secret for the environment. A
// local-development override takes precedence outside production.
func (c *Config) WebhookSigningSecret() string {
	if c.AppEnv != "production" && strings.TrimSpace(c.StripeWebhookSecretDev) != "" {
		return c.StripeWebhookSecretDev
	}
	return c.StripeWebhookSecret
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
