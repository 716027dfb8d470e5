package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kindbridge/backend-giving/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/giving")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_live")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "eur", cfg.CurrencyCode)
	require.Equal(t, 72*time.Hour, cfg.DedupTTL)
	require.Equal(t, "donations.announcements", cfg.KafkaAnnounceTopic)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestWebhookSigningSecretDevOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_WEBHOOK_SECRET_DEV", "whsec_dev")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "whsec_dev", cfg.WebhookSigningSecret())
}

func TestWebhookSigningSecretProduction(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STRIPE_WEBHOOK_SECRET_DEV", "whsec_dev")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "whsec_live", cfg.WebhookSigningSecret())
}
