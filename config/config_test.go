package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "simulated", cfg.Payment.Driver)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, time.Minute, cfg.Outbox.ClaimTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_PAYMENT_CURRENCY", "EUR")
	t.Setenv("STOREFRONT_PAYMENT_TIMEOUT", "3s")
	t.Setenv("STOREFRONT_REDIS_ENABLED", "true")
	t.Setenv("STOREFRONT_SENTRY_DSN", "https://key@example.com/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eur", cfg.Payment.Currency)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "https://key@example.com/1", cfg.Sentry.DSN)
}

func TestLoad_StripeRequiresSecretKey(t *testing.T) {
	t.Setenv("STOREFRONT_PAYMENT_DRIVER", "stripe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StripeSecretKey")

	t.Setenv("STOREFRONT_PAYMENT_STRIPE_SECRET_KEY", "sk_test_123")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", cfg.Payment.StripeSecretKey)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ReleaseRejectsDefaultSecret(t *testing.T) {
	t.Setenv("STOREFRONT_SERVER_MODE", "release")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	t.Setenv("STOREFRONT_AUTH_JWT_SECRET", "a-real-secret-0123456789")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Server.Mode)
}

func TestLoad_LockTTLCoversPaymentWindow(t *testing.T) {
	t.Setenv("STOREFRONT_REDIS_ENABLED", "true")
	t.Setenv("STOREFRONT_PAYMENT_TIMEOUT", "30s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_ttl")

	t.Setenv("STOREFRONT_REDIS_LOCK_TTL", "35s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 35*time.Second, cfg.Redis.LockTTL)

	// 未启用 Redis 时使用进程内锁，不校验
	t.Setenv("STOREFRONT_REDIS_ENABLED", "false")
	t.Setenv("STOREFRONT_REDIS_LOCK_TTL", "1s")
	_, err = Load()
	require.NoError(t, err)
}
