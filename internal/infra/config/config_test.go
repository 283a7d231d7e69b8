package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PAYMENT_PROVIDER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RETRY_BACKOFF", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, ProviderSandbox, cfg.PaymentProvider)
	assert.Equal(t, "ETB", cfg.PaymentCurrency)
	assert.Equal(t, 30*time.Minute, cfg.BookingPendingTTL)
	assert.True(t, cfg.CancelOnFailure)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadDriverRequirements(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	t.Setenv("POSTGRES_DSN", "postgres://localhost/staybook?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "GATEWAY_TIMEOUT")

	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("PAYMENT_PROVIDER", "chapa")
	t.Setenv("CHAPA_SECRET_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "CHAPA_SECRET_KEY")
}
