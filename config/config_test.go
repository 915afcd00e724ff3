package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "order-events", cfg.Kafka.TopicOrder)
	assert.Equal(t, "reconcile-requests", cfg.Kafka.TopicReconcile)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.ReplayWindow)
	assert.Zero(t, cfg.Webhook.MaxFutureSkew)
	assert.Equal(t, 8, cfg.Reconcile.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.LockTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WEBHOOK_MAX_FUTURE_SKEW", "30s")
	t.Setenv("RECONCILE_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Webhook.MaxFutureSkew)
	assert.Equal(t, 2, cfg.Reconcile.Concurrency)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Reconcile: ReconcileConfig{Concurrency: 1, LockTTL: time.Minute, Timeout: 10 * time.Second}}
	assert.Error(t, cfg.Validate())

	cfg.Webhook.Secret = "x"
	assert.NoError(t, cfg.Validate())

	cfg.Reconcile.Concurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestReconcileValidateLockOutlivesProviderCall(t *testing.T) {
	tests := []struct {
		name    string
		lockTTL time.Duration
		timeout time.Duration
		wantErr bool
	}{
		{name: "defaults: ok", lockTTL: 5 * time.Minute, timeout: 10 * time.Second},
		{name: "equal: fail", lockTTL: 10 * time.Second, timeout: 10 * time.Second, wantErr: true},
		{name: "lock shorter than call: fail", lockTTL: 5 * time.Second, timeout: 10 * time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReconcileConfig{Concurrency: 1, LockTTL: tt.lockTTL, Timeout: tt.timeout}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
