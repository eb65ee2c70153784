package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 600, cfg.Server.RateLimitPerMin)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, time.Hour, cfg.Idempotency.SweepInterval)
	assert.Equal(t, 5, cfg.Webhook.MaxRetries)
	assert.Equal(t, time.Second, cfg.Webhook.InitialRetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Webhook.PollInterval)
	assert.Equal(t, 5, cfg.Payment.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Payment.CircuitBreakerCooldown)
	assert.Equal(t, 60*time.Second, cfg.Payment.CircuitBreakerWindow)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "payment-processors", cfg.Worker.ConsumerGroup)
	assert.Equal(t, "payflow-1", cfg.InstanceID)
}

func TestValidate_Success(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_WebhookRetryBounds(t *testing.T) {
	for _, retries := range []int{0, 11, -1} {
		cfg := validConfig()
		cfg.Webhook.MaxRetries = retries
		err := cfg.Validate()
		require.Error(t, err, "max_retries = %d", retries)
		assert.Contains(t, err.Error(), "webhook.max_retries")
	}

	for _, retries := range []int{1, 5, 10} {
		cfg := validConfig()
		cfg.Webhook.MaxRetries = retries
		assert.NoError(t, cfg.Validate(), "max_retries = %d", retries)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"zero breaker threshold", func(c *Config) { c.Payment.CircuitBreakerThreshold = 0 }},
		{"zero idempotency ttl", func(c *Config) { c.Idempotency.TTL = 0 }},
		{"zero outbox batch", func(c *Config) { c.Outbox.BatchSize = 0 }},
		{"zero webhook poll interval", func(c *Config) { c.Webhook.PollInterval = 0 }},
		{"zero worker batch", func(c *Config) { c.Worker.BatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.Database.DatabaseDSN()
	for _, part := range []string{"host=localhost", "port=5432", "dbname=payflow", "sslmode=disable"} {
		assert.Contains(t, dsn, part)
	}
}

func TestRedisAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "payflow", Database: "payflow", SSLMode: "disable",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Payment: PaymentConfig{
			LockTTL:                 30 * time.Second,
			CircuitBreakerThreshold: 5,
			CircuitBreakerCooldown:  30 * time.Second,
			CircuitBreakerWindow:    time.Minute,
		},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour, SweepInterval: time.Hour, SweepBatchSize: 1000},
		Outbox:      OutboxConfig{PollInterval: 2 * time.Second, BatchSize: 50},
		Webhook: WebhookConfig{
			MaxRetries:        5,
			InitialRetryDelay: time.Second,
			PollInterval:      10 * time.Second,
			BatchSize:         50,
			SendTimeout:       30 * time.Second,
		},
		Worker: WorkerConfig{BatchSize: 10, BlockDuration: time.Second, ConsumerGroup: "payment-processors"},
	}
}
