package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "@RocketShoes:cart", cfg.StorageKey)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMongo)
	t.Setenv("REQUEST_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("BREAKER_MAX_FAILURES", "3")
	t.Setenv("CART_STORAGE_KEY", "@Test:cart")

	cfg := Load()

	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint32(3), cfg.BreakerMaxFailures)
	assert.Equal(t, "@Test:cart", cfg.StorageKey)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("BREAKER_MAX_FAILURES", "-2")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
}
