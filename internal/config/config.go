package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort        string
	APIBaseURL      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StoreBackend  string
	StorageKey    string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string

	KafkaBrokers []string
	NotifyTopic  string

	TraceExporter string

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	FakeAPIPort string
	FakeAPISeed string
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:3333"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		StoreBackend:  getEnv("STORE_BACKEND", BackendRedis),
		StorageKey:    getEnv("CART_STORAGE_KEY", "@RocketShoes:cart"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		NotifyTopic:  getEnv("NOTIFY_TOPIC", "cart-notifications"),

		TraceExporter: getEnv("TRACE_EXPORTER", "none"),

		BreakerMaxFailures: uint32(getEnvInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		FakeAPIPort: getEnv("FAKE_API_PORT", "3333"),
		FakeAPISeed: getEnv("FAKE_API_SEED", "server.json"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
