package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many trial requests pass while half-open.
	HalfOpenRequests uint32
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// New builds a breaker that trips after cfg.MaxFailures consecutive failures.
// isSuccessful lets callers count some errors (e.g. 404) as healthy responses;
// nil treats every error as a failure.
func New[T any](name string, cfg Config, isSuccessful func(error) bool, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			}
		},
		IsSuccessful: isSuccessful,
	})
}
