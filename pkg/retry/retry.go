// Package retry implements exponential-backoff retry for remote calls.
//
// The schedule is deterministic: the wait before retry n (0-indexed) is
// Unit * Factor^n, so with the defaults the delays run 1s, 2s, 4s, 8s, 16s.
// There is no jitter; the Data Bridges API rate-limits per credential, not
// per fleet, so synchronized retries across processes are not a concern.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_retries_total",
		Help: "Total number of retry attempts by operation",
	}, []string{"operation"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridges_retry_backoff_seconds",
		Help:    "Backoff duration before retries by operation",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"operation"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by operation",
	}, []string{"operation"})
)

// Common errors returned by the retry executor.
var (
	// ErrExhausted is returned when all retry attempts are exhausted.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a
	// backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// Config holds the retry schedule parameters.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Factor is the exponential backoff multiplier.
	Factor float64

	// Unit is the base delay; the wait before retry n is Unit * Factor^n.
	Unit time.Duration
}

// DefaultConfig returns the schedule used for page fetches.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Factor:      2.0,
		Unit:        1 * time.Second,
	}
}

// TokenConfig returns the schedule used for token refreshes.
func TokenConfig() Config {
	return Config{
		MaxAttempts: 5,
		Factor:      2.0,
		Unit:        1 * time.Second,
	}
}

// Delay returns the backoff duration before retry attempt n (0-indexed).
func (c Config) Delay(attempt int) time.Duration {
	return time.Duration(float64(c.Unit) * math.Pow(c.Factor, float64(attempt)))
}

// Do executes fn until it succeeds, fails with a non-retryable error, or the
// attempt budget runs out. retryable classifies each failure; non-retryable
// errors are returned as-is without further attempts. Backoff waits respect
// context cancellation.
func Do(ctx context.Context, logger zerolog.Logger, operation string, cfg Config, retryable func(error) bool, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info().
					Str("operation", operation).
					Int("attempt", attempt+1).
					Msg("Call succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return lastErr
		}

		// No wait after the final attempt.
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		wait := cfg.Delay(attempt)
		retriesTotal.WithLabelValues(operation).Inc()
		retryBackoffSeconds.WithLabelValues(operation).Observe(wait.Seconds())

		logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}
	}

	retryExhaustedTotal.WithLabelValues(operation).Inc()
	logger.Warn().
		Str("operation", operation).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}
