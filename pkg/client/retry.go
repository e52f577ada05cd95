package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marvel_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marvel_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// newBackOff builds an exponential backoff with ±20% jitter bounded by the
// retry count and ctx.
func newBackOff(ctx context.Context, cfg RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.Multiplier = cfg.BackoffMultiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxRetries)), ctx)
}

// retryWithBackoff executes fn until it succeeds, returns a non-retryable
// error, the retries run out or ctx is done.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	attempts := 0
	var lastErr error

	op := func() error {
		attempts++
		err := fn()
		if err == nil {
			if attempts > 1 {
				logger.Info().
					Int("attempt", attempts).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		kind := errorLabel(err)
		retriesTotal.WithLabelValues(kind).Inc()
		retryBackoffSeconds.WithLabelValues(kind).Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Str("error_kind", kind).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	}

	err := backoff.RetryNotify(op, newBackOff(ctx, cfg), notify)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// Cancelled while waiting; surface the failure that caused the wait.
		if lastErr != nil && !errors.Is(lastErr, ctxErr) {
			return fmt.Errorf("%w: %w", ctxErr, lastErr)
		}
		return ctxErr
	}

	if shouldRetry(err) {
		kind := errorLabel(err)
		retryExhaustedTotal.WithLabelValues(kind).Inc()
		logger.Error().
			Err(err).
			Str("error_kind", kind).
			Int("attempts", attempts).
			Msg("Retry attempts exhausted")
		return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
	}

	return err
}
