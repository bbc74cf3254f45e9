// Package retry wraps fallible calls with bounded-attempt exponential backoff.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config controls the retry schedule.
type Config struct {
	MaxAttempts int           // total invocations, not re-tries
	Delay       time.Duration // wait before the second attempt
	Backoff     float64       // delay multiplier between attempts
	Logger      *zap.Logger
	// Retryable decides whether an error is worth another attempt.
	// nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultConfig matches the schedule used for exchange REST calls:
// three attempts, one second initial delay, doubling between attempts.
func DefaultConfig(logger *zap.Logger) Config {
	return Config{
		MaxAttempts: 3,
		Delay:       time.Second,
		Backoff:     2.0,
		Logger:      logger,
	}
}

// Do invokes fn until it succeeds or attempts are exhausted. Interim
// failures are logged at warn level; the final failure is returned
// unchanged. Context cancellation aborts the wait between attempts.
func Do(ctx context.Context, cfg Config, name string, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.Delay
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("retrying-after-failure",
				zap.String("call", name),
				zap.Int("attempt", attempt),
				zap.Int("max-attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Backoff)
	}

	if cfg.Logger != nil {
		cfg.Logger.Error("call-failed-after-retries",
			zap.String("call", name),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}

	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, cfg Config, name string, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, name, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
