package circuitbreaker

import (
	"context"
	"errors"
	"time"
)

// RetryConfig represents the configuration for retry logic
type RetryConfig struct {
	// MaxAttempts includes the first call (default: 3)
	MaxAttempts int
	// InitialInterval is the first delay (default: 100ms)
	InitialInterval time.Duration
	// MaxInterval caps the delay (default: 1s)
	MaxInterval time.Duration
	// Multiplier grows the delay after every attempt (default: 2.0)
	Multiplier float64
	// Retryable reports whether err is worth another attempt, nil retries all
	Retryable func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}
}

// Retry calls fn until it succeeds, the error is not retryable, attempts
// run out or ctx is done. Waits between attempts honor ctx.
func Retry(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	interval := config.InitialInterval
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-t.C:
		}
		if config.Multiplier > 1 {
			interval = time.Duration(float64(interval) * config.Multiplier)
		}
		if config.MaxInterval > 0 && interval > config.MaxInterval {
			interval = config.MaxInterval
		}
	}
	return lastErr
}

// RetryWithCircuitBreaker retries fn through cb. An open circuit is not
// retried.
func RetryWithCircuitBreaker(ctx context.Context, cb *CircuitBreaker, config *RetryConfig, fn func(ctx context.Context) error) error {
	if cb == nil {
		return Retry(ctx, config, fn)
	}
	c := DefaultRetryConfig()
	if config != nil {
		copied := *config
		c = &copied
	}
	retryable := c.Retryable
	c.Retryable = func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
			return false
		}
		return retryable == nil || retryable(err)
	}
	return Retry(ctx, c, func(ctx context.Context) error {
		return cb.Execute(ctx, fn)
	})
}
