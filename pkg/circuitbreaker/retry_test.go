package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetry_NotRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	config := fastRetry(5)
	config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Retry(context.Background(), config, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{MaxAttempts: 5, InitialInterval: time.Hour}

	calls := 0
	err := Retry(ctx, config, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCircuitBreaker_DoesNotRetryOpenCircuit(t *testing.T) {
	cb, _ := newTestBreaker(&Config{Name: "t", MaxFailures: 2, Timeout: time.Hour})

	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), cb, fastRetry(5), func(context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateOpen, cb.State())
}

func TestRetryWithCircuitBreaker_NilBreaker(t *testing.T) {
	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), nil, fastRetry(2), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
