package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	config := DefaultCircuitBreakerConfig("photo-store")
	config.FailureThreshold = 2
	cb := NewCircuitBreaker(config, nil)

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func() (any, error) { return nil, errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(context.Background(), func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IsSuccessfulIgnoresRejections(t *testing.T) {
	errRejected := errors.New("rejected by business rule")
	config := DefaultCircuitBreakerConfig("mongodb")
	config.FailureThreshold = 1
	config.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errRejected) }
	cb := NewCircuitBreaker(config, nil)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func() (any, error) { return nil, errRejected })
		assert.ErrorIs(t, err, errRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	_, err := cb.Execute(context.Background(), func() (any, error) { return nil, errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("kafka-producer"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cb.Counts().Requests)
}

func TestRetryWithResult(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: func(err error) bool { return errors.Is(err, errUpstream) },
	}

	attempts := 0
	got, err := RetryWithResult(context.Background(), config, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errUpstream
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)

	attempts = 0
	permanent := errors.New("bad request")
	_, err = RetryWithResult(context.Background(), config, func() (int, error) {
		attempts++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}
