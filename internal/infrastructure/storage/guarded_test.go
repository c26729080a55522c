package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

type flakyBackend struct {
	calls int
	err   error
	delay time.Duration
}

func (f *flakyBackend) Name() string { return "flaky" }

func (f *flakyBackend) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return "flaky://" + key, nil
}

func TestGuardedStore_PassesThrough(t *testing.T) {
	mem := NewMemoryStore()
	store := NewGuardedStore(mem, resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("photo-store"), nil), time.Second, nil)

	url, err := store.Upload(context.Background(), "crates/c1/harvest.jpg", []byte{1, 2, 3}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "memory://crates/c1/harvest.jpg", url)

	obj, ok := mem.Get("crates/c1/harvest.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, obj.Data)
	assert.Equal(t, "memory", store.Name())
}

func TestGuardedStore_Timeout(t *testing.T) {
	backend := &flakyBackend{delay: time.Second}
	store := NewGuardedStore(backend, nil, 10*time.Millisecond, nil)

	_, err := store.Upload(context.Background(), "k", nil, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardedStore_OpensBreaker(t *testing.T) {
	backend := &flakyBackend{err: errors.New("503 slow down")}
	config := resilience.DefaultCircuitBreakerConfig("photo-store")
	config.FailureThreshold = 2
	store := NewGuardedStore(backend, resilience.NewCircuitBreaker(config, nil), time.Second, nil)

	for i := 0; i < 2; i++ {
		_, err := store.Upload(context.Background(), "k", nil, "")
		assert.Error(t, err)
	}

	_, err := store.Upload(context.Background(), "k", nil, "")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, backend.calls)
}
