// Package storage holds the photo stores used for harvest and arrival photos.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

// Backend is a named photo store
type Backend interface {
	Name() string
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// GuardedStore bounds every upload with a timeout and a circuit breaker so a
// slow or failing backend cannot hold up reconciliation.
type GuardedStore struct {
	backend Backend
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewGuardedStore wraps backend. breaker and m may be nil.
func NewGuardedStore(backend Backend, breaker *resilience.CircuitBreaker, timeout time.Duration, m *metrics.Metrics) *GuardedStore {
	return &GuardedStore{backend: backend, breaker: breaker, timeout: timeout, metrics: m}
}

func (s *GuardedStore) Name() string { return s.backend.Name() }

func (s *GuardedStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		url string
		err error
	)
	if s.breaker == nil {
		url, err = s.backend.Upload(ctx, key, data, contentType)
	} else {
		var result any
		result, err = s.breaker.Execute(ctx, func() (any, error) {
			return s.backend.Upload(ctx, key, data, contentType)
		})
		if err == nil {
			url = result.(string)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordPhotoUpload(s.backend.Name(), err == nil, time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("photo upload to %s: %w", s.backend.Name(), err)
	}
	return url, nil
}
