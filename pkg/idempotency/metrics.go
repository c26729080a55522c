package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds idempotency-related Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// Labels: service, endpoint, method
	Hits                   *prometheus.CounterVec
	Misses                 *prometheus.CounterVec
	ParameterMismatches    *prometheus.CounterVec
	ConcurrentCollisions   *prometheus.CounterVec
	Releases               *prometheus.CounterVec
	LockAcquisitionSeconds *prometheus.HistogramVec

	// Labels: service, operation
	StorageErrors *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics with registry, or the default registerer when nil
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	labels := []string{"service", "endpoint", "method"}

	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_hits_total",
			Help:      "Requests answered from a stored response",
		}, labels),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_misses_total",
			Help:      "Requests processed under a new key",
		}, labels),
		ParameterMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_parameter_mismatches_total",
			Help:      "Keys reused with a different request",
		}, labels),
		ConcurrentCollisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_concurrent_collisions_total",
			Help:      "Requests rejected because the key was still locked",
		}, labels),
		Releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_releases_total",
			Help:      "Keys released after a server error so the client can retry",
		}, labels),
		LockAcquisitionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "idempotency_lock_acquisition_duration_seconds",
			Help:      "Time taken to acquire an idempotency lock",
			Buckets:   prometheus.DefBuckets,
		}, labels),
		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "idempotency_storage_errors_total",
			Help:      "Idempotency storage failures",
		}, []string{"service", "operation"}),
	}
}

func (m *Metrics) RecordHit(service, endpoint, method string) {
	if m != nil {
		m.Hits.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) RecordMiss(service, endpoint, method string) {
	if m != nil {
		m.Misses.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) RecordParameterMismatch(service, endpoint, method string) {
	if m != nil {
		m.ParameterMismatches.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) RecordConcurrentCollision(service, endpoint, method string) {
	if m != nil {
		m.ConcurrentCollisions.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) RecordRelease(service, endpoint, method string) {
	if m != nil {
		m.Releases.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) RecordLockAcquisitionDuration(service, endpoint, method string, seconds float64) {
	if m != nil {
		m.LockAcquisitionSeconds.WithLabelValues(service, endpoint, method).Observe(seconds)
	}
}

func (m *Metrics) RecordStorageError(service, operation string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(service, operation).Inc()
	}
}
