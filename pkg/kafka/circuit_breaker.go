package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

// CircuitBreakerProducer wraps a publisher with circuit breaker protection.
// While the breaker is open the outbox keeps events and retries on the next poll.
type CircuitBreakerProducer struct {
	producer       EventPublisher
	circuitBreaker *resilience.CircuitBreaker
}

// NewCircuitBreakerProducer creates a new circuit breaker protected Kafka producer
func NewCircuitBreakerProducer(producer EventPublisher, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerProducer {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "kafka-producer",
		MaxRequests:           5,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}

	slogLogger := slog.Default()
	if logger != nil && logger.Logger != nil {
		slogLogger = logger.Logger
	}

	return &CircuitBreakerProducer{
		producer:       producer,
		circuitBreaker: resilience.NewCircuitBreaker(config, slogLogger).WithMetrics(m),
	}
}

// PublishEvent publishes a CloudEvent with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.DispatchCloudEvent) error {
	_, err := p.circuitBreaker.Execute(ctx, func() (any, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	return err
}

// State returns the breaker state name
func (p *CircuitBreakerProducer) State() string {
	return p.circuitBreaker.State().String()
}

// NewProductionProducer creates a fully wrapped producer with metrics,
// tracing and circuit breaker
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) (*CircuitBreakerProducer, func() error) {
	instrumented := NewInstrumentedProducer(NewProducer(config), m, logger)
	return NewCircuitBreakerProducer(instrumented, m, logger), instrumented.Close
}
