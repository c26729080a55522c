package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

// Occurrence is the part of a domain event the factory needs
type Occurrence interface {
	EventType() string
	OccurredAt() time.Time
}

// EventFactory creates CloudEvents for dispatch domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// Source returns the source attribute stamped on every event
func (f *EventFactory) Source() string {
	return f.source
}

// CreateEvent creates a new event. Correlation and actor ids are taken from
// the request context when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data any) *DispatchCloudEvent {
	event := &DispatchCloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if ctx != nil {
		if id, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			event.CorrelationID = id
		}
		if id, ok := ctx.Value(logging.UserIDKey).(string); ok {
			event.ActorID = id
		}
	}

	return event
}

// FromDomainEvent wraps a domain event, using its occurrence time as the
// event time. batchID may be empty for crates not yet assigned.
func (f *EventFactory) FromDomainEvent(ctx context.Context, subject, batchID string, event Occurrence) *DispatchCloudEvent {
	ce := f.CreateEvent(ctx, event.EventType(), subject, event)
	if t := event.OccurredAt(); !t.IsZero() {
		ce.Time = t.UTC()
	}
	ce.BatchID = batchID
	return ce
}
