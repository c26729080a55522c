// Package events converts pending aggregate events into outbox entries.
package events

import (
	"context"
	"fmt"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/kafka"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/outbox"
)

// Aggregate types recorded on outbox entries
const (
	AggregateBatch = "Batch"
	AggregateCrate = "Crate"
)

// ForBatch builds outbox entries for the pending events of a batch
func ForBatch(ctx context.Context, factory *cloudevents.EventFactory, batch *domain.Batch) ([]*outbox.OutboxEvent, error) {
	return build(ctx, factory, batch.ID, AggregateBatch, "batch/"+batch.ID, batch.ID, batch.GetDomainEvents())
}

// ForCrate builds outbox entries for the pending events of a crate
func ForCrate(ctx context.Context, factory *cloudevents.EventFactory, crate *domain.Crate) ([]*outbox.OutboxEvent, error) {
	return build(ctx, factory, crate.ID, AggregateCrate, "crate/"+crate.ID, crate.BatchID, crate.GetDomainEvents())
}

func build(
	ctx context.Context,
	factory *cloudevents.EventFactory,
	aggregateID, aggregateType, subject, batchID string,
	pending []domain.DomainEvent,
) ([]*outbox.OutboxEvent, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	out := make([]*outbox.OutboxEvent, 0, len(pending))
	for _, event := range pending {
		ce := factory.FromDomainEvent(ctx, subject, batchID, event)
		entry, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, kafka.TopicFor(ce.Type), ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event %s: %w", event.EventType(), err)
		}
		out = append(out, entry)
	}
	return out, nil
}
