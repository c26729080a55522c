package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

type fakeProducer struct {
	mu        sync.Mutex
	published map[string][]string
	failTopic string
}

func (f *fakeProducer) PublishEvent(_ context.Context, topic string, event *cloudevents.DispatchCloudEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failTopic {
		return errors.New("broker down")
	}
	if f.published == nil {
		f.published = map[string][]string{}
	}
	f.published[topic] = append(f.published[topic], event.Type)
	return nil
}

func saveEvent(t *testing.T, repo Repository, aggregateID, topic, eventType string) *OutboxEvent {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourceDispatch).
		CreateEvent(context.Background(), eventType, "batch/"+aggregateID, nil)
	event, err := NewOutboxEventFromCloudEvent(aggregateID, "batch", topic, ce)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), event))
	return event
}

func TestPublisher_ProcessOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	producer := &fakeProducer{failTopic: "dispatch.crates"}
	logger := logging.New(logging.DefaultConfig("outbox-test"))

	saveEvent(t, repo, "b1", "dispatch.batches", "dispatch.batch.created")
	saveEvent(t, repo, "b1", "dispatch.batches", "dispatch.batch.departed")
	failing := saveEvent(t, repo, "c1", "dispatch.crates", "dispatch.crate.reconciled")

	publisher := NewPublisher(repo, producer, logger, nil, DefaultPublisherConfig())
	publisher.ProcessOnce(ctx)

	assert.Equal(t, []string{"dispatch.batch.created", "dispatch.batch.departed"}, producer.published["dispatch.batches"])
	assert.Equal(t, map[string]int{"published": 2, "failed": 1}, publisher.Stats())

	pending, err := repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, failing.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Contains(t, pending[0].LastError, "broker down")
}

func TestOutboxEvent_RetryBudget(t *testing.T) {
	repo := NewMemoryRepository()
	event := saveEvent(t, repo, "c1", "dispatch.crates", "dispatch.crate.registered")

	for i := 0; i < DefaultMaxRetries; i++ {
		require.NoError(t, repo.IncrementRetry(context.Background(), event.ID, "boom"))
	}

	pending, err := repo.FindUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	roundTrip, err := event.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "dispatch.crate.registered", roundTrip.Type)
}
