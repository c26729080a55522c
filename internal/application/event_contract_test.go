package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/contracts/asyncapi"
)

// Every event written to the outbox during a full batch lifecycle must match
// the published AsyncAPI document and be routed to its declared channel.
func TestPublishedEventsMatchAsyncAPI(t *testing.T) {
	validator, err := asyncapi.NewEventValidator("../../docs/asyncapi.yaml")
	require.NoError(t, err)

	env := newTestEnv(t, nil)
	ctx := context.Background()

	batch, crates := env.arrivedBatch(t, 1, 10, 12.5)
	for _, crate := range crates {
		_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{
			BatchID:  batch.ID,
			QRCode:   crate.QRCode,
			Weight:   crate.Weight - 0.4,
			PhotoURL: "https://photos/arrival.jpg",
		})
		require.NoError(t, err)
	}
	_, err = env.batches.Deliver(ctx, batch.ID)
	require.NoError(t, err)
	_, err = env.batches.Close(ctx, batch.ID)
	require.NoError(t, err)

	cancelled := env.createBatch(t)
	driver := "Ravi"
	_, err = env.batches.UpdateDetails(ctx, UpdateBatchCommand{BatchID: cancelled.ID, Details: domain.BatchDetails{DriverName: &driver}})
	require.NoError(t, err)
	_, err = env.batches.Cancel(ctx, CancelBatchCommand{BatchID: cancelled.ID, Reason: "rain"})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, entry := range env.store.Outbox().Snapshot() {
		assert.NoError(t, validator.ValidateEventJSON(entry.Payload), "%s: %s", entry.EventType, entry.Payload)

		channel, ok := validator.ChannelFor(entry.EventType)
		if assert.True(t, ok, entry.EventType) {
			assert.Equal(t, channel, entry.Topic, entry.EventType)
		}
		seen[entry.EventType] = true
	}

	for _, eventType := range validator.SupportedEventTypes() {
		assert.True(t, seen[eventType], "no %s event emitted", eventType)
	}
}
