package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

var now = time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)

func TestForBatch(t *testing.T) {
	code, err := domain.NewBatchCode(now, 3)
	require.NoError(t, err)
	batch, err := domain.NewBatch(domain.NewBatchParams{
		ID: "batch-1", Code: code, OriginID: "farm-1", SupervisorID: "sup-1",
	}, now)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), logging.CorrelationIDKey, "corr-1")
	entries, err := ForBatch(ctx, cloudevents.NewEventFactory(cloudevents.SourceDispatch), batch)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "batch-1", entry.AggregateID)
	assert.Equal(t, AggregateBatch, entry.AggregateType)
	assert.Equal(t, domain.EventTypeBatchCreated, entry.EventType)
	assert.Equal(t, "dispatch.batches", entry.Topic)

	ce, err := entry.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "batch/batch-1", ce.Subject)
	assert.Equal(t, "corr-1", ce.CorrelationID)
	assert.Equal(t, now, ce.Time)

	data, err := json.Marshal(ce.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"batchCode":"BT-061525-003"`)
}

func TestForCrate(t *testing.T) {
	code, err := domain.NewCrateCode(now, 1)
	require.NoError(t, err)
	crate, err := domain.NewCrate(domain.NewCrateParams{
		ID: "crate-1", QRCode: code, Variety: "Alphonso", Weight: 10, SupervisorID: "sup-1",
	}, now)
	require.NoError(t, err)

	entries, err := ForCrate(context.Background(), cloudevents.NewEventFactory(cloudevents.SourceCrateRegistry), crate)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dispatch.crates", entries[0].Topic)
	assert.Equal(t, domain.EventTypeCrateRegistered, entries[0].EventType)

	crate.ClearDomainEvents()
	entries, err = ForCrate(context.Background(), cloudevents.NewEventFactory(cloudevents.SourceCrateRegistry), crate)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
