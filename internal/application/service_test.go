package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/memory"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

var testNow = time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	store          *memory.Store
	batches        *BatchService
	crates         *CrateService
	reconciliation *ReconciliationService
}

func newTestEnv(t *testing.T, photos PhotoStore) *testEnv {
	t.Helper()
	store := memory.NewStore(cloudevents.NewEventFactory(cloudevents.SourceDispatch))
	logger := logging.New(logging.DefaultConfig("test"))
	clock := func() time.Time { return testNow }

	env := &testEnv{
		store:          store,
		batches:        NewBatchService(store, logger, nil),
		crates:         NewCrateService(store, photos, logger, nil),
		reconciliation: NewReconciliationService(store, photos, logger, nil),
	}
	env.batches.now = clock
	env.crates.now = clock
	env.reconciliation.now = clock
	return env
}

func (e *testEnv) registerCrate(t *testing.T, seq int, weight float64) *domain.Crate {
	t.Helper()
	code, err := domain.NewCrateCode(testNow, seq)
	require.NoError(t, err)
	crate, err := e.crates.RegisterCrate(context.Background(), RegisterCrateCommand{
		QRCode:       code.Value(),
		Variety:      "Alphonso",
		Weight:       weight,
		QualityGrade: domain.QualityGradeA,
		SupervisorID: "sup-1",
	})
	require.NoError(t, err)
	return crate
}

func (e *testEnv) createBatch(t *testing.T) *domain.Batch {
	t.Helper()
	batch, err := e.batches.CreateBatch(context.Background(), CreateBatchCommand{
		OriginID:      "farm-1",
		DestinationID: "packhouse-1",
		TransportMode: domain.TransportModeTruck,
		SupervisorID:  "sup-1",
	})
	require.NoError(t, err)
	return batch
}

// arrivedBatch creates a batch holding one crate per weight and drives it to arrived.
// Crate sequence numbers start at firstSeq.
func (e *testEnv) arrivedBatch(t *testing.T, firstSeq int, weights ...float64) (*domain.Batch, []*domain.Crate) {
	t.Helper()
	ctx := context.Background()
	batch := e.createBatch(t)

	crates := make([]*domain.Crate, 0, len(weights))
	for i, w := range weights {
		crate := e.registerCrate(t, firstSeq+i, w)
		_, err := e.batches.AddCrate(ctx, AddCrateCommand{BatchID: batch.ID, QRCode: crate.QRCode})
		require.NoError(t, err)
		crates = append(crates, crate)
	}

	_, err := e.batches.Depart(ctx, batch.ID)
	require.NoError(t, err)
	batch, err = e.batches.Arrive(ctx, batch.ID)
	require.NoError(t, err)
	return batch, crates
}

func (e *testEnv) eventTypes() []string {
	var types []string
	for _, ev := range e.store.Outbox().Snapshot() {
		types = append(types, ev.EventType)
	}
	return types
}

type failingPhotoStore struct{ calls int }

func (f *failingPhotoStore) Upload(context.Context, string, []byte, string) (string, error) {
	f.calls++
	return "", errors.New("bucket unreachable")
}
