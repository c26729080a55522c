package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/storage"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
)

func TestReconciliationService_Scenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	batch, crates := env.arrivedBatch(t, 1, 10, 12, 8)

	result, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5})
	require.NoError(t, err)
	assert.Equal(t, "1/3 crates (33%)", result.Progress.Label)
	assert.Equal(t, 0.5, result.Weights.TotalWeightDifferential)
	assert.Equal(t, 5.0, result.Weights.WeightLossPercentage)
	assert.Equal(t, 1, result.Batch.Aggregates.ReconciledCount)
	assert.Equal(t, 30.0, result.Batch.Aggregates.TotalWeight)
	assert.Equal(t, 0.5, result.Record.Differential)
	assert.NotEmpty(t, result.Record.ID)

	_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[1].QRCode, Weight: 11})
	require.NoError(t, err)
	result, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[2].QRCode, Weight: 8.2})
	require.NoError(t, err)

	assert.True(t, result.Progress.IsFullyReconciled)
	assert.Equal(t, "3/3 crates (100%)", result.Progress.Label)
	assert.Equal(t, 1.3, result.Weights.TotalWeightDifferential)
	assert.Equal(t, 4.33, result.Weights.WeightLossPercentage)
	assert.Equal(t, 28.7, result.Weights.TotalReconciledWeight)

	stored, err := env.batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Aggregates.ReconciledCount)
	assert.True(t, stored.IsFullyReconciled())

	records, err := env.reconciliation.ListRecords(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestReconciliationService_DuplicateReturnsExistingRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := logging.ContextWithUserID(context.Background(), "clerk-7")
	batch, crates := env.arrivedBatch(t, 1, 10, 12)

	first, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5})
	require.NoError(t, err)
	assert.Equal(t, "clerk-7", first.Record.RecordedBy)

	_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 7})
	var dup *domain.DuplicateReconciliationError
	require.True(t, errors.As(err, &dup))
	require.NotNil(t, dup.Record)
	assert.Equal(t, first.Record.ID, dup.Record.ID)
	assert.Equal(t, 9.5, dup.Record.ReconciledWeight)

	stored, err := env.batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Aggregates.ReconciledCount)

	scans, err := env.reconciliation.ListScans(ctx, batch.ID, 0)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, domain.ScanOutcomeDuplicate, scans[0].Outcome)
	assert.Equal(t, domain.ScanOutcomeMatched, scans[1].Outcome)
	assert.Equal(t, "clerk-7", scans[0].ScannedBy)
}

func TestReconciliationService_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("crate of another batch is not found", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch, _ := env.arrivedBatch(t, 1, 10)
		_, others := env.arrivedBatch(t, 10, 12)

		_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: others[0].QRCode, Weight: 11, DeviceID: "scanner-2"})
		var notFound *domain.NotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, "crate", notFound.Resource)
		assert.Equal(t, batch.Code, notFound.Batch)
		assert.Equal(t, "crate "+others[0].QRCode+" not found in batch "+batch.Code, err.Error())

		scans, err := env.reconciliation.ListScans(ctx, batch.ID, 10)
		require.NoError(t, err)
		require.Len(t, scans, 1)
		assert.Equal(t, domain.ScanOutcomeWrongBatch, scans[0].Outcome)
		assert.Equal(t, others[0].ID, scans[0].CrateID)
		assert.Equal(t, "scanner-2", scans[0].DeviceID)

		crate, err := env.crates.GetCrate(ctx, others[0].ID)
		require.NoError(t, err)
		assert.False(t, crate.Reconciled)
	})

	t.Run("unknown crate", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch, _ := env.arrivedBatch(t, 1, 10)

		_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: "CR-061525-050", Weight: 11})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("non-positive weight", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch, crates := env.arrivedBatch(t, 1, 10)

		for _, w := range []float64{0, -2} {
			_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: w})
			assert.True(t, errors.Is(err, domain.ErrValidation))
		}

		scans, err := env.reconciliation.ListScans(ctx, batch.ID, 10)
		require.NoError(t, err)
		require.Len(t, scans, 2)
		assert.Equal(t, domain.ScanOutcomeRejected, scans[0].Outcome)
	})

	t.Run("batch not arrived", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch := env.createBatch(t)
		crate := env.registerCrate(t, 1, 10)
		_, err := env.batches.AddCrate(ctx, AddCrateCommand{BatchID: batch.ID, QRCode: crate.QRCode})
		require.NoError(t, err)
		_, err = env.batches.Depart(ctx, batch.ID)
		require.NoError(t, err)

		_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crate.QRCode, Weight: 9})
		var transition *domain.InvalidStateTransitionError
		require.True(t, errors.As(err, &transition))
		assert.Equal(t, domain.BatchStatusInTransit, transition.Current)

		records, err := env.reconciliation.ListRecords(ctx, batch.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed qr code", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch, _ := env.arrivedBatch(t, 1, 10)

		_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: "not-a-code", Weight: 9})
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}

func TestReconciliationService_ConcurrentSameCrate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	batch, crates := env.arrivedBatch(t, 1, 10, 12)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		records   = make(map[string]int)
	)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{
				BatchID: batch.ID,
				QRCode:  crates[0].QRCode,
				Weight:  9 + float64(i)/100,
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				records[result.Record.ID]++
				return
			}
			var dup *domain.DuplicateReconciliationError
			if assert.True(t, errors.As(err, &dup)) && assert.NotNil(t, dup.Record) {
				records[dup.Record.ID]++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, records, 1)

	stored, err := env.batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Aggregates.ReconciledCount)

	list, err := env.reconciliation.ListRecords(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReconciliationService_PhotoUpload(t *testing.T) {
	ctx := context.Background()
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	t.Run("stored photo url is recorded", func(t *testing.T) {
		photos := storage.NewMemoryStore()
		env := newTestEnv(t, photos)
		batch, crates := env.arrivedBatch(t, 1, 10)

		result, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5, Photo: jpeg})
		require.NoError(t, err)
		assert.Equal(t, "memory://reconciliations/"+batch.ID+"/"+crates[0].QRCode+".jpg", result.Record.PhotoURL)
		assert.Equal(t, 1, photos.Len())
	})

	t.Run("rejected and retried scans store one photo", func(t *testing.T) {
		photos := storage.NewMemoryStore()
		env := newTestEnv(t, photos)
		batch, crates := env.arrivedBatch(t, 1, 10, 12)
		_, others := env.arrivedBatch(t, 10, 8)

		_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: "missing", QRCode: crates[0].QRCode, Weight: 9.5, Photo: jpeg})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: others[0].QRCode, Weight: 7.5, Photo: jpeg})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Zero(t, photos.Len())

		first, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5, Photo: jpeg})
		require.NoError(t, err)
		_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5, Photo: jpeg})
		var dup *domain.DuplicateReconciliationError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, first.Record.PhotoURL, dup.Record.PhotoURL)

		assert.Equal(t, 1, photos.Len())
		_, ok := photos.Get("reconciliations/" + batch.ID + "/" + crates[0].QRCode + ".jpg")
		assert.True(t, ok)

		scans, err := env.reconciliation.ListScans(ctx, batch.ID, 10)
		require.NoError(t, err)
		require.Len(t, scans, 3)
		assert.Equal(t, domain.ScanOutcomeDuplicate, scans[0].Outcome)
		assert.Equal(t, domain.ScanOutcomeWrongBatch, scans[2].Outcome)
	})

	t.Run("failed upload does not block reconciliation", func(t *testing.T) {
		photos := &failingPhotoStore{}
		env := newTestEnv(t, photos)
		batch, crates := env.arrivedBatch(t, 1, 10)

		result, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5, Photo: jpeg})
		require.NoError(t, err)
		assert.Empty(t, result.Record.PhotoURL)
		assert.Equal(t, 1, photos.calls)
	})

	t.Run("photo url passes through", func(t *testing.T) {
		env := newTestEnv(t, nil)
		batch, crates := env.arrivedBatch(t, 1, 10)

		result, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5, PhotoURL: "https://photos/x.jpg"})
		require.NoError(t, err)
		assert.Equal(t, "https://photos/x.jpg", result.Record.PhotoURL)
	})
}

func TestReconciliationService_Summary(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	batch, crates := env.arrivedBatch(t, 1, 10, 12)
	env.createBatch(t)
	env.registerCrate(t, 20, 5)

	_, err := env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5})
	require.NoError(t, err)
	_, err = env.reconciliation.Reconcile(ctx, ReconcileCrateCommand{BatchID: batch.ID, QRCode: crates[0].QRCode, Weight: 9.5})
	require.Error(t, err)

	summary, err := env.reconciliation.Summary(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalCrates)
	assert.Equal(t, int64(1), summary.ReconciledCrates)
	assert.Equal(t, 33.33, summary.ReconciliationRate)
	assert.Contains(t, summary.BatchesByStatus, domain.StatusCount{Status: domain.BatchStatusArrived, Count: 1})
	assert.Contains(t, summary.BatchesByStatus, domain.StatusCount{Status: domain.BatchStatusOpen, Count: 1})
	assert.Contains(t, summary.ScansByOutcome, domain.OutcomeCount{Outcome: domain.ScanOutcomeMatched, Count: 1})
	assert.Contains(t, summary.ScansByOutcome, domain.OutcomeCount{Outcome: domain.ScanOutcomeDuplicate, Count: 1})
	assert.Equal(t, []domain.DailyCount{
		{Date: "2025-06-13", Count: 0},
		{Date: "2025-06-14", Count: 0},
		{Date: "2025-06-15", Count: 2},
	}, summary.DailyScans)

	_, err = env.reconciliation.ListScans(ctx, "missing", 10)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
