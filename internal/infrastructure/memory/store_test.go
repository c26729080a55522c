package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
)

var testNow = time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return NewStore(cloudevents.NewEventFactory(cloudevents.SourceDispatch))
}

func newBatch(t *testing.T, seq int) *domain.Batch {
	t.Helper()
	code, err := domain.NewBatchCode(testNow, seq)
	require.NoError(t, err)
	batch, err := domain.NewBatch(domain.NewBatchParams{
		ID:           fmt.Sprintf("batch-%d", seq),
		Code:         code,
		OriginID:     "farm-1",
		SupervisorID: "sup-1",
	}, testNow.Add(time.Duration(seq)*time.Minute))
	require.NoError(t, err)
	return batch
}

func newCrate(t *testing.T, seq int, weight float64) *domain.Crate {
	t.Helper()
	code, err := domain.NewCrateCode(testNow, seq)
	require.NoError(t, err)
	crate, err := domain.NewCrate(domain.NewCrateParams{
		ID:           fmt.Sprintf("crate-%d", seq),
		QRCode:       code,
		Variety:      "Alphonso",
		Weight:       weight,
		SupervisorID: "sup-1",
	}, testNow)
	require.NoError(t, err)
	return crate
}

func TestBatchRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	batch := newBatch(t, 1)

	require.NoError(t, store.Batches().Create(ctx, batch))
	assert.Empty(t, batch.GetDomainEvents())

	found, err := store.Batches().FindByCode(ctx, "BT-061525-001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, batch.ID, found.ID)

	missing, err := store.Batches().FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := newBatch(t, 1)
	dup.ID = "other"
	assert.True(t, errors.Is(store.Batches().Create(ctx, dup), domain.ErrAlreadyExists))

	pending, err := store.Outbox().FindUnpublished(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventTypeBatchCreated, pending[0].EventType)
}

func TestBatchRepository_UpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Batches().Create(ctx, newBatch(t, 1)))

	first, _ := store.Batches().FindByID(ctx, "batch-1")
	second, _ := store.Batches().FindByID(ctx, "batch-1")

	require.NoError(t, first.Cancel("first", testNow))
	require.NoError(t, store.Batches().Update(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	require.NoError(t, second.Cancel("second", testNow))
	err := store.Batches().Update(ctx, second)
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))

	stored, _ := store.Batches().FindByID(ctx, "batch-1")
	assert.Equal(t, "first", stored.CancellationReason)
}

func TestBatchRepository_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Batches().Create(ctx, newBatch(t, i)))
	}
	cancelled, _ := store.Batches().FindByID(ctx, "batch-2")
	require.NoError(t, cancelled.Cancel("", testNow))
	require.NoError(t, store.Batches().Update(ctx, cancelled))

	all, total, err := store.Batches().List(ctx, domain.BatchFilter{}, domain.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, all, 2)
	assert.Equal(t, "batch-5", all[0].ID)

	last, _, err := store.Batches().List(ctx, domain.BatchFilter{}, domain.Pagination{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "batch-1", last[0].ID)

	status := domain.BatchStatusCancelled
	filtered, total, err := store.Batches().List(ctx, domain.BatchFilter{Status: &status}, domain.DefaultPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "batch-2", filtered[0].ID)

	counts, err := store.Batches().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[domain.BatchStatusOpen])
	assert.Equal(t, int64(1), counts[domain.BatchStatusCancelled])
}

func TestCrateRepository_AssignOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Crates().Create(ctx, newCrate(t, 1, 10)))

	a, _ := store.Crates().FindByID(ctx, "crate-1")
	b, _ := store.Crates().FindByID(ctx, "crate-1")

	require.NoError(t, a.AssignToBatch("batch-a", testNow))
	require.NoError(t, store.Crates().AssignToBatch(ctx, a))

	require.NoError(t, b.AssignToBatch("batch-b", testNow))
	err := store.Crates().AssignToBatch(ctx, b)
	var assigned *domain.CrateAssignedError
	require.True(t, errors.As(err, &assigned))
	assert.Equal(t, "batch-a", assigned.BatchID)

	unassigned, total, err := store.Crates().FindUnassigned(ctx, domain.DefaultPagination())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, unassigned)
}

func TestCrateRepository_MarkReconciledOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	crate := newCrate(t, 1, 10)
	crate.BatchID = "batch-1"
	require.NoError(t, store.Crates().Create(ctx, crate))

	first, _ := store.Crates().FindByQRCode(ctx, crate.QRCode)
	_, err := first.Reconcile(9.5, "", testNow)
	require.NoError(t, err)
	require.NoError(t, store.Crates().MarkReconciled(ctx, first))

	second, _ := store.Crates().FindByQRCode(ctx, crate.QRCode)
	assert.True(t, second.Reconciled)
	second.Reconciled = false
	_, err = second.Reconcile(9.0, "", testNow)
	require.NoError(t, err)
	assert.True(t, errors.Is(store.Crates().MarkReconciled(ctx, second), domain.ErrDuplicateReconciliation))

	total, reconciled, err := store.Crates().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), reconciled)
}

func TestReconciliationRepository_OneRecordPerCrate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	record := &domain.ReconciliationRecord{ID: "r1", BatchID: "b", CrateID: "c", RecordedAt: testNow}
	require.NoError(t, store.Reconciliations().Create(ctx, record))

	err := store.Reconciliations().Create(ctx, &domain.ReconciliationRecord{ID: "r2", BatchID: "b", CrateID: "c"})
	var dup *domain.DuplicateReconciliationError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "r1", dup.Record.ID)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	boom := errors.New("boom")

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Batches().Create(ctx, newBatch(t, 1)))
		_, err := store.Sequences().Next(ctx, "batch")
		require.NoError(t, err)
		return boom
	})
	assert.Equal(t, boom, err)

	batch, err := store.Batches().FindByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Nil(t, batch)

	pending, _ := store.Outbox().FindUnpublished(ctx, 0)
	assert.Empty(t, pending)

	next, err := store.Sequences().Next(ctx, "batch")
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestStore_TransactionsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTransaction(ctx, func(ctx context.Context) error {
				_, err := store.Sequences().Next(ctx, "crate")
				return err
			})
		}()
	}
	wg.Wait()

	next, err := store.Sequences().Next(ctx, "crate")
	require.NoError(t, err)
	assert.Equal(t, 51, next)
}

func TestScanRepository_Counts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	scans := []*domain.ScanAttempt{
		{ID: "1", BatchID: "b", Outcome: domain.ScanOutcomeMatched, ScannedAt: testNow.AddDate(0, 0, -3)},
		{ID: "2", BatchID: "b", Outcome: domain.ScanOutcomeMatched, ScannedAt: testNow.AddDate(0, 0, -1)},
		{ID: "3", BatchID: "b", Outcome: domain.ScanOutcomeDuplicate, ScannedAt: testNow},
		{ID: "4", BatchID: "other", Outcome: domain.ScanOutcomeNotFound, ScannedAt: testNow},
	}
	for _, s := range scans {
		require.NoError(t, store.Scans().Append(ctx, s))
	}

	recent, err := store.Scans().FindByBatch(ctx, "b", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)

	since := testNow.AddDate(0, 0, -2)
	byOutcome, err := store.Scans().CountByOutcome(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, map[domain.ScanOutcome]int64{
		domain.ScanOutcomeMatched:   1,
		domain.ScanOutcomeDuplicate: 1,
		domain.ScanOutcomeNotFound:  1,
	}, byOutcome)

	byDay, err := store.Scans().CountByDay(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2025-06-14": 1, "2025-06-15": 2}, byDay)
}

func TestStore_RollbackRestoresOverwrittenEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Batches().Create(ctx, newBatch(t, 1)))
	require.NoError(t, store.Scans().Append(ctx, &domain.ScanAttempt{ID: "s0", BatchID: "batch-1"}))

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		batch, err := store.Batches().FindByID(ctx, "batch-1")
		require.NoError(t, err)
		require.NoError(t, batch.Cancel("mistake", testNow))
		require.NoError(t, store.Batches().Update(ctx, batch))
		require.NoError(t, store.Scans().Append(ctx, &domain.ScanAttempt{ID: "s1", BatchID: "batch-1"}))

		// events of an open transaction are not visible to the publisher
		pending, err := store.Outbox().FindUnpublished(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
		return errors.New("abort")
	})
	require.Error(t, err)

	stored, err := store.Batches().FindByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusOpen, stored.Status)
	assert.Equal(t, int64(0), stored.Version)

	scans, err := store.Scans().FindByBatch(ctx, "batch-1", 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "s0", scans[0].ID)

	pending, err := store.Outbox().FindUnpublished(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_CommitSavesEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.Batches().Create(ctx, newBatch(t, 1)); err != nil {
			return err
		}
		return store.Crates().Create(ctx, newCrate(t, 1, 10))
	})
	require.NoError(t, err)

	pending, err := store.Outbox().FindUnpublished(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.EventTypeBatchCreated, pending[0].EventType)
	assert.Equal(t, domain.EventTypeCrateRegistered, pending[1].EventType)
}
