package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
)

const (
	DefaultSummaryDays = 7
	MaxSummaryDays     = 90

	DefaultScanLimit = 50
	MaxScanLimit     = 500
)

// ReconciliationService re-weighs crates of arrived batches and reports on it
type ReconciliationService struct {
	store   domain.Store
	photos  photoUploader
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReconciliationService creates a new ReconciliationService. photos and m may be nil.
func NewReconciliationService(store domain.Store, photos PhotoStore, logger *logging.Logger, m *metrics.Metrics) *ReconciliationService {
	logger = logger.WithComponent("reconciliation-service")
	return &ReconciliationService{
		store:   store,
		photos:  photoUploader{store: photos, logger: logger},
		logger:  logger,
		metrics: m,
		now:     utcNow,
	}
}

// Reconcile records the arrival weight of one crate of an arrived batch. The
// record, the crate's reconciliation state and the batch aggregates are written
// in one transaction. A crate that already has a record yields a
// DuplicateReconciliationError carrying that record, so a retried request
// never counts twice.
func (s *ReconciliationService) Reconcile(ctx context.Context, cmd ReconcileCrateCommand) (*domain.ReconciliationResult, error) {
	scan := &domain.ScanAttempt{
		ID:        uuid.NewString(),
		BatchID:   cmd.BatchID,
		QRCode:    cmd.QRCode,
		Weight:    cmd.Weight,
		ScannedBy: actorFrom(ctx),
		DeviceID:  cmd.DeviceID,
	}

	result, wrongBatch, err := s.reconcile(ctx, cmd, scan)

	scan.Outcome = domain.OutcomeFor(err)
	if wrongBatch {
		scan.Outcome = domain.ScanOutcomeWrongBatch
	}
	if err != nil {
		scan.Reason = err.Error()
	}
	s.recordScan(ctx, scan, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, cmd ReconcileCrateCommand, scan *domain.ScanAttempt) (*domain.ReconciliationResult, bool, error) {
	code, err := domain.ParseCrateCode(cmd.QRCode)
	if err != nil {
		return nil, false, err
	}
	scan.QRCode = code.Value()
	if err := domain.ValidateWeight("weight", cmd.Weight); err != nil {
		return nil, false, err
	}

	// The photo is stored before the transaction, and only once the scan is
	// known to be reconcilable. On failure photoURL keeps the caller value.
	photoURL := cmd.PhotoURL
	if len(cmd.Photo) > 0 && s.photos.store != nil {
		if _, _, wrongBatch, err := s.locate(ctx, cmd.BatchID, code, scan); err != nil {
			return nil, wrongBatch, err
		}
		if url := s.photos.upload(ctx, "reconciliations/"+cmd.BatchID, code.Value(), cmd.Photo, cmd.PhotoContentType); url != "" {
			photoURL = url
		}
	}

	now := s.now()
	var (
		result     *domain.ReconciliationResult
		variety    string
		wrongBatch bool
	)

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		batch, crate, wrong, err := s.locate(ctx, cmd.BatchID, code, scan)
		if err != nil {
			wrongBatch = wrong
			return err
		}
		variety = crate.Variety

		record, err := crate.Reconcile(cmd.Weight, photoURL, now)
		if err != nil {
			return err
		}
		record.ID = uuid.NewString()
		record.RecordedBy = scan.ScannedBy

		if err := s.store.Reconciliations().Create(ctx, record); err != nil {
			return err
		}
		if err := s.store.Crates().MarkReconciled(ctx, crate); err != nil {
			return err
		}

		crates, err := s.store.Crates().FindByBatch(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("load crates: %w", err)
		}
		batch.RefreshAggregates(crates)
		if err := s.store.Batches().Update(ctx, batch); err != nil {
			return err
		}

		result = &domain.ReconciliationResult{
			Record:   record,
			Batch:    batch,
			Progress: domain.ComputeProgress(batch.ID, crates),
			Weights:  domain.SummarizeWeights(crates).Rounded(),
		}
		return nil
	})
	if err != nil {
		return nil, wrongBatch, s.withExistingRecord(ctx, scan.CrateID, err)
	}

	if s.metrics != nil && result.Record.OriginalWeight > 0 {
		s.metrics.ObserveCrateWeightLoss(variety, result.Record.Differential/result.Record.OriginalWeight*100)
	}
	return result, false, nil
}

// locate resolves the batch and crate of a scan and checks that the crate can
// be reconciled in that batch. The bool reports a crate assigned to another batch.
func (s *ReconciliationService) locate(ctx context.Context, batchID string, code domain.Code, scan *domain.ScanAttempt) (*domain.Batch, *domain.Crate, bool, error) {
	batch, err := s.store.Batches().FindByID(ctx, batchID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, nil, false, domain.NewNotFoundError("batch", batchID)
	}

	crate, err := s.store.Crates().FindByQRCode(ctx, code.Value())
	if err != nil {
		return nil, nil, false, fmt.Errorf("load crate: %w", err)
	}
	if crate == nil {
		return nil, nil, false, domain.NewNotFoundError("crate", code.Value())
	}
	scan.CrateID = crate.ID
	if crate.BatchID != batch.ID {
		return nil, nil, true, domain.NewCrateNotInBatchError(code.Value(), batch.Code)
	}

	existing, err := s.store.Reconciliations().FindByCrateID(ctx, crate.ID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load reconciliation: %w", err)
	}
	if existing != nil {
		return nil, nil, false, &domain.DuplicateReconciliationError{Record: existing}
	}

	if err := batch.EnsureReconcilable(); err != nil {
		return nil, nil, false, err
	}
	return batch, crate, false, nil
}

// withExistingRecord attaches the stored record to a duplicate raised by a
// conditional write that lost a race and so could not read it itself
func (s *ReconciliationService) withExistingRecord(ctx context.Context, crateID string, err error) error {
	if !errors.Is(err, domain.ErrDuplicateReconciliation) || crateID == "" {
		return err
	}
	var dup *domain.DuplicateReconciliationError
	if errors.As(err, &dup) && dup.Record != nil {
		return err
	}
	existing, ferr := s.store.Reconciliations().FindByCrateID(ctx, crateID)
	if ferr != nil || existing == nil {
		return &domain.DuplicateReconciliationError{}
	}
	return &domain.DuplicateReconciliationError{Record: existing}
}

// recordScan appends the attempt to the scan log. The log is best-effort and
// never fails the reconciliation.
func (s *ReconciliationService) recordScan(ctx context.Context, scan *domain.ScanAttempt, err error) {
	scan.ScannedAt = s.now()
	if aerr := s.store.Scans().Append(ctx, scan); aerr != nil {
		s.logger.WithError(aerr).Warn("Failed to append scan attempt", "batchId", scan.BatchID, "qrCode", scan.QRCode)
	}
	if s.metrics != nil {
		s.metrics.RecordReconciliation(string(scan.Outcome))
	}
	s.logger.Reconciliation(ctx, scan.BatchID, scan.QRCode, string(scan.Outcome), err)
}

// ListRecords returns the reconciliation records of a batch, oldest first
func (s *ReconciliationService) ListRecords(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error) {
	if err := s.ensureBatch(ctx, batchID); err != nil {
		return nil, err
	}
	records, err := s.store.Reconciliations().FindByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	return records, nil
}

// ListScans returns the most recent reconciliation attempts of a batch
func (s *ReconciliationService) ListScans(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error) {
	if err := s.ensureBatch(ctx, batchID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultScanLimit
	}
	if limit > MaxScanLimit {
		limit = MaxScanLimit
	}
	scans, err := s.store.Scans().FindByBatch(ctx, batchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

// Summary reports reconciliation across all batches over the last days UTC days,
// today included
func (s *ReconciliationService) Summary(ctx context.Context, days int) (*domain.ReconciliationSummary, error) {
	if days < 1 {
		days = DefaultSummaryDays
	}
	if days > MaxSummaryDays {
		days = MaxSummaryDays
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	byStatus, err := s.store.Batches().CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}
	total, reconciled, err := s.store.Crates().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count crates: %w", err)
	}
	byOutcome, err := s.store.Scans().CountByOutcome(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}
	byDay, err := s.store.Scans().CountByDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}

	summary := domain.BuildReconciliationSummary(since, now, byStatus, total, reconciled, byOutcome, byDay)
	return &summary, nil
}

func (s *ReconciliationService) ensureBatch(ctx context.Context, batchID string) error {
	batch, err := s.store.Batches().FindByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return domain.NewNotFoundError("batch", batchID)
	}
	return nil
}
