package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
)

// BatchService handles the lifecycle of dispatch batches
type BatchService struct {
	store   domain.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBatchService creates a new BatchService. m may be nil.
func NewBatchService(store domain.Store, logger *logging.Logger, m *metrics.Metrics) *BatchService {
	return &BatchService{
		store:   store,
		logger:  logger.WithComponent("batch-service"),
		metrics: m,
		now:     utcNow,
	}
}

// CreateBatch opens a batch under the next batch code of the current UTC day
func (s *BatchService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*domain.Batch, error) {
	now := s.now()
	var batch *domain.Batch

	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		seq, err := s.store.Sequences().Next(ctx, batchSequenceName(now))
		if err != nil {
			return fmt.Errorf("next batch sequence: %w", err)
		}
		code, err := domain.NewBatchCode(now, seq)
		if err != nil {
			return err
		}

		batch, err = domain.NewBatch(domain.NewBatchParams{
			ID:            uuid.NewString(),
			Code:          code,
			OriginID:      strings.TrimSpace(cmd.OriginID),
			DestinationID: strings.TrimSpace(cmd.DestinationID),
			Transport: domain.Transport{
				Mode:          cmd.TransportMode,
				VehicleNumber: cmd.VehicleNumber,
				DriverName:    cmd.DriverName,
			},
			SupervisorID: strings.TrimSpace(cmd.SupervisorID),
			ETA:          cmd.ETA,
			Location:     cmd.Location,
			PhotoURL:     cmd.PhotoURL,
			Notes:        cmd.Notes,
		}, now)
		if err != nil {
			return err
		}
		return s.store.Batches().Create(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordBatchCreated(string(batch.Transport.Mode))
	}
	s.logger.Info("Created batch",
		"batchId", batch.ID,
		"batchCode", batch.Code,
		"originId", batch.OriginID,
		"destinationId", batch.DestinationID,
	)
	return batch, nil
}

// GetBatch returns a batch by id
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.store.Batches().FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return nil, domain.NewNotFoundError("batch", batchID)
	}
	return batch, nil
}

// GetBatchByCode returns a batch by its code, matched case-insensitively
func (s *BatchService) GetBatchByCode(ctx context.Context, raw string) (*domain.Batch, error) {
	code, err := domain.ParseBatchCode(raw)
	if err != nil {
		return nil, err
	}
	batch, err := s.store.Batches().FindByCode(ctx, code.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch == nil {
		return nil, domain.NewNotFoundError("batch", code.Value())
	}
	return batch, nil
}

// ListBatches returns one page of batches, newest first, and the total count
func (s *BatchService) ListBatches(ctx context.Context, query ListBatchesQuery) ([]*domain.Batch, int64, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, 0, domain.NewValidationError("status", "unknown batch status")
	}
	page := domain.DefaultPagination()
	if query.Page > 0 {
		page.Page = query.Page
	}
	if query.PageSize > 0 {
		page.PageSize = query.PageSize
	}

	filter := domain.BatchFilter{
		Status:        query.Status,
		OriginID:      query.OriginID,
		DestinationID: query.DestinationID,
		SupervisorID:  query.SupervisorID,
	}
	batches, total, err := s.store.Batches().List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, total, nil
}

// AddCrate assigns a crate to an open batch and refreshes the batch aggregates.
// Adding a crate that is already in the batch changes nothing.
func (s *BatchService) AddCrate(ctx context.Context, cmd AddCrateCommand) (*AddCrateResult, error) {
	now := s.now()
	result := &AddCrateResult{}

	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		batch, err := s.loadBatch(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		crate, err := s.resolveCrate(ctx, cmd)
		if err != nil {
			return err
		}
		result.Batch, result.Crate = batch, crate

		if crate.BatchID == batch.ID {
			result.AlreadyAssigned = true
			return nil
		}
		if err := batch.AddCrate(crate, now); err != nil {
			return err
		}
		if err := s.store.Crates().AssignToBatch(ctx, crate); err != nil {
			return err
		}
		return s.refreshAndSave(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyAssigned {
		if s.metrics != nil {
			s.metrics.RecordCrateAssigned()
		}
		s.logger.Info("Added crate to batch",
			"batchId", result.Batch.ID,
			"crateId", result.Crate.ID,
			"qrCode", result.Crate.QRCode,
			"totalCrates", result.Batch.Aggregates.TotalCrates,
		)
	}
	return result, nil
}

// ListCrates returns the crates of a batch ordered by QR code
func (s *BatchService) ListCrates(ctx context.Context, batchID string) ([]*domain.Crate, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	crates, err := s.store.Crates().FindByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list crates: %w", err)
	}
	return crates, nil
}

// Depart moves an open batch into transit
func (s *BatchService) Depart(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, "depart", func(b *domain.Batch, now time.Time) error {
		return b.Depart(now)
	})
}

// Arrive marks an in-transit batch as arrived
func (s *BatchService) Arrive(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, "arrive", func(b *domain.Batch, now time.Time) error {
		return b.Arrive(now)
	})
}

// Deliver marks a fully reconciled batch as delivered
func (s *BatchService) Deliver(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, "deliver", func(b *domain.Batch, now time.Time) error {
		return b.Deliver(now)
	})
}

// Close finalizes a delivered batch
func (s *BatchService) Close(ctx context.Context, batchID string) (*domain.Batch, error) {
	return s.transition(ctx, batchID, "close", func(b *domain.Batch, now time.Time) error {
		return b.Close(now)
	})
}

// Cancel abandons an open or in-transit batch
func (s *BatchService) Cancel(ctx context.Context, cmd CancelBatchCommand) (*domain.Batch, error) {
	reason := strings.TrimSpace(cmd.Reason)
	return s.transition(ctx, cmd.BatchID, "cancel", func(b *domain.Batch, now time.Time) error {
		return b.Cancel(reason, now)
	})
}

// UpdateDetails edits the metadata of an open batch. When ExpectedVersion is
// set the update is rejected unless it matches the stored version.
func (s *BatchService) UpdateDetails(ctx context.Context, cmd UpdateBatchCommand) (*domain.Batch, error) {
	now := s.now()
	var (
		batch   *domain.Batch
		changed []string
	)

	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.loadBatch(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != batch.Version {
			return &domain.ConcurrencyConflictError{Resource: "batch", ID: batch.ID}
		}

		changed, err = batch.UpdateDetails(cmd.Details, now)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return s.store.Batches().Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.logger.WithContext(ctx).Info("Batch details updated",
			"batchId", batch.ID,
			"batchCode", batch.Code,
			"changes", changed,
		)
	}
	return batch, nil
}

// Stats computes batch statistics from the current crate records
func (s *BatchService) Stats(ctx context.Context, batchID string) (*domain.BatchStats, error) {
	batch, crates, err := s.batchWithCrates(ctx, batchID)
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeBatchStats(batch, crates)
	return &stats, nil
}

// WeightDetails returns the rounded weight summary and per-crate differentials
func (s *BatchService) WeightDetails(ctx context.Context, batchID string) (*WeightDetails, error) {
	batch, crates, err := s.batchWithCrates(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &WeightDetails{
		BatchID:   batch.ID,
		BatchCode: batch.Code,
		Status:    batch.Status,
		Summary:   domain.SummarizeWeights(crates).Rounded(),
		Crates:    domain.CrateWeights(crates),
	}, nil
}

// ReconciliationStatus recomputes reconciliation progress from the crate records
func (s *BatchService) ReconciliationStatus(ctx context.Context, batchID string) (*ReconciliationStatus, error) {
	batch, crates, err := s.batchWithCrates(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationStatus{
		ReconciliationProgress: domain.ComputeProgress(batch.ID, crates),
		BatchCode:              batch.Code,
		Status:                 batch.Status,
	}, nil
}

// transition applies a lifecycle action inside a transaction. Aggregates are
// refreshed from the crate records before the action checks its guards.
func (s *BatchService) transition(ctx context.Context, batchID, action string, apply func(*domain.Batch, time.Time) error) (*domain.Batch, error) {
	now := s.now()
	var (
		batch *domain.Batch
		from  domain.BatchStatus
	)

	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.loadBatch(ctx, batchID)
		if err != nil {
			return err
		}
		from = batch.Status

		crates, err := s.store.Crates().FindByBatch(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("load crates: %w", err)
		}
		batch.RefreshAggregates(crates)

		if err := apply(batch, now); err != nil {
			return err
		}
		return s.store.Batches().Update(ctx, batch)
	})
	if err != nil {
		var transition *domain.InvalidStateTransitionError
		if errors.As(err, &transition) {
			s.logger.Warn("Batch transition rejected",
				"batchId", batchID,
				"action", action,
				"currentStatus", string(transition.Current),
				"reason", transition.Reason,
			)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordBatchTransition(action, string(from), string(batch.Status))
	}
	s.logger.Transition(ctx, batch.ID, batch.Code, action, string(from), string(batch.Status))
	return batch, nil
}

func (s *BatchService) loadBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.store.Batches().FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, domain.NewNotFoundError("batch", batchID)
	}
	return batch, nil
}

func (s *BatchService) resolveCrate(ctx context.Context, cmd AddCrateCommand) (*domain.Crate, error) {
	var (
		crate *domain.Crate
		key   string
		err   error
	)
	switch {
	case strings.TrimSpace(cmd.QRCode) != "":
		code, perr := domain.ParseCrateCode(cmd.QRCode)
		if perr != nil {
			return nil, perr
		}
		key = code.Value()
		crate, err = s.store.Crates().FindByQRCode(ctx, key)
	case strings.TrimSpace(cmd.CrateID) != "":
		key = strings.TrimSpace(cmd.CrateID)
		crate, err = s.store.Crates().FindByID(ctx, key)
	default:
		return nil, domain.NewValidationError("qrCode", "qrCode or crateId is required")
	}
	if err != nil {
		return nil, fmt.Errorf("load crate: %w", err)
	}
	if crate == nil {
		return nil, domain.NewNotFoundError("crate", key)
	}
	return crate, nil
}

func (s *BatchService) refreshAndSave(ctx context.Context, batch *domain.Batch) error {
	crates, err := s.store.Crates().FindByBatch(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load crates: %w", err)
	}
	batch.RefreshAggregates(crates)
	return s.store.Batches().Update(ctx, batch)
}

func (s *BatchService) batchWithCrates(ctx context.Context, batchID string) (*domain.Batch, []*domain.Crate, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	crates, err := s.store.Crates().FindByBatch(ctx, batch.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load crates: %w", err)
	}
	return batch, crates, nil
}

func batchSequenceName(day time.Time) string {
	return "batch:" + day.UTC().Format("20060102")
}

func utcNow() time.Time {
	return time.Now().UTC()
}
