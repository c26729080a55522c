package handlers

import (
	"context"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

// BatchService is the batch lifecycle surface used by BatchHandlers
type BatchService interface {
	CreateBatch(ctx context.Context, cmd application.CreateBatchCommand) (*domain.Batch, error)
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	GetBatchByCode(ctx context.Context, code string) (*domain.Batch, error)
	ListBatches(ctx context.Context, query application.ListBatchesQuery) ([]*domain.Batch, int64, error)
	UpdateDetails(ctx context.Context, cmd application.UpdateBatchCommand) (*domain.Batch, error)
	AddCrate(ctx context.Context, cmd application.AddCrateCommand) (*application.AddCrateResult, error)
	ListCrates(ctx context.Context, batchID string) ([]*domain.Crate, error)
	Depart(ctx context.Context, batchID string) (*domain.Batch, error)
	Arrive(ctx context.Context, batchID string) (*domain.Batch, error)
	Deliver(ctx context.Context, batchID string) (*domain.Batch, error)
	Close(ctx context.Context, batchID string) (*domain.Batch, error)
	Cancel(ctx context.Context, cmd application.CancelBatchCommand) (*domain.Batch, error)
	Stats(ctx context.Context, batchID string) (*domain.BatchStats, error)
	WeightDetails(ctx context.Context, batchID string) (*application.WeightDetails, error)
	ReconciliationStatus(ctx context.Context, batchID string) (*application.ReconciliationStatus, error)
}

// CrateService is the crate registry surface used by CrateHandlers
type CrateService interface {
	RegisterCrate(ctx context.Context, cmd application.RegisterCrateCommand) (*domain.Crate, error)
	GetCrate(ctx context.Context, crateID string) (*domain.Crate, error)
	GetCrateByQRCode(ctx context.Context, qrCode string) (*domain.Crate, error)
	ListCrates(ctx context.Context, query application.ListCratesQuery) ([]*domain.Crate, int64, error)
	ListUnassigned(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error)
}

// ReconciliationService is the reconciliation surface used by ReconciliationHandlers
type ReconciliationService interface {
	Reconcile(ctx context.Context, cmd application.ReconcileCrateCommand) (*domain.ReconciliationResult, error)
	ListRecords(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error)
	ListScans(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error)
	Summary(ctx context.Context, days int) (*domain.ReconciliationSummary, error)
}

var (
	_ BatchService          = (*application.BatchService)(nil)
	_ CrateService          = (*application.CrateService)(nil)
	_ ReconciliationService = (*application.ReconciliationService)(nil)
)
