package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
)

var fixedTime = time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)

type mockBatchService struct {
	createBatchFn          func(ctx context.Context, cmd application.CreateBatchCommand) (*domain.Batch, error)
	getBatchFn             func(ctx context.Context, batchID string) (*domain.Batch, error)
	getBatchByCodeFn       func(ctx context.Context, code string) (*domain.Batch, error)
	listBatchesFn          func(ctx context.Context, query application.ListBatchesQuery) ([]*domain.Batch, int64, error)
	updateDetailsFn        func(ctx context.Context, cmd application.UpdateBatchCommand) (*domain.Batch, error)
	addCrateFn             func(ctx context.Context, cmd application.AddCrateCommand) (*application.AddCrateResult, error)
	listCratesFn           func(ctx context.Context, batchID string) ([]*domain.Crate, error)
	departFn               func(ctx context.Context, batchID string) (*domain.Batch, error)
	arriveFn               func(ctx context.Context, batchID string) (*domain.Batch, error)
	deliverFn              func(ctx context.Context, batchID string) (*domain.Batch, error)
	closeFn                func(ctx context.Context, batchID string) (*domain.Batch, error)
	cancelFn               func(ctx context.Context, cmd application.CancelBatchCommand) (*domain.Batch, error)
	statsFn                func(ctx context.Context, batchID string) (*domain.BatchStats, error)
	weightDetailsFn        func(ctx context.Context, batchID string) (*application.WeightDetails, error)
	reconciliationStatusFn func(ctx context.Context, batchID string) (*application.ReconciliationStatus, error)
}

func (m *mockBatchService) CreateBatch(ctx context.Context, cmd application.CreateBatchCommand) (*domain.Batch, error) {
	if m.createBatchFn == nil {
		panic("CreateBatch not implemented")
	}
	return m.createBatchFn(ctx, cmd)
}

func (m *mockBatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	if m.getBatchFn == nil {
		panic("GetBatch not implemented")
	}
	return m.getBatchFn(ctx, batchID)
}

func (m *mockBatchService) GetBatchByCode(ctx context.Context, code string) (*domain.Batch, error) {
	if m.getBatchByCodeFn == nil {
		panic("GetBatchByCode not implemented")
	}
	return m.getBatchByCodeFn(ctx, code)
}

func (m *mockBatchService) ListBatches(ctx context.Context, query application.ListBatchesQuery) ([]*domain.Batch, int64, error) {
	if m.listBatchesFn == nil {
		panic("ListBatches not implemented")
	}
	return m.listBatchesFn(ctx, query)
}

func (m *mockBatchService) UpdateDetails(ctx context.Context, cmd application.UpdateBatchCommand) (*domain.Batch, error) {
	if m.updateDetailsFn == nil {
		panic("UpdateDetails not implemented")
	}
	return m.updateDetailsFn(ctx, cmd)
}

func (m *mockBatchService) AddCrate(ctx context.Context, cmd application.AddCrateCommand) (*application.AddCrateResult, error) {
	if m.addCrateFn == nil {
		panic("AddCrate not implemented")
	}
	return m.addCrateFn(ctx, cmd)
}

func (m *mockBatchService) ListCrates(ctx context.Context, batchID string) ([]*domain.Crate, error) {
	if m.listCratesFn == nil {
		panic("ListCrates not implemented")
	}
	return m.listCratesFn(ctx, batchID)
}

func (m *mockBatchService) Depart(ctx context.Context, batchID string) (*domain.Batch, error) {
	if m.departFn == nil {
		panic("Depart not implemented")
	}
	return m.departFn(ctx, batchID)
}

func (m *mockBatchService) Arrive(ctx context.Context, batchID string) (*domain.Batch, error) {
	if m.arriveFn == nil {
		panic("Arrive not implemented")
	}
	return m.arriveFn(ctx, batchID)
}

func (m *mockBatchService) Deliver(ctx context.Context, batchID string) (*domain.Batch, error) {
	if m.deliverFn == nil {
		panic("Deliver not implemented")
	}
	return m.deliverFn(ctx, batchID)
}

func (m *mockBatchService) Close(ctx context.Context, batchID string) (*domain.Batch, error) {
	if m.closeFn == nil {
		panic("Close not implemented")
	}
	return m.closeFn(ctx, batchID)
}

func (m *mockBatchService) Cancel(ctx context.Context, cmd application.CancelBatchCommand) (*domain.Batch, error) {
	if m.cancelFn == nil {
		panic("Cancel not implemented")
	}
	return m.cancelFn(ctx, cmd)
}

func (m *mockBatchService) Stats(ctx context.Context, batchID string) (*domain.BatchStats, error) {
	if m.statsFn == nil {
		panic("Stats not implemented")
	}
	return m.statsFn(ctx, batchID)
}

func (m *mockBatchService) WeightDetails(ctx context.Context, batchID string) (*application.WeightDetails, error) {
	if m.weightDetailsFn == nil {
		panic("WeightDetails not implemented")
	}
	return m.weightDetailsFn(ctx, batchID)
}

func (m *mockBatchService) ReconciliationStatus(ctx context.Context, batchID string) (*application.ReconciliationStatus, error) {
	if m.reconciliationStatusFn == nil {
		panic("ReconciliationStatus not implemented")
	}
	return m.reconciliationStatusFn(ctx, batchID)
}

type mockCrateService struct {
	registerCrateFn    func(ctx context.Context, cmd application.RegisterCrateCommand) (*domain.Crate, error)
	getCrateFn         func(ctx context.Context, crateID string) (*domain.Crate, error)
	getCrateByQRCodeFn func(ctx context.Context, qrCode string) (*domain.Crate, error)
	listCratesFn       func(ctx context.Context, query application.ListCratesQuery) ([]*domain.Crate, int64, error)
	listUnassignedFn   func(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error)
}

func (m *mockCrateService) RegisterCrate(ctx context.Context, cmd application.RegisterCrateCommand) (*domain.Crate, error) {
	if m.registerCrateFn == nil {
		panic("RegisterCrate not implemented")
	}
	return m.registerCrateFn(ctx, cmd)
}

func (m *mockCrateService) GetCrate(ctx context.Context, crateID string) (*domain.Crate, error) {
	if m.getCrateFn == nil {
		panic("GetCrate not implemented")
	}
	return m.getCrateFn(ctx, crateID)
}

func (m *mockCrateService) GetCrateByQRCode(ctx context.Context, qrCode string) (*domain.Crate, error) {
	if m.getCrateByQRCodeFn == nil {
		panic("GetCrateByQRCode not implemented")
	}
	return m.getCrateByQRCodeFn(ctx, qrCode)
}

func (m *mockCrateService) ListCrates(ctx context.Context, query application.ListCratesQuery) ([]*domain.Crate, int64, error) {
	if m.listCratesFn == nil {
		panic("ListCrates not implemented")
	}
	return m.listCratesFn(ctx, query)
}

func (m *mockCrateService) ListUnassigned(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error) {
	if m.listUnassignedFn == nil {
		panic("ListUnassigned not implemented")
	}
	return m.listUnassignedFn(ctx, page)
}

type mockReconciliationService struct {
	reconcileFn   func(ctx context.Context, cmd application.ReconcileCrateCommand) (*domain.ReconciliationResult, error)
	listRecordsFn func(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error)
	listScansFn   func(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error)
	summaryFn     func(ctx context.Context, days int) (*domain.ReconciliationSummary, error)
}

func (m *mockReconciliationService) Reconcile(ctx context.Context, cmd application.ReconcileCrateCommand) (*domain.ReconciliationResult, error) {
	if m.reconcileFn == nil {
		panic("Reconcile not implemented")
	}
	return m.reconcileFn(ctx, cmd)
}

func (m *mockReconciliationService) ListRecords(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error) {
	if m.listRecordsFn == nil {
		panic("ListRecords not implemented")
	}
	return m.listRecordsFn(ctx, batchID)
}

func (m *mockReconciliationService) ListScans(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error) {
	if m.listScansFn == nil {
		panic("ListScans not implemented")
	}
	return m.listScansFn(ctx, batchID, limit)
}

func (m *mockReconciliationService) Summary(ctx context.Context, days int) (*domain.ReconciliationSummary, error) {
	if m.summaryFn == nil {
		panic("Summary not implemented")
	}
	return m.summaryFn(ctx, days)
}

type testServices struct {
	batches        *mockBatchService
	crates         *mockCrateService
	reconciliation *mockReconciliationService
}

func newTestRouter(services testServices) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.InitValidator()

	if services.batches == nil {
		services.batches = &mockBatchService{}
	}
	if services.crates == nil {
		services.crates = &mockCrateService{}
	}
	if services.reconciliation == nil {
		services.reconciliation = &mockReconciliationService{}
	}

	router := gin.New()
	router.Use(middleware.Actor())
	logger := logging.New(logging.DefaultConfig("test"))
	v1 := router.Group("/api/v1")
	NewBatchHandlers(services.batches, logger).RegisterRoutes(v1)
	NewCrateHandlers(services.crates, logger).RegisterRoutes(v1)
	NewReconciliationHandlers(services.reconciliation, logger).RegisterRoutes(v1)
	return router
}

func performRequest(router *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// errorBody is the subset of the platform error envelope asserted on
type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details"`
	Existing map[string]any    `json:"existing"`
	Path     string            `json:"path"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func sampleBatch(status domain.BatchStatus) *domain.Batch {
	return &domain.Batch{
		ID:           "batch-1",
		Code:         "BT-061525-001",
		Status:       status,
		OriginID:     "farm-1",
		SupervisorID: "sup-1",
		Transport:    domain.Transport{Mode: domain.TransportModeTruck},
		CreatedAt:    fixedTime,
		UpdatedAt:    fixedTime,
		Version:      1,
	}
}

func sampleCrate() *domain.Crate {
	return &domain.Crate{
		ID:           "crate-1",
		QRCode:       "CR-061525-001",
		Variety:      "Alphonso",
		Weight:       10,
		QualityGrade: domain.QualityGradeA,
		HarvestedAt:  fixedTime,
		SupervisorID: "sup-1",
		CreatedAt:    fixedTime,
	}
}

func sampleRecord() *domain.ReconciliationRecord {
	return &domain.ReconciliationRecord{
		ID:               "rec-1",
		BatchID:          "batch-1",
		CrateID:          "crate-1",
		QRCode:           "CR-061525-001",
		OriginalWeight:   10,
		ReconciledWeight: 9.5,
		Differential:     0.5,
		RecordedBy:       "user-7",
		RecordedAt:       fixedTime,
	}
}
