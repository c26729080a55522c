package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/api"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/tracing"
)

// BatchHandlers contains handlers for batch operations
type BatchHandlers struct {
	service BatchService
	logger  *logging.Logger
}

// NewBatchHandlers creates a new BatchHandlers
func NewBatchHandlers(service BatchService, logger *logging.Logger) *BatchHandlers {
	return &BatchHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers batch routes on the router
func (h *BatchHandlers) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/batches")
	{
		batches.POST("", h.CreateBatch)
		batches.GET("", h.ListBatches)
		batches.GET("/code/:code", h.GetBatchByCode)
		batches.GET("/:batchId", h.GetBatch)
		batches.PUT("/:batchId", h.UpdateBatch)
		batches.POST("/:batchId/crates", h.AddCrate)
		batches.GET("/:batchId/crates", h.ListCrates)
		batches.POST("/:batchId/depart", h.Depart)
		batches.POST("/:batchId/arrive", h.Arrive)
		batches.POST("/:batchId/deliver", h.Deliver)
		batches.POST("/:batchId/close", h.Close)
		batches.POST("/:batchId/cancel", h.Cancel)
		batches.GET("/:batchId/reconciliation-status", h.GetReconciliationStatus)
		batches.GET("/:batchId/weight-details", h.GetWeightDetails)
		batches.GET("/:batchId/stats", h.GetStats)
	}
}

// CreateBatch handles batch creation
func (h *BatchHandlers) CreateBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req dto.CreateBatchRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	middleware.AddSpanAttributes(c, map[string]string{
		"batch.origin":     req.OriginID,
		"batch.supervisor": req.SupervisorID,
	})

	batch, err := h.service.CreateBatch(c.Request.Context(), application.CreateBatchCommand{
		OriginID:      req.OriginID,
		DestinationID: req.DestinationID,
		TransportMode: domain.TransportMode(req.TransportMode),
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		SupervisorID:  req.SupervisorID,
		ETA:           req.ETA,
		Location:      req.Location.ToDomain(),
		PhotoURL:      req.PhotoURL,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToBatchResponse(batch))
}

// ListBatches handles listing batches with optional filters
func (h *BatchHandlers) ListBatches(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	page := api.ParsePagination(c)
	query := application.ListBatchesQuery{
		OriginID:      optionalQuery(c, "originId"),
		DestinationID: optionalQuery(c, "destinationId"),
		SupervisorID:  optionalQuery(c, "supervisorId"),
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
	if status := optionalQuery(c, "status"); status != nil {
		s := domain.BatchStatus(strings.ToLower(*status))
		query.Status = &s
	}

	batches, total, err := h.service.ListBatches(c.Request.Context(), query)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, api.NewPageResponse(dto.ToBatchResponses(batches), page.Page, page.PageSize, total))
}

// GetBatch handles getting a batch by ID
func (h *BatchHandlers) GetBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := h.batchID(c)
	batch, err := h.service.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBatchResponse(batch))
}

// UpdateBatch handles editing the metadata of an open batch
func (h *BatchHandlers) UpdateBatch(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := c.Param("batchId")
	middleware.SpanFromGinContext(c).SetAttributes(tracing.BatchSpanAttributes(batchID, "update")...)

	var req dto.UpdateBatchRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	batch, err := h.service.UpdateDetails(c.Request.Context(), application.UpdateBatchCommand{
		BatchID:         batchID,
		ExpectedVersion: req.Version,
		Details:         req.ToDetails(),
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBatchResponse(batch))
}

// GetBatchByCode handles getting a batch by its scanned code
func (h *BatchHandlers) GetBatchByCode(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	code := c.Param("code")
	middleware.AddSpanAttributes(c, map[string]string{"batch.code": code})

	batch, err := h.service.GetBatchByCode(c.Request.Context(), code)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBatchResponse(batch))
}

// AddCrate handles assigning a crate to a batch
func (h *BatchHandlers) AddCrate(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := h.batchID(c)
	var req dto.AddCrateRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}
	if req.QRCode == "" && req.CrateID == "" {
		responder.RespondValidationError("validation failed", map[string]string{
			"qrCode": "qrCode or crateId is required",
		})
		return
	}

	result, err := h.service.AddCrate(c.Request.Context(), application.AddCrateCommand{
		BatchID: batchID,
		QRCode:  req.QRCode,
		CrateID: req.CrateID,
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyAssigned {
		status = http.StatusOK
	}
	c.JSON(status, dto.ToAddCrateResponse(result))
}

// ListCrates handles listing the crates of a batch
func (h *BatchHandlers) ListCrates(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	crates, err := h.service.ListCrates(c.Request.Context(), h.batchID(c))
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.ToCrateResponses(crates)))
}

// Depart handles dispatching an open batch
func (h *BatchHandlers) Depart(c *gin.Context) {
	h.transition(c, "depart", h.service.Depart)
}

// Arrive handles recording the arrival of a batch
func (h *BatchHandlers) Arrive(c *gin.Context) {
	h.transition(c, "arrive", h.service.Arrive)
}

// Deliver handles confirming delivery of a fully reconciled batch
func (h *BatchHandlers) Deliver(c *gin.Context) {
	h.transition(c, "deliver", h.service.Deliver)
}

// Close handles closing a delivered batch
func (h *BatchHandlers) Close(c *gin.Context) {
	h.transition(c, "close", h.service.Close)
}

// Cancel handles cancelling an open or in-transit batch. The body is optional.
func (h *BatchHandlers) Cancel(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := c.Param("batchId")
	middleware.SpanFromGinContext(c).SetAttributes(tracing.BatchSpanAttributes(batchID, "cancel")...)
	var req dto.CancelBatchRequest
	if c.Request.ContentLength != 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
	}

	batch, err := h.service.Cancel(c.Request.Context(), application.CancelBatchCommand{
		BatchID: batchID,
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBatchResponse(batch))
}

// GetReconciliationStatus handles the polled reconciliation progress of a batch
func (h *BatchHandlers) GetReconciliationStatus(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	status, err := h.service.ReconciliationStatus(c.Request.Context(), h.batchID(c))
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetWeightDetails handles the weight summary with per-crate differentials
func (h *BatchHandlers) GetWeightDetails(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	details, err := h.service.WeightDetails(c.Request.Context(), h.batchID(c))
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// GetStats handles batch statistics
func (h *BatchHandlers) GetStats(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	stats, err := h.service.Stats(c.Request.Context(), h.batchID(c))
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *BatchHandlers) transition(c *gin.Context, action string, apply func(ctx context.Context, batchID string) (*domain.Batch, error)) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := c.Param("batchId")
	middleware.SpanFromGinContext(c).SetAttributes(tracing.BatchSpanAttributes(batchID, action)...)

	batch, err := apply(c.Request.Context(), batchID)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBatchResponse(batch))
}

func (h *BatchHandlers) batchID(c *gin.Context) string {
	batchID := c.Param("batchId")
	middleware.SpanFromGinContext(c).SetAttributes(tracing.AttrBatchID.String(batchID))
	return batchID
}

func optionalQuery(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	return &v
}
