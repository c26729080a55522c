package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/api"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/tracing"
)

// ReconciliationHandlers contains handlers for crate reconciliation
type ReconciliationHandlers struct {
	service ReconciliationService
	logger  *logging.Logger
}

// NewReconciliationHandlers creates a new ReconciliationHandlers
func NewReconciliationHandlers(service ReconciliationService, logger *logging.Logger) *ReconciliationHandlers {
	return &ReconciliationHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reconciliation routes on the router
func (h *ReconciliationHandlers) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/batches/:batchId")
	{
		batches.POST("/reconcile", h.Reconcile)
		batches.GET("/reconciliations", h.ListRecords)
		batches.GET("/scans", h.ListScans)
	}

	router.GET("/reconciliation/summary", h.Summary)
}

// Reconcile handles recording the arrival weight of a crate
func (h *ReconciliationHandlers) Reconcile(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	batchID := c.Param("batchId")
	var req dto.ReconcileRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	photo, contentType, err := dto.DecodePhoto(req.PhotoBase64)
	if err != nil {
		respondError(responder, err)
		return
	}

	middleware.SpanFromGinContext(c).SetAttributes(
		append(tracing.BatchSpanAttributes(batchID, "reconcile"), tracing.AttrQRCode.String(req.QRCode))...,
	)

	result, err := h.service.Reconcile(c.Request.Context(), application.ReconcileCrateCommand{
		BatchID:          batchID,
		QRCode:           req.QRCode,
		Weight:           req.Weight,
		PhotoURL:         req.PhotoURL,
		Photo:            photo,
		PhotoContentType: contentType,
		DeviceID:         middleware.GetDeviceID(c),
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToReconcileResponse(result))
}

// ListRecords handles listing the reconciliation records of a batch
func (h *ReconciliationHandlers) ListRecords(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	records, err := h.service.ListRecords(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(dto.ToRecordResponses(records)))
}

// ListScans handles the scan log of a batch, newest first
func (h *ReconciliationHandlers) ListScans(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	limit := api.ParseIntQuery(c, "limit", application.DefaultScanLimit, 1, application.MaxScanLimit)
	scans, err := h.service.ListScans(c.Request.Context(), c.Param("batchId"), limit)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListResponse(scans))
}

// Summary handles the service-wide reconciliation overview
func (h *ReconciliationHandlers) Summary(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	days := api.ParseIntQuery(c, "days", application.DefaultSummaryDays, 1, application.MaxSummaryDays)
	summary, err := h.service.Summary(c.Request.Context(), days)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
