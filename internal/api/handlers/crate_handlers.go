package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/api"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
)

// CrateHandlers contains handlers for the crate registry and code validation
type CrateHandlers struct {
	service CrateService
	logger  *logging.Logger
}

// NewCrateHandlers creates a new CrateHandlers
func NewCrateHandlers(service CrateService, logger *logging.Logger) *CrateHandlers {
	return &CrateHandlers{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers crate and code routes on the router
func (h *CrateHandlers) RegisterRoutes(router *gin.RouterGroup) {
	crates := router.Group("/crates")
	{
		crates.POST("", h.RegisterCrate)
		crates.GET("", h.ListCrates)
		crates.GET("/unassigned", h.ListUnassigned)
		crates.GET("/qr/:qrCode", h.GetCrateByQRCode)
		crates.GET("/:crateId", h.GetCrate)
	}

	router.POST("/codes/validate", h.ValidateCode)
}

// RegisterCrate handles recording a crate at harvest
func (h *CrateHandlers) RegisterCrate(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req dto.RegisterCrateRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	photo, contentType, err := dto.DecodePhoto(req.PhotoBase64)
	if err != nil {
		respondError(responder, err)
		return
	}

	middleware.AddSpanAttributes(c, map[string]string{"crate.qr_code": req.QRCode})

	crate, err := h.service.RegisterCrate(c.Request.Context(), application.RegisterCrateCommand{
		QRCode:           req.QRCode,
		Variety:          req.Variety,
		Weight:           req.Weight,
		QualityGrade:     domain.QualityGrade(req.QualityGrade),
		HarvestLocation:  req.HarvestLocation.ToDomain(),
		HarvestedAt:      req.HarvestedAt,
		SupervisorID:     req.SupervisorID,
		Notes:            req.Notes,
		PhotoURL:         req.PhotoURL,
		Photo:            photo,
		PhotoContentType: contentType,
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCrateResponse(crate))
}

// GetCrate handles getting a crate by ID
func (h *CrateHandlers) GetCrate(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	crateID := c.Param("crateId")
	middleware.AddSpanAttributes(c, map[string]string{"crate.id": crateID})

	crate, err := h.service.GetCrate(c.Request.Context(), crateID)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCrateResponse(crate))
}

// GetCrateByQRCode handles getting a crate by its scanned code
func (h *CrateHandlers) GetCrateByQRCode(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	qrCode := c.Param("qrCode")
	middleware.AddSpanAttributes(c, map[string]string{"crate.qr_code": qrCode})

	crate, err := h.service.GetCrateByQRCode(c.Request.Context(), qrCode)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCrateResponse(crate))
}

// ListCrates handles listing crates with optional filters. Harvest bounds
// accept RFC 3339 timestamps or YYYY-MM-DD days in UTC.
func (h *CrateHandlers) ListCrates(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	page := api.ParsePagination(c)
	query := application.ListCratesQuery{
		BatchID:      optionalQuery(c, "batchId"),
		Variety:      optionalQuery(c, "variety"),
		SupervisorID: optionalQuery(c, "supervisorId"),
		Page:         page.Page,
		PageSize:     page.PageSize,
	}
	if grade := optionalQuery(c, "qualityGrade"); grade != nil {
		g := domain.QualityGrade(strings.ToUpper(*grade))
		if strings.EqualFold(*grade, string(domain.QualityGradeReject)) {
			g = domain.QualityGradeReject
		}
		query.QualityGrade = &g
	}

	var err error
	if query.HarvestedFrom, err = optionalTimeQuery(c, "harvestedFrom"); err != nil {
		respondError(responder, err)
		return
	}
	if query.HarvestedTo, err = optionalTimeQuery(c, "harvestedTo"); err != nil {
		respondError(responder, err)
		return
	}

	crates, total, err := h.service.ListCrates(c.Request.Context(), query)
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, api.NewPageResponse(dto.ToCrateResponses(crates), page.Page, page.PageSize, total))
}

// ListUnassigned handles listing crates that are not in any batch
func (h *CrateHandlers) ListUnassigned(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	page := api.ParsePagination(c)
	crates, total, err := h.service.ListUnassigned(c.Request.Context(), domain.Pagination{
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		respondError(responder, err)
		return
	}

	c.JSON(http.StatusOK, api.NewPageResponse(dto.ToCrateResponses(crates), page.Page, page.PageSize, total))
}

// ValidateCode reports whether a scanned code is well formed and what it identifies.
// A malformed code is a successful response with valid=false.
func (h *CrateHandlers) ValidateCode(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req dto.ValidateCodeRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	code, err := domain.ParseCode(req.Code)
	c.JSON(http.StatusOK, dto.ToCodeValidationResponse(req.Code, code, err))
}

func optionalTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := optionalQuery(c, name)
	if raw == nil {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, *raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.NewValidationError(name, "must be an RFC 3339 timestamp or YYYY-MM-DD")
}
