package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/errors"
)

type scanBody struct {
	QRCode string  `json:"qrCode" binding:"required,qr_code"`
	Weight float64 `json:"weight" binding:"required,gt=0"`
	Grade  string  `json:"qualityGrade" binding:"omitempty,quality_grade"`
}

func TestValidator_CustomTags(t *testing.T) {
	InitValidator()

	tests := []struct {
		name    string
		body    scanBody
		invalid string
	}{
		{name: "short crate code", body: scanBody{QRCode: "CR-061524-001", Weight: 9.5}},
		{name: "lower case label code", body: scanBody{QRCode: "asikh-crate-3f2b8c1e-9a4d-4e6f-8b1a-2c3d4e5f6a7b", Weight: 1}},
		{name: "bad code", body: scanBody{QRCode: "PALLET-1", Weight: 1}, invalid: "qrCode"},
		{name: "zero weight", body: scanBody{QRCode: "CR-061524-001"}, invalid: "weight"},
		{name: "unknown grade", body: scanBody{QRCode: "CR-061524-001", Weight: 1, Grade: "D"}, invalid: "qualityGrade"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GetValidator().Struct(tt.body)
			if tt.invalid == "" {
				assert.NoError(t, err)
				return
			}
			fields := ValidationErrorFormatter(err)
			assert.Contains(t, fields, tt.invalid)
		})
	}
}

func TestErrorHandler_MapsAppErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(testLogger()))
	router.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(errors.ErrInvalidStateTransition("batch is not open", "arrived"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidStateTransition, body.Code)
	assert.Equal(t, "arrived", body.Details["currentStatus"])
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "/conflict", body.Path)
}

func TestErrorResponder_TransientCarriesTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), CorrelationID(), TracingMiddleware(DefaultTracingConfig("test")))
	router.POST("/scan", func(c *gin.Context) {
		NewErrorResponder(c, testLogger()).RespondTransient("retry the request", fmt.Errorf("write conflict"))
	})

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set(HeaderTraceID, "trace-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeTransientError, body.Code)
	assert.Equal(t, "trace-123", body.TraceID)
}

func TestReadinessCheck_ReportsUnavailableStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ready", ReadinessCheck("dispatch-service", testLogger(), func(context.Context) error {
		return fmt.Errorf("server selection timeout")
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeServiceUnavailable, body.Code)
	assert.Contains(t, body.Message, "dispatch-service")
}

func TestActor_SetsUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Actor())

	var seen, device string
	router.GET("/me", func(c *gin.Context) {
		seen = GetUserID(c)
		device = GetDeviceID(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, " sup-7 ")
	req.Header.Set(HeaderDeviceID, "scanner-2")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "sup-7", seen)
	assert.Equal(t, "scanner-2", device)
}

func TestTimeout_BoundsRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Timeout(time.Second))

	var hasDeadline bool
	router.GET("/slow", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.True(t, hasDeadline)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
