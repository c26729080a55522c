package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/memory"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/contracts/openapi"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
)

const openAPIPath = "../../../docs/openapi.yaml"

type contractHarness struct {
	t         *testing.T
	router    *gin.Engine
	validator *openapi.Validator
}

func newContractHarness(t *testing.T) *contractHarness {
	t.Helper()
	validator, err := openapi.NewValidator(openAPIPath)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	middleware.InitValidator()

	store := memory.NewStore(cloudevents.NewEventFactory(cloudevents.SourceDispatch))
	logger := logging.New(logging.DefaultConfig("test"))

	router := gin.New()
	router.Use(middleware.Actor())
	v1 := router.Group("/api/v1")
	NewBatchHandlers(application.NewBatchService(store, logger, nil), logger).RegisterRoutes(v1)
	NewCrateHandlers(application.NewCrateService(store, nil, logger, nil), logger).RegisterRoutes(v1)
	NewReconciliationHandlers(application.NewReconciliationService(store, nil, logger, nil), logger).RegisterRoutes(v1)

	return &contractHarness{t: t, router: router, validator: validator}
}

// exchange validates the request, serves it and validates the response
func (h *contractHarness) exchange(method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	ctx := context.Background()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.HeaderUserID, "user-7")

	require.NoError(h.t, h.validator.ValidateRequest(ctx, req), "%s %s", method, path)

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.NoError(h.t, h.validator.ValidateResponse(ctx, req, rec.Code, rec.Header(), rec.Body.Bytes()),
		"%s %s -> %d %s", method, path, rec.Code, rec.Body.String())
	return rec
}

func TestOpenAPIContract_DispatchFlow(t *testing.T) {
	h := newContractHarness(t)
	today := time.Now().UTC()

	first, err := domain.NewCrateCode(today, 1)
	require.NoError(t, err)
	second, err := domain.NewCrateCode(today, 2)
	require.NoError(t, err)

	rec := h.exchange(http.MethodPost, "/api/v1/crates",
		`{"qrCode":"`+first.Value()+`","variety":"Alphonso","weight":10,"qualityGrade":"A","supervisorId":"sup-1","harvestLocation":{"lat":16.7,"lng":73.3}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	crateID := decodeJSON(t, rec)["id"].(string)

	rec = h.exchange(http.MethodPost, "/api/v1/crates",
		`{"qrCode":"`+second.Value()+`","variety":"Kesar","weight":12.5,"supervisorId":"sup-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.exchange(http.MethodPost, "/api/v1/crates",
		`{"qrCode":"`+second.Value()+`","variety":"Kesar","weight":12.5,"supervisorId":"sup-1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	h.exchange(http.MethodGet, "/api/v1/crates/"+crateID, "")
	h.exchange(http.MethodGet, "/api/v1/crates/qr/"+first.Value(), "")

	rec = h.exchange(http.MethodPost, "/api/v1/batches",
		`{"originId":"farm-1","destinationId":"packhouse-1","transportMode":"truck","vehicleNumber":"MH-08-1234","supervisorId":"sup-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON(t, rec)
	batchID := created["id"].(string)
	batchCode := created["code"].(string)
	base := "/api/v1/batches/" + batchID

	rec = h.exchange(http.MethodPut, base, `{"driverName":"Ravi","eta":"2030-01-01T10:00:00Z","version":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ravi", decodeJSON(t, rec)["transport"].(map[string]any)["driverName"])
	rec = h.exchange(http.MethodPut, base, `{"driverName":"Suresh","version":0}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENCY_CONFLICT", decodeError(t, rec).Code)

	rec = h.exchange(http.MethodPost, base+"/crates", `{"qrCode":"`+first.Value()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.exchange(http.MethodPost, base+"/crates", `{"qrCode":"`+first.Value()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.exchange(http.MethodPost, base+"/crates", `{"crateId":"`+crateIDFor(t, h, second.Value())+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.exchange(http.MethodPost, base+"/reconcile", `{"qrCode":"`+first.Value()+`","weight":9.5}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "open", decodeError(t, rec).Details["currentStatus"])

	require.Equal(t, http.StatusOK, h.exchange(http.MethodPost, base+"/depart", "").Code)
	require.Equal(t, http.StatusConflict, h.exchange(http.MethodPost, base+"/depart", "").Code)
	require.Equal(t, http.StatusOK, h.exchange(http.MethodPost, base+"/arrive", "").Code)

	rec = h.exchange(http.MethodPost, base+"/reconcile", `{"qrCode":"`+first.Value()+`","weight":9.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1/2 crates (50%)", decodeJSON(t, rec)["progress"].(map[string]any)["label"])

	rec = h.exchange(http.MethodPost, base+"/reconcile", `{"qrCode":"`+first.Value()+`","weight":9.1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 9.5, decodeError(t, rec).Existing["reconciledWeight"])

	rec = h.exchange(http.MethodGet, base+"/reconciliation-status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeJSON(t, rec)["missingCrates"])

	h.exchange(http.MethodGet, base+"/weight-details", "")
	h.exchange(http.MethodGet, base+"/stats", "")
	h.exchange(http.MethodGet, base+"/crates", "")
	h.exchange(http.MethodGet, base+"/reconciliations", "")
	h.exchange(http.MethodGet, base+"/scans?limit=10", "")
	h.exchange(http.MethodGet, "/api/v1/batches/code/"+batchCode, "")
	h.exchange(http.MethodGet, "/api/v1/batches?status=arrived&pageSize=5", "")
	rec = h.exchange(http.MethodGet, "/api/v1/crates?variety=Kesar&batchId="+batchID+"&harvestedFrom="+today.Format(time.DateOnly), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON(t, rec)["data"], 1)
	h.exchange(http.MethodGet, "/api/v1/reconciliation/summary?days=30", "")

	require.Equal(t, http.StatusOK, h.exchange(http.MethodPost, base+"/deliver", "").Code)
	require.Equal(t, http.StatusOK, h.exchange(http.MethodPost, base+"/close", "").Code)
	require.Equal(t, http.StatusConflict, h.exchange(http.MethodPost, base+"/cancel", `{"reason":"late"}`).Code)
}

func TestOpenAPIContract_Errors(t *testing.T) {
	h := newContractHarness(t)

	assert.Equal(t, http.StatusNotFound, h.exchange(http.MethodGet, "/api/v1/batches/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, h.exchange(http.MethodGet, "/api/v1/crates/missing", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		h.exchange(http.MethodPost, "/api/v1/batches", `{"originId":"farm\u0001","supervisorId":"sup-1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.exchange(http.MethodGet, "/api/v1/crates?harvestedFrom=yesterday", "").Code)

	rec := h.exchange(http.MethodPost, "/api/v1/codes/validate", `{"code":"BT-061525-001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["valid"])

	rec = h.exchange(http.MethodPost, "/api/v1/codes/validate", `{"code":"mango"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["valid"])
}

func crateIDFor(t *testing.T, h *contractHarness, qrCode string) string {
	t.Helper()
	rec := h.exchange(http.MethodGet, "/api/v1/crates/qr/"+qrCode, "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeJSON(t, rec)["id"].(string)
}
