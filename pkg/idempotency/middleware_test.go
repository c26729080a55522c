package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reconcilePath = "/batches/b1/reconcile"

// failingRepository fails every lock acquisition
type failingRepository struct {
	*MemoryKeyRepository
}

func (f failingRepository) AcquireLock(context.Context, *IdempotencyKey, time.Duration) (*IdempotencyKey, bool, error) {
	return nil, false, errors.New("connection refused")
}

type testServer struct {
	router *gin.Engine
	repo   KeyRepository
	calls  int
	status int
}

func newTestServer(t *testing.T, configure func(*Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{repo: NewMemoryKeyRepository(), status: http.StatusCreated}
	config := DefaultConfig("dispatch-service", s.repo)
	if configure != nil {
		configure(config)
	}
	s.repo = config.Repository

	s.router = gin.New()
	s.router.Use(Middleware(config))
	handler := func(c *gin.Context) {
		s.calls++
		c.JSON(s.status, gin.H{"call": s.calls})
	}
	s.router.POST(reconcilePath, handler)
	s.router.GET(reconcilePath, handler)
	return s
}

func (s *testServer) do(method, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, reconcilePath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_NoKey(t *testing.T) {
	t.Run("optional", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := s.do(http.MethodPost, "", `{"qrCode":"CR-061525-001"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, s.calls)
	})

	t.Run("required", func(t *testing.T) {
		s := newTestServer(t, func(c *Config) { c.RequireKey = true })
		w := s.do(http.MethodPost, "", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REQUIRED")
		assert.Zero(t, s.calls)
	})
}

func TestMiddleware_InvalidKey(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodPost, "invalid key with spaces", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_INVALID")
}

func TestMiddleware_ReplaysCompletedRequest(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"qrCode":"CR-061525-001","weight":9.5}`

	first := s.do(http.MethodPost, "scan-1", body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := s.do(http.MethodPost, "scan-1", body)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotentReplay))
	assert.Equal(t, 1, s.calls)
}

func TestMiddleware_ParameterMismatch(t *testing.T) {
	s := newTestServer(t, nil)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "scan-1", `{"weight":9.5}`).Code)

	w := s.do(http.MethodPost, "scan-1", `{"weight":9.0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_PARAMETER_MISMATCH")
	assert.Equal(t, 1, s.calls)
}

func TestMiddleware_ConcurrentRequest(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"weight":9.5}`

	// Another request with the same key is in flight
	_, isNew, err := s.repo.AcquireLock(context.Background(), &IdempotencyKey{
		ID:                 "in-flight",
		Key:                "scan-1",
		ServiceID:          "dispatch-service",
		RequestFingerprint: ComputeFingerprint(http.MethodPost, reconcilePath, []byte(body)),
	}, DefaultLockTimeout)
	require.NoError(t, err)
	require.True(t, isNew)

	w := s.do(http.MethodPost, "scan-1", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_CONCURRENT_REQUEST")
	assert.Zero(t, s.calls)
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"weight":9.5}`

	s.status = http.StatusServiceUnavailable
	require.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "scan-1", body).Code)

	s.status = http.StatusCreated
	w := s.do(http.MethodPost, "scan-1", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, s.calls)
	assert.Empty(t, w.Header().Get(HeaderIdempotentReplay))
}

func TestMiddleware_ClientErrorIsReplayed(t *testing.T) {
	s := newTestServer(t, nil)
	s.status = http.StatusConflict

	s.do(http.MethodPost, "scan-1", `{}`)
	w := s.do(http.MethodPost, "scan-1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, s.calls)
}

func TestMiddleware_StorageFailure(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.Repository = failingRepository{NewMemoryKeyRepository()}
	})

	w := s.do(http.MethodPost, "scan-1", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_STORAGE_UNAVAILABLE")
	assert.Zero(t, s.calls)
}

func TestMiddleware_SkipsGET(t *testing.T) {
	s := newTestServer(t, nil)
	s.status = http.StatusOK

	s.do(http.MethodGet, "scan-1", "")
	s.do(http.MethodGet, "scan-1", "")
	assert.Equal(t, 2, s.calls)
}

func TestMiddleware_KeysScopedPerUser(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.UserIDExtractor = func(c *gin.Context) string { return c.GetHeader("X-User-ID") }
	})

	for _, user := range []string{"sup-1", "sup-2"} {
		req := httptest.NewRequest(http.MethodPost, reconcilePath, bytes.NewBufferString(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "scan-1")
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, s.calls)
}
