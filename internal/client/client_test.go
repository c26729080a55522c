package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: isRetryable,
	}
}

func TestClient_GetBatch(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/batches/batch-1", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				assert.Equal(t, "op-1", r.Header.Get("X-User-ID"))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"batch-1","code":"BT-061525-001","status":"arrived","summary":{"totalCrates":3,"reconciledCount":1}}`))
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"code":"RESOURCE_NOT_FOUND","message":"batch not found"}`))
			},
			wantErr:    true,
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
		{
			name: "non-json error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
			wantErr:    true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := New(server.URL+"/", WithUserID("op-1"), WithRetry(fastRetry()))
			batch, err := c.GetBatch(context.Background(), "batch-1")

			if tt.wantErr {
				require.Error(t, err)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "BT-061525-001", batch.Code)
			assert.Equal(t, 3, batch.Summary.TotalCrates)
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"TRANSIENT_ERROR","message":"temporarily unavailable"}`))
			return
		}
		w.Write([]byte(`{"batchId":"batch-1","batchCode":"BT-061525-001","status":"arrived","reconciledCount":2,"totalCrates":4,"missingCrates":2,"percentage":50,"label":"2/4 crates (50%)"}`))
	}))
	defer server.Close()

	c := New(server.URL, WithRetry(fastRetry()))
	status, err := c.ReconciliationStatus(context.Background(), "batch-1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "2/4 crates (50%)", status.Label)
	assert.Equal(t, "BT-061525-001", status.BatchCode)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL, WithRetry(fastRetry()))
	_, err := c.WeightDetails(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ListBatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/batches", r.URL.Path)
		assert.Equal(t, "in_transit", r.URL.Query().Get("status"))
		assert.Equal(t, "farm-1", r.URL.Query().Get("originId"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Empty(t, r.URL.Query().Get("destinationId"))
		w.Write([]byte(`{"data":[{"id":"b-1"},{"id":"b-2"}],"page":2,"pageSize":20,"totalItems":22,"totalPages":2,"hasNext":false,"hasPrev":true}`))
	}))
	defer server.Close()

	page, err := New(server.URL).ListBatches(context.Background(), ListBatchesOptions{
		Status:   "in_transit",
		OriginID: "farm-1",
		Page:     2,
	})

	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(22), page.TotalItems)
	assert.True(t, page.HasPrev)
}

func TestClient_ResolveBatch(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"batch-1"}`))
	}))
	defer server.Close()
	c := New(server.URL)

	_, err := c.ResolveBatch(context.Background(), "bt-061525-001")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/batches/code/BT-061525-001", gotPath)

	_, err = c.ResolveBatch(context.Background(), "0f8fad5b-d9cb-469f-a165-70867728950e")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/batches/0f8fad5b-d9cb-469f-a165-70867728950e", gotPath)
}

func TestClient_ValidateCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CR-061525-001", body["code"])
		w.Write([]byte(`{"code":"CR-061525-001","valid":true,"normalized":"CR-061525-001","type":"crate","format":"short","sequence":1}`))
	}))
	defer server.Close()

	resp, err := New(server.URL).ValidateCode(context.Background(), "CR-061525-001")

	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, "crate", resp.Type)
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL).Stats(ctx, "batch-1")
	assert.ErrorIs(t, err, context.Canceled)
}
