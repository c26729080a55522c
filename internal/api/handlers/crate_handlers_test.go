package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/errors"
)

func TestCrateHandlers_RegisterCrate(t *testing.T) {
	t.Run("success with inline photo", func(t *testing.T) {
		var got application.RegisterCrateCommand
		router := newTestRouter(testServices{crates: &mockCrateService{
			registerCrateFn: func(ctx context.Context, cmd application.RegisterCrateCommand) (*domain.Crate, error) {
				got = cmd
				return sampleCrate(), nil
			},
		}})

		// "png-bytes"
		rec := performRequest(router, http.MethodPost, "/api/v1/crates",
			`{"qrCode":"CR-061525-001","variety":"Alphonso","weight":10,"qualityGrade":"A","supervisorId":"sup-1","photoBase64":"data:image/png;base64,cG5nLWJ5dGVz"}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, domain.QualityGradeA, got.QualityGrade)
		assert.Equal(t, []byte("png-bytes"), got.Photo)
		assert.Equal(t, "image/png", got.PhotoContentType)
		assert.Equal(t, "CR-061525-001", decodeJSON(t, rec)["qrCode"])
	})

	t.Run("invalid fields", func(t *testing.T) {
		router := newTestRouter(testServices{})
		rec := performRequest(router, http.MethodPost, "/api/v1/crates",
			`{"qrCode":"XX-1","variety":"Alphonso","weight":0,"qualityGrade":"Z","supervisorId":"sup-1"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, errors.CodeValidationError, body.Code)
		assert.Contains(t, body.Details, "qrCode")
		assert.Contains(t, body.Details, "weight")
		assert.Contains(t, body.Details, "qualityGrade")
	})

	t.Run("bad base64 photo", func(t *testing.T) {
		router := newTestRouter(testServices{})
		rec := performRequest(router, http.MethodPost, "/api/v1/crates",
			`{"qrCode":"CR-061525-001","variety":"Alphonso","weight":10,"supervisorId":"sup-1","photoBase64":"!!not-base64!!"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, errors.CodeValidationError, body.Code)
		assert.Contains(t, body.Details, "photoBase64")
	})

	t.Run("duplicate code", func(t *testing.T) {
		router := newTestRouter(testServices{crates: &mockCrateService{
			registerCrateFn: func(ctx context.Context, cmd application.RegisterCrateCommand) (*domain.Crate, error) {
				return nil, &domain.AlreadyExistsError{Resource: "crate", Key: "CR-061525-001"}
			},
		}})

		rec := performRequest(router, http.MethodPost, "/api/v1/crates",
			`{"qrCode":"CR-061525-001","variety":"Alphonso","weight":10,"supervisorId":"sup-1"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, errors.CodeConflict, decodeError(t, rec).Code)
	})
}

func TestCrateHandlers_Lookups(t *testing.T) {
	var gotPage domain.Pagination
	router := newTestRouter(testServices{crates: &mockCrateService{
		getCrateFn: func(ctx context.Context, crateID string) (*domain.Crate, error) {
			return nil, domain.NewNotFoundError("crate", crateID)
		},
		getCrateByQRCodeFn: func(ctx context.Context, qrCode string) (*domain.Crate, error) {
			crate := sampleCrate()
			crate.Reconciled = true
			crate.ReconciledWeight = 9.5
			crate.WeightDifferential = 0.5
			return crate, nil
		},
		listUnassignedFn: func(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error) {
			gotPage = page
			return []*domain.Crate{sampleCrate()}, 1, nil
		},
	}})

	t.Run("by id not found", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet, "/api/v1/crates/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("by qr code", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet, "/api/v1/crates/qr/CR-061525-001", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, true, body["reconciled"])
		assert.Equal(t, 9.5, body["reconciledWeight"])
		assert.Equal(t, 0.5, body["weightDifferential"])
	})

	t.Run("unassigned", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet, "/api/v1/crates/unassigned?pageSize=500", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(100), gotPage.PageSize)
		assert.Equal(t, int64(1), gotPage.Page)
		assert.Len(t, decodeJSON(t, rec)["data"], 1)
	})
}

func TestCrateHandlers_ListCrates(t *testing.T) {
	var got application.ListCratesQuery
	router := newTestRouter(testServices{crates: &mockCrateService{
		listCratesFn: func(ctx context.Context, query application.ListCratesQuery) ([]*domain.Crate, int64, error) {
			got = query
			return []*domain.Crate{sampleCrate()}, 7, nil
		},
	}})

	t.Run("filters and paging", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet,
			"/api/v1/crates?batchId=batch-1&variety=Alphonso&qualityGrade=b&harvestedFrom=2025-06-14&harvestedTo=2025-06-15T06:30:00%2B05:30&page=2&pageSize=5", "")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, got.BatchID)
		assert.Equal(t, "batch-1", *got.BatchID)
		assert.Equal(t, "Alphonso", *got.Variety)
		assert.Nil(t, got.SupervisorID)
		assert.Equal(t, domain.QualityGradeB, *got.QualityGrade)
		assert.Equal(t, time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC), *got.HarvestedFrom)
		assert.Equal(t, time.Date(2025, time.June, 15, 1, 0, 0, 0, time.UTC), *got.HarvestedTo)
		assert.Equal(t, int64(2), got.Page)
		assert.Equal(t, int64(5), got.PageSize)

		body := decodeJSON(t, rec)
		assert.Len(t, body["data"], 1)
	})

	t.Run("reject grade keeps its spelling", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet, "/api/v1/crates?qualityGrade=REJECT", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.QualityGradeReject, *got.QualityGrade)
		assert.Nil(t, got.HarvestedFrom)
	})

	t.Run("malformed harvest date", func(t *testing.T) {
		rec := performRequest(router, http.MethodGet, "/api/v1/crates?harvestedTo=15/06/2025", "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, errors.CodeValidationError, body.Code)
		assert.Contains(t, body.Details, "harvestedTo")
	})
}

func TestCrateHandlers_ValidateCode(t *testing.T) {
	router := newTestRouter(testServices{})

	t.Run("valid crate code", func(t *testing.T) {
		rec := performRequest(router, http.MethodPost, "/api/v1/codes/validate", `{"code":" cr-061525-007 "}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "CR-061525-007", body["normalized"])
		assert.Equal(t, "crate", body["type"])
		assert.Equal(t, "short", body["format"])
		assert.Equal(t, "2025-06-15", body["issuedOn"])
		assert.Equal(t, float64(7), body["sequence"])
	})

	t.Run("label code", func(t *testing.T) {
		rec := performRequest(router, http.MethodPost, "/api/v1/codes/validate",
			`{"code":"asikh-batch-1b4e28ba-2fa1-11d2-883f-0016d3cca427"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "batch", body["type"])
		assert.Equal(t, "label", body["format"])
		assert.NotContains(t, body, "issuedOn")
	})

	t.Run("impossible date", func(t *testing.T) {
		rec := performRequest(router, http.MethodPost, "/api/v1/codes/validate", `{"code":"CR-023025-001"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, false, body["valid"])
		assert.Contains(t, body["reason"], "invalid date")
	})

	t.Run("missing code", func(t *testing.T) {
		rec := performRequest(router, http.MethodPost, "/api/v1/codes/validate", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
