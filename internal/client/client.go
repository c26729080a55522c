package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/dto"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/api"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
)

const (
	defaultTimeout = 30 * time.Second
	userIDHeader   = "X-User-ID"
	apiPrefix      = "/api/v1"
)

// APIError is a non-2xx response from the dispatch service
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("dispatch service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// Temporary reports whether the request may succeed when retried
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from the service
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserID sets the operator identity sent with every request
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithRetry replaces the retry policy used for transient failures
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client talks to the dispatch HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	userID     string
	retry      *resilience.RetryConfig
}

// New creates a Client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	retry := resilience.DefaultRetryConfig()
	retry.RetryableErrors = isRetryable

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retry:      retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ListBatchesOptions filters ListBatches
type ListBatchesOptions struct {
	Status        string
	OriginID      string
	DestinationID string
	SupervisorID  string
	Page          int
	PageSize      int
}

// GetBatch fetches a batch by id
func (c *Client) GetBatch(ctx context.Context, batchID string) (*dto.BatchResponse, error) {
	var batch dto.BatchResponse
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetBatchByCode fetches a batch by its BT code
func (c *Client) GetBatchByCode(ctx context.Context, code string) (*dto.BatchResponse, error) {
	var batch dto.BatchResponse
	if err := c.get(ctx, "/batches/code/"+url.PathEscape(code), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ResolveBatch accepts either a batch id or a batch code
func (c *Client) ResolveBatch(ctx context.Context, ref string) (*dto.BatchResponse, error) {
	if code, err := domain.ParseCode(ref); err == nil && code.Type() == domain.CodeTypeBatch {
		return c.GetBatchByCode(ctx, code.Value())
	}
	return c.GetBatch(ctx, ref)
}

// ListBatches fetches one page of batches
func (c *Client) ListBatches(ctx context.Context, opts ListBatchesOptions) (*api.PageResponse[dto.BatchResponse], error) {
	q := url.Values{}
	setIfNotEmpty(q, "status", opts.Status)
	setIfNotEmpty(q, "originId", opts.OriginID)
	setIfNotEmpty(q, "destinationId", opts.DestinationID)
	setIfNotEmpty(q, "supervisorId", opts.SupervisorID)
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}

	var page api.PageResponse[dto.BatchResponse]
	if err := c.get(ctx, "/batches", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListCrates fetches the crates of a batch
func (c *Client) ListCrates(ctx context.Context, batchID string) ([]dto.CrateResponse, error) {
	var list dto.ListResponse[dto.CrateResponse]
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID)+"/crates", nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// ReconciliationStatus fetches the reconciliation progress of a batch
func (c *Client) ReconciliationStatus(ctx context.Context, batchID string) (*application.ReconciliationStatus, error) {
	var status application.ReconciliationStatus
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID)+"/reconciliation-status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WeightDetails fetches the weight summary and per-crate table of a batch
func (c *Client) WeightDetails(ctx context.Context, batchID string) (*application.WeightDetails, error) {
	var details application.WeightDetails
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID)+"/weight-details", nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// Stats fetches batch statistics
func (c *Client) Stats(ctx context.Context, batchID string) (*domain.BatchStats, error) {
	var stats domain.BatchStats
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListScans fetches the most recent scan attempts of a batch
func (c *Client) ListScans(ctx context.Context, batchID string, limit int) ([]domain.ScanAttempt, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var list dto.ListResponse[domain.ScanAttempt]
	if err := c.get(ctx, "/batches/"+url.PathEscape(batchID)+"/scans", q, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Summary fetches the reconciliation overview for the last days
func (c *Client) Summary(ctx context.Context, days int) (*domain.ReconciliationSummary, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var summary domain.ReconciliationSummary
	if err := c.get(ctx, "/reconciliation/summary", q, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ValidateCode asks the service to parse a scanned code
func (c *Client) ValidateCode(ctx context.Context, code string) (*dto.CodeValidationResponse, error) {
	var resp dto.CodeValidationResponse
	if err := c.do(ctx, http.MethodPost, "/codes/validate", nil, dto.ValidateCodeRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// do runs the request under the retry policy. Only reads and code validation
// go through here, so replaying a request is safe.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return resilience.Retry(ctx, c.retry, func() error {
		return c.once(ctx, method, target, payload, out)
	})
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userIDHeader, c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Bodies that are not the error envelope still produce an APIError
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
