package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderIdempotencyKey is the HTTP header name for the idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderIdempotentReplay is set on responses served from a stored key
	HeaderIdempotentReplay = "Idempotent-Replayed"
)

// responseWriter wraps gin.ResponseWriter to capture response data
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns a Gin middleware that replays the stored response of a
// finished request carrying the same Idempotency-Key. Server errors release the
// key so a retry runs the handler again.
func Middleware(config *Config) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		if config.OnlyMutating && !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				abort(c, http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED", ErrKeyRequired.Error())
				return
			}
			c.Next()
			return
		}

		if err := ValidateKeyWithMaxLength(key, config.MaxKeyLength); err != nil {
			abort(c, http.StatusBadRequest, "IDEMPOTENCY_KEY_INVALID", fmt.Sprintf("invalid idempotency key: %v", err))
			return
		}

		var userID string
		if config.UserIDExtractor != nil {
			userID = config.UserIDExtractor(c)
		}

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}
		fingerprint := ComputeFingerprint(c.Request.Method, c.Request.URL.Path, requestBody)

		processIdempotency(c, config, logger, key, userID, fingerprint)
	}
}

func processIdempotency(c *gin.Context, config *Config, logger *slog.Logger, key, userID, fingerprint string) {
	ctx := c.Request.Context()
	endpoint := c.FullPath()
	method := c.Request.Method
	now := time.Now().UTC()

	candidate := &IdempotencyKey{
		ID:                 uuid.NewString(),
		Key:                key,
		UserID:             userID,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      method,
		RequestFingerprint: fingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(config.RetentionPeriod),
	}

	stored, isNew, err := config.Repository.AcquireLock(ctx, candidate, config.LockTimeout)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire idempotency lock",
			"error", err,
			"key", key,
			"path", c.Request.URL.Path,
		)
		config.Metrics.RecordStorageError(config.ServiceName, "acquire_lock")
		abort(c, http.StatusServiceUnavailable, "IDEMPOTENCY_STORAGE_UNAVAILABLE", "idempotency storage is temporarily unavailable")
		return
	}
	config.Metrics.RecordLockAcquisitionDuration(config.ServiceName, endpoint, method, time.Since(now).Seconds())

	if !isNew {
		if stored.RequestFingerprint != fingerprint {
			logger.WarnContext(ctx, "Idempotency parameter mismatch",
				"key", key,
				"path", c.Request.URL.Path,
			)
			config.Metrics.RecordParameterMismatch(config.ServiceName, endpoint, method)
			abort(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_PARAMETER_MISMATCH",
				"request differs from the original request with this idempotency key")
			return
		}

		if stored.IsCompleted() {
			logger.InfoContext(ctx, "Idempotency cache hit",
				"key", key,
				"path", c.Request.URL.Path,
				"statusCode", stored.ResponseCode,
			)
			config.Metrics.RecordHit(config.ServiceName, endpoint, method)
			for k, v := range stored.ResponseHeaders {
				c.Header(k, v)
			}
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(stored.ResponseCode, "application/json; charset=utf-8", stored.ResponseBody)
			c.Abort()
			return
		}

		config.Metrics.RecordConcurrentCollision(config.ServiceName, endpoint, method)
		abort(c, http.StatusConflict, "IDEMPOTENCY_CONCURRENT_REQUEST",
			"a request with this idempotency key is currently being processed")
		return
	}

	config.Metrics.RecordMiss(config.ServiceName, endpoint, method)

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	c.Next()

	status := writer.Status()
	if status >= http.StatusInternalServerError {
		if err := config.Repository.ReleaseLock(ctx, stored.ID); err != nil {
			config.Metrics.RecordStorageError(config.ServiceName, "release_lock")
			logger.ErrorContext(ctx, "Failed to release idempotency key", "error", err, "key", key)
			return
		}
		config.Metrics.RecordRelease(config.ServiceName, endpoint, method)
		logger.DebugContext(ctx, "Released idempotency key after server error", "key", key, "statusCode", status)
		return
	}

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		logger.WarnContext(ctx, "Response too large to cache",
			"key", key,
			"size", len(responseBody),
			"maxSize", config.MaxResponseSize,
		)
		responseBody = []byte(fmt.Sprintf(`{"code":"RESPONSE_NOT_CACHED","message":"response too large to cache","size":%d}`, len(responseBody)))
	}

	if err := config.Repository.StoreResponse(ctx, stored.ID, status, responseBody, extractResponseHeaders(c)); err != nil {
		logger.ErrorContext(ctx, "Failed to store idempotency response",
			"error", err,
			"key", key,
			"path", c.Request.URL.Path,
		)
		config.Metrics.RecordStorageError(config.ServiceName, "store_response")
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// isMutatingMethod returns true if the HTTP method is mutating
func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}

// extractResponseHeaders keeps the headers worth replaying
func extractResponseHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for _, k := range []string{"Location", "X-Request-ID"} {
		if v := c.Writer.Header().Get(k); v != "" {
			headers[k] = v
		}
	}
	return headers
}
