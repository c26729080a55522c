package idempotency

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long an unfinished request holds its key.
	// Field devices retry after a few seconds, so this stays short.
	DefaultLockTimeout = 30 * time.Second

	// DefaultRetentionPeriod is the default retention period for idempotency keys
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the maximum response size to cache (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

// Config holds configuration for the idempotency middleware
type Config struct {
	// ServiceName scopes keys to one service
	ServiceName string

	// Repository is the storage backend for idempotency keys
	Repository KeyRepository

	// RequireKey rejects mutating requests without a key
	RequireKey bool

	// OnlyMutating skips GET, HEAD and OPTIONS
	OnlyMutating bool

	// UserIDExtractor scopes keys per user when set
	UserIDExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration

	// Responses larger than this are replaced by a marker body
	MaxResponseSize int

	Metrics *Metrics
	Logger  *slog.Logger
}

// DefaultConfig returns a default configuration for the given service
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		RequireKey:      false,
		OnlyMutating:    true,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		Logger:          slog.Default(),
	}
}
