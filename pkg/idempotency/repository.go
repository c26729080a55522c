package idempotency

import (
	"context"
	"time"
)

// KeyRepository stores idempotency keys. Implementations must make AcquireLock atomic.
type KeyRepository interface {
	// AcquireLock inserts the key locked, or returns the stored key for the same
	// (service, user, key) triple. isNew is true only for the insert. A stored key
	// whose lock is older than staleAfter is re-locked and returned with isNew true.
	AcquireLock(ctx context.Context, key *IdempotencyKey, staleAfter time.Duration) (stored *IdempotencyKey, isNew bool, err error)

	// ReleaseLock forgets an unfinished key so the next request with it runs again
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse marks the key completed with the response to replay
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	Get(ctx context.Context, serviceID, userID, key string) (*IdempotencyKey, error)

	// Clean removes keys that expired before the given time
	Clean(ctx context.Context, before time.Time) (int64, error)

	EnsureIndexes(ctx context.Context) error
}
