package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeyRepository keeps keys in process memory. Used with the memory
// storage driver and in tests.
type MemoryKeyRepository struct {
	mu      sync.Mutex
	byID    map[string]*IdempotencyKey
	byScope map[string]string
}

// NewMemoryKeyRepository creates an empty repository
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{
		byID:    make(map[string]*IdempotencyKey),
		byScope: make(map[string]string),
	}
}

func scopeOf(serviceID, userID, key string) string {
	return serviceID + "\x00" + userID + "\x00" + key
}

func (r *MemoryKeyRepository) AcquireLock(_ context.Context, key *IdempotencyKey, staleAfter time.Duration) (*IdempotencyKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	scope := scopeOf(key.ServiceID, key.UserID, key.Key)

	if id, ok := r.byScope[scope]; ok {
		stored := r.byID[id]
		stale := stored.IsLocked() && stored.LockedAt.Before(now.Add(-staleAfter))
		if stale && stored.RequestFingerprint == key.RequestFingerprint {
			stored.LockedAt = &now
			cp := *stored
			return &cp, true, nil
		}
		cp := *stored
		return &cp, false, nil
	}

	stored := *key
	stored.LockedAt = &now
	r.byID[stored.ID] = &stored
	r.byScope[scope] = stored.ID
	cp := stored
	return &cp, true, nil
}

func (r *MemoryKeyRepository) ReleaseLock(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[keyID]
	if !ok || stored.IsCompleted() {
		return nil
	}
	delete(r.byID, keyID)
	delete(r.byScope, scopeOf(stored.ServiceID, stored.UserID, stored.Key))
	return nil
}

func (r *MemoryKeyRepository) StoreResponse(_ context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[keyID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	stored.ResponseCode = responseCode
	stored.ResponseBody = append([]byte(nil), responseBody...)
	stored.ResponseHeaders = headers
	stored.CompletedAt = &now
	stored.LockedAt = nil
	return nil
}

func (r *MemoryKeyRepository) Get(_ context.Context, serviceID, userID, key string) (*IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byScope[scopeOf(serviceID, userID, key)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryKeyRepository) Clean(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, stored := range r.byID {
		if stored.ExpiresAt.Before(before) {
			delete(r.byID, id)
			delete(r.byScope, scopeOf(stored.ServiceID, stored.UserID, stored.Key))
			n++
		}
	}
	return n, nil
}

func (r *MemoryKeyRepository) EnsureIndexes(context.Context) error { return nil }
