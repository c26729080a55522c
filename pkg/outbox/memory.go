package outbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryRepository is an in-process outbox used by the memory store and tests
type MemoryRepository struct {
	mu     sync.Mutex
	events []*OutboxEvent
}

// NewMemoryRepository creates an empty in-memory outbox
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(ctx context.Context, event *OutboxEvent) error {
	return r.SaveAll(ctx, []*OutboxEvent{event})
}

func (r *MemoryRepository) SaveAll(_ context.Context, events []*OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		cp := *e
		r.events = append(r.events, &cp)
	}
	return nil
}

func (r *MemoryRepository) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range r.events {
		if !e.ShouldRetry() {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkPublished(_ context.Context, eventID string) error {
	return r.update(eventID, func(e *OutboxEvent) {
		now := time.Now().UTC()
		e.PublishedAt = &now
	})
}

func (r *MemoryRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	return r.update(eventID, func(e *OutboxEvent) {
		e.RetryCount++
		e.LastError = errorMsg
	})
}

func (r *MemoryRepository) FindByAggregateID(_ context.Context, aggregateID string) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range r.events {
		if e.AggregateID == aggregateID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Snapshot returns a copy of every stored event, published or not
func (r *MemoryRepository) Snapshot() []*OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *MemoryRepository) update(eventID string, fn func(*OutboxEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.events {
		if e.ID == eventID {
			cp := *e
			fn(&cp)
			r.events[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("event not found: %s", eventID)
}
