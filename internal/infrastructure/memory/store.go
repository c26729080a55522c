// Package memory provides an in-process Store used by tests and by the
// service when STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/events"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/outbox"
)

type txKey struct{}

// Store keeps every collection in maps guarded by one mutex. A transaction
// holds the mutex for its whole duration, so transactions are serialized.
type Store struct {
	mu sync.Mutex

	batches   map[string]*domain.Batch
	crates    map[string]*domain.Crate
	records   map[string]*domain.ReconciliationRecord // keyed by crate id
	scans     []*domain.ScanAttempt
	sequences map[string]int

	outbox  *outbox.MemoryRepository
	factory *cloudevents.EventFactory
}

var _ domain.Store = (*Store)(nil)

// NewStore creates an empty store writing events to its own outbox
func NewStore(factory *cloudevents.EventFactory) *Store {
	return &Store{
		batches:   make(map[string]*domain.Batch),
		crates:    make(map[string]*domain.Crate),
		records:   make(map[string]*domain.ReconciliationRecord),
		sequences: make(map[string]int),
		outbox:    outbox.NewMemoryRepository(),
		factory:   factory,
	}
}

// Outbox returns the outbox the store writes domain events to
func (s *Store) Outbox() *outbox.MemoryRepository {
	return s.outbox
}

func (s *Store) Batches() domain.BatchRepository                  { return batchRepository{s} }
func (s *Store) Crates() domain.CrateRepository                   { return crateRepository{s} }
func (s *Store) Reconciliations() domain.ReconciliationRepository { return reconciliationRepository{s} }
func (s *Store) Scans() domain.ScanRepository                     { return scanRepository{s} }
func (s *Store) Sequences() domain.SequenceGenerator              { return sequenceGenerator{s} }

// tx journals the writes of one transaction. Undo steps run in reverse order
// on rollback; outbox entries are only saved on commit.
type tx struct {
	store   *Store
	undo    []func()
	pending []*outbox.OutboxEvent
}

// WithinTransaction runs fn with exclusive access to the store. Nested calls
// join the outer transaction. Rollback costs one step per write made by fn.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return domain.NewTransientError("begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return s.outbox.SaveAll(ctx, t.pending)
}

func (s *Store) txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	if t == nil || t.store != s {
		return nil
	}
	return t
}

func (s *Store) inTx(ctx context.Context) bool {
	return s.txFrom(ctx) != nil
}

// lock acquires the mutex unless ctx already belongs to a transaction on s
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) onRollback(ctx context.Context, fn func()) {
	if t := s.txFrom(ctx); t != nil {
		t.undo = append(t.undo, fn)
	}
}

// put stores value under key and journals the previous entry
func put[K comparable, V any](ctx context.Context, s *Store, m map[K]V, key K, value V) {
	prev, existed := m[key]
	s.onRollback(ctx, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
	m[key] = value
}

func (s *Store) appendScan(ctx context.Context, scan *domain.ScanAttempt) {
	n := len(s.scans)
	s.onRollback(ctx, func() { s.scans = s.scans[:n] })
	s.scans = append(s.scans, scan)
}

func (s *Store) saveEvents(ctx context.Context, entries []*outbox.OutboxEvent) error {
	if t := s.txFrom(ctx); t != nil {
		t.pending = append(t.pending, entries...)
		return nil
	}
	return s.outbox.SaveAll(ctx, entries)
}

func (s *Store) writeBatchEvents(ctx context.Context, batch *domain.Batch) error {
	entries, err := events.ForBatch(ctx, s.factory, batch)
	if err != nil {
		return err
	}
	if err := s.saveEvents(ctx, entries); err != nil {
		return err
	}
	batch.ClearDomainEvents()
	return nil
}

func (s *Store) writeCrateEvents(ctx context.Context, crate *domain.Crate) error {
	entries, err := events.ForCrate(ctx, s.factory, crate)
	if err != nil {
		return err
	}
	if err := s.saveEvents(ctx, entries); err != nil {
		return err
	}
	crate.ClearDomainEvents()
	return nil
}

func cloneBatch(b *domain.Batch) *domain.Batch {
	cp := *b
	cp.DomainEvents = nil
	return &cp
}

func cloneCrate(c *domain.Crate) *domain.Crate {
	cp := *c
	cp.DomainEvents = nil
	return &cp
}

func cloneRecord(r *domain.ReconciliationRecord) *domain.ReconciliationRecord {
	cp := *r
	return &cp
}

// page applies skip/limit to an already ordered slice
func page[T any](items []T, p domain.Pagination) []T {
	skip := int(p.Skip())
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit := int(p.Limit()); limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}
