package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is returned when a unique code is already taken
var ErrAlreadyExists = errors.New("already exists")

// AlreadyExistsError reports a unique code collision
type AlreadyExistsError struct {
	Resource string
	Key      string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// BatchRepository defines the interface for batch persistence
type BatchRepository interface {
	// Create inserts a new batch and its pending domain events
	Create(ctx context.Context, batch *Batch) error

	// Update writes the batch only if its stored version still equals batch.Version,
	// then increments the version. A stale version yields a ConcurrencyConflictError.
	Update(ctx context.Context, batch *Batch) error

	// FindByID returns nil, nil when the batch does not exist
	FindByID(ctx context.Context, batchID string) (*Batch, error)

	// FindByCode returns nil, nil when no batch carries the code
	FindByCode(ctx context.Context, code string) (*Batch, error)

	// List returns one page of batches matching the filter, newest first, and the total count
	List(ctx context.Context, filter BatchFilter, page Pagination) ([]*Batch, int64, error)

	// CountByStatus returns the number of batches per status
	CountByStatus(ctx context.Context) (map[BatchStatus]int64, error)
}

// CrateRepository defines the interface for crate persistence
type CrateRepository interface {
	// Create inserts a new crate; a taken QR code yields an AlreadyExistsError
	Create(ctx context.Context, crate *Crate) error

	FindByID(ctx context.Context, crateID string) (*Crate, error)

	FindByQRCode(ctx context.Context, qrCode string) (*Crate, error)

	// FindByBatch returns every crate assigned to the batch
	FindByBatch(ctx context.Context, batchID string) ([]*Crate, error)

	// List returns one page of crates matching the filter, most recently harvested first, and the total count
	List(ctx context.Context, filter CrateFilter, page Pagination) ([]*Crate, int64, error)

	// FindUnassigned returns one page of crates with no batch, and the total count
	FindUnassigned(ctx context.Context, page Pagination) ([]*Crate, int64, error)

	// AssignToBatch sets the crate's batch only while it has none.
	// A crate already in a batch yields a CrateAssignedError.
	AssignToBatch(ctx context.Context, crate *Crate) error

	// MarkReconciled writes the reconciliation sub-state only while the stored crate is
	// unreconciled. A reconciled crate yields ErrDuplicateReconciliation.
	MarkReconciled(ctx context.Context, crate *Crate) error

	// Count returns the number of crates and how many of them are reconciled
	Count(ctx context.Context) (total int64, reconciled int64, err error)
}

// ReconciliationRepository defines the interface for the reconciliation log
type ReconciliationRepository interface {
	// Create appends a record; a second record for the same crate yields a DuplicateReconciliationError
	Create(ctx context.Context, record *ReconciliationRecord) error

	FindByCrateID(ctx context.Context, crateID string) (*ReconciliationRecord, error)

	// FindByBatch returns records of a batch, oldest first
	FindByBatch(ctx context.Context, batchID string) ([]*ReconciliationRecord, error)
}

// ScanRepository stores reconciliation attempts
type ScanRepository interface {
	Append(ctx context.Context, scan *ScanAttempt) error

	// FindByBatch returns the most recent attempts first, up to limit
	FindByBatch(ctx context.Context, batchID string, limit int) ([]*ScanAttempt, error)

	CountByOutcome(ctx context.Context, since time.Time) (map[ScanOutcome]int64, error)

	// CountByDay keys counts by UTC day formatted with DayLayout
	CountByDay(ctx context.Context, since time.Time) (map[string]int64, error)
}

// SequenceGenerator issues monotonically increasing numbers per named sequence
type SequenceGenerator interface {
	Next(ctx context.Context, name string) (int, error)
}

// UnitOfWork runs fn atomically. Repository calls made with the ctx passed to fn
// join the unit of work; nothing is visible to other readers until fn returns nil.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store groups the repositories of the dispatch context behind one unit of work
type Store interface {
	UnitOfWork
	Batches() BatchRepository
	Crates() CrateRepository
	Reconciliations() ReconciliationRepository
	Scans() ScanRepository
	Sequences() SequenceGenerator
}

// BatchFilter represents filter options for listing batches
type BatchFilter struct {
	Status        *BatchStatus
	OriginID      *string
	DestinationID *string
	SupervisorID  *string
}

// CrateFilter represents filter options for listing crates.
// The harvest range includes HarvestedFrom and excludes HarvestedTo.
type CrateFilter struct {
	BatchID       *string
	Variety       *string
	SupervisorID  *string
	QualityGrade  *QualityGrade
	HarvestedFrom *time.Time
	HarvestedTo   *time.Time
}

// Matches reports whether the crate passes every set filter field
func (f CrateFilter) Matches(c *Crate) bool {
	switch {
	case f.BatchID != nil && c.BatchID != *f.BatchID:
		return false
	case f.Variety != nil && c.Variety != *f.Variety:
		return false
	case f.SupervisorID != nil && c.SupervisorID != *f.SupervisorID:
		return false
	case f.QualityGrade != nil && c.QualityGrade != *f.QualityGrade:
		return false
	case f.HarvestedFrom != nil && c.HarvestedAt.Before(*f.HarvestedFrom):
		return false
	case f.HarvestedTo != nil && !c.HarvestedAt.Before(*f.HarvestedTo):
		return false
	}
	return true
}

// Pagination represents pagination options
type Pagination struct {
	Page     int64
	PageSize int64
}

// DefaultPagination returns default pagination options
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 20,
	}
}

// Skip returns the number of documents to skip
func (p Pagination) Skip() int64 {
	return (p.Page - 1) * p.PageSize
}

// Limit returns the maximum number of documents to return
func (p Pagination) Limit() int64 {
	return p.PageSize
}
