package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

type batchRepository struct{ s *Store }

func (r batchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.batches[batch.ID]; ok {
		return &domain.AlreadyExistsError{Resource: "batch", Key: batch.ID}
	}
	for _, b := range r.s.batches {
		if b.Code == batch.Code {
			return &domain.AlreadyExistsError{Resource: "batch", Key: batch.Code}
		}
	}
	if err := r.s.writeBatchEvents(ctx, batch); err != nil {
		return err
	}
	put(ctx, r.s, r.s.batches, batch.ID, cloneBatch(batch))
	return nil
}

func (r batchRepository) Update(ctx context.Context, batch *domain.Batch) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.batches[batch.ID]
	if !ok {
		return domain.NewNotFoundError("batch", batch.ID)
	}
	if stored.Version != batch.Version {
		return &domain.ConcurrencyConflictError{Resource: "batch", ID: batch.ID}
	}
	if err := r.s.writeBatchEvents(ctx, batch); err != nil {
		return err
	}
	batch.Version++
	put(ctx, r.s, r.s.batches, batch.ID, cloneBatch(batch))
	return nil
}

func (r batchRepository) FindByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	defer r.s.lock(ctx)()

	if b, ok := r.s.batches[batchID]; ok {
		return cloneBatch(b), nil
	}
	return nil, nil
}

func (r batchRepository) FindByCode(ctx context.Context, code string) (*domain.Batch, error) {
	defer r.s.lock(ctx)()

	for _, b := range r.s.batches {
		if b.Code == code {
			return cloneBatch(b), nil
		}
	}
	return nil, nil
}

func (r batchRepository) List(ctx context.Context, filter domain.BatchFilter, p domain.Pagination) ([]*domain.Batch, int64, error) {
	defer r.s.lock(ctx)()

	var matched []*domain.Batch
	for _, b := range r.s.batches {
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.OriginID != nil && b.OriginID != *filter.OriginID {
			continue
		}
		if filter.DestinationID != nil && b.DestinationID != *filter.DestinationID {
			continue
		}
		if filter.SupervisorID != nil && b.SupervisorID != *filter.SupervisorID {
			continue
		}
		matched = append(matched, b)
	}

	slices.SortFunc(matched, func(a, b *domain.Batch) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Code, a.Code)
	})

	out := make([]*domain.Batch, 0)
	for _, b := range page(matched, p) {
		out = append(out, cloneBatch(b))
	}
	return out, int64(len(matched)), nil
}

func (r batchRepository) CountByStatus(ctx context.Context) (map[domain.BatchStatus]int64, error) {
	defer r.s.lock(ctx)()

	counts := make(map[domain.BatchStatus]int64)
	for _, b := range r.s.batches {
		counts[b.Status]++
	}
	return counts, nil
}

type crateRepository struct{ s *Store }

func (r crateRepository) Create(ctx context.Context, crate *domain.Crate) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.crates[crate.ID]; ok {
		return &domain.AlreadyExistsError{Resource: "crate", Key: crate.ID}
	}
	for _, c := range r.s.crates {
		if c.QRCode == crate.QRCode {
			return &domain.AlreadyExistsError{Resource: "crate", Key: crate.QRCode}
		}
	}
	if err := r.s.writeCrateEvents(ctx, crate); err != nil {
		return err
	}
	put(ctx, r.s, r.s.crates, crate.ID, cloneCrate(crate))
	return nil
}

func (r crateRepository) FindByID(ctx context.Context, crateID string) (*domain.Crate, error) {
	defer r.s.lock(ctx)()

	if c, ok := r.s.crates[crateID]; ok {
		return cloneCrate(c), nil
	}
	return nil, nil
}

func (r crateRepository) FindByQRCode(ctx context.Context, qrCode string) (*domain.Crate, error) {
	defer r.s.lock(ctx)()

	for _, c := range r.s.crates {
		if c.QRCode == qrCode {
			return cloneCrate(c), nil
		}
	}
	return nil, nil
}

func (r crateRepository) FindByBatch(ctx context.Context, batchID string) ([]*domain.Crate, error) {
	defer r.s.lock(ctx)()

	out := make([]*domain.Crate, 0)
	for _, c := range r.s.crates {
		if c.BatchID == batchID {
			out = append(out, cloneCrate(c))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Crate) int { return strings.Compare(a.QRCode, b.QRCode) })
	return out, nil
}

func (r crateRepository) List(ctx context.Context, filter domain.CrateFilter, p domain.Pagination) ([]*domain.Crate, int64, error) {
	defer r.s.lock(ctx)()

	var matched []*domain.Crate
	for _, c := range r.s.crates {
		if filter.Matches(c) {
			matched = append(matched, c)
		}
	}
	slices.SortFunc(matched, func(a, b *domain.Crate) int {
		return cmp.Or(b.HarvestedAt.Compare(a.HarvestedAt), strings.Compare(a.QRCode, b.QRCode))
	})

	out := make([]*domain.Crate, 0)
	for _, c := range page(matched, p) {
		out = append(out, cloneCrate(c))
	}
	return out, int64(len(matched)), nil
}

func (r crateRepository) FindUnassigned(ctx context.Context, p domain.Pagination) ([]*domain.Crate, int64, error) {
	defer r.s.lock(ctx)()

	var matched []*domain.Crate
	for _, c := range r.s.crates {
		if !c.IsAssigned() {
			matched = append(matched, c)
		}
	}
	slices.SortFunc(matched, func(a, b *domain.Crate) int {
		return cmp.Or(b.HarvestedAt.Compare(a.HarvestedAt), strings.Compare(a.QRCode, b.QRCode))
	})

	out := make([]*domain.Crate, 0)
	for _, c := range page(matched, p) {
		out = append(out, cloneCrate(c))
	}
	return out, int64(len(matched)), nil
}

func (r crateRepository) AssignToBatch(ctx context.Context, crate *domain.Crate) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.crates[crate.ID]
	if !ok {
		return domain.NewNotFoundError("crate", crate.ID)
	}
	if stored.IsAssigned() {
		return &domain.CrateAssignedError{CrateID: crate.ID, BatchID: stored.BatchID}
	}
	updated := cloneCrate(stored)
	updated.BatchID = crate.BatchID
	updated.AssignedAt = crate.AssignedAt
	updated.UpdatedAt = crate.UpdatedAt
	put(ctx, r.s, r.s.crates, crate.ID, updated)
	return nil
}

func (r crateRepository) MarkReconciled(ctx context.Context, crate *domain.Crate) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.crates[crate.ID]
	if !ok {
		return domain.NewNotFoundError("crate", crate.ID)
	}
	if stored.Reconciled {
		return domain.ErrDuplicateReconciliation
	}
	if err := r.s.writeCrateEvents(ctx, crate); err != nil {
		return err
	}
	updated := cloneCrate(stored)
	updated.Reconciled = true
	updated.ReconciledWeight = crate.ReconciledWeight
	updated.WeightDifferential = crate.WeightDifferential
	updated.ReconciledPhotoURL = crate.ReconciledPhotoURL
	updated.ReconciledAt = crate.ReconciledAt
	updated.UpdatedAt = crate.UpdatedAt
	put(ctx, r.s, r.s.crates, crate.ID, updated)
	return nil
}

func (r crateRepository) Count(ctx context.Context) (int64, int64, error) {
	defer r.s.lock(ctx)()

	var total, reconciled int64
	for _, c := range r.s.crates {
		total++
		if c.Reconciled {
			reconciled++
		}
	}
	return total, reconciled, nil
}

type reconciliationRepository struct{ s *Store }

func (r reconciliationRepository) Create(ctx context.Context, record *domain.ReconciliationRecord) error {
	defer r.s.lock(ctx)()

	if existing, ok := r.s.records[record.CrateID]; ok {
		return &domain.DuplicateReconciliationError{Record: cloneRecord(existing)}
	}
	put(ctx, r.s, r.s.records, record.CrateID, cloneRecord(record))
	return nil
}

func (r reconciliationRepository) FindByCrateID(ctx context.Context, crateID string) (*domain.ReconciliationRecord, error) {
	defer r.s.lock(ctx)()

	if rec, ok := r.s.records[crateID]; ok {
		return cloneRecord(rec), nil
	}
	return nil, nil
}

func (r reconciliationRepository) FindByBatch(ctx context.Context, batchID string) ([]*domain.ReconciliationRecord, error) {
	defer r.s.lock(ctx)()

	out := make([]*domain.ReconciliationRecord, 0)
	for _, rec := range r.s.records {
		if rec.BatchID == batchID {
			out = append(out, cloneRecord(rec))
		}
	}
	slices.SortFunc(out, func(a, b *domain.ReconciliationRecord) int {
		return cmp.Or(a.RecordedAt.Compare(b.RecordedAt), strings.Compare(a.QRCode, b.QRCode))
	})
	return out, nil
}

type scanRepository struct{ s *Store }

func (r scanRepository) Append(ctx context.Context, scan *domain.ScanAttempt) error {
	defer r.s.lock(ctx)()

	cp := *scan
	r.s.appendScan(ctx, &cp)
	return nil
}

func (r scanRepository) FindByBatch(ctx context.Context, batchID string, limit int) ([]*domain.ScanAttempt, error) {
	defer r.s.lock(ctx)()

	out := make([]*domain.ScanAttempt, 0)
	for i := len(r.s.scans) - 1; i >= 0; i-- {
		scan := r.s.scans[i]
		if scan.BatchID != batchID {
			continue
		}
		cp := *scan
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r scanRepository) CountByOutcome(ctx context.Context, since time.Time) (map[domain.ScanOutcome]int64, error) {
	defer r.s.lock(ctx)()

	counts := make(map[domain.ScanOutcome]int64)
	for _, scan := range r.s.scans {
		if !scan.ScannedAt.Before(since) {
			counts[scan.Outcome]++
		}
	}
	return counts, nil
}

func (r scanRepository) CountByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	defer r.s.lock(ctx)()

	counts := make(map[string]int64)
	for _, scan := range r.s.scans {
		if !scan.ScannedAt.Before(since) {
			counts[scan.ScannedAt.UTC().Format(domain.DayLayout)]++
		}
	}
	return counts, nil
}

type sequenceGenerator struct{ s *Store }

func (g sequenceGenerator) Next(ctx context.Context, name string) (int, error) {
	defer g.s.lock(ctx)()

	next := g.s.sequences[name] + 1
	put(ctx, g.s, g.s.sequences, name, next)
	return next, nil
}
