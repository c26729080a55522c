package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
)

// CrateService is the crate registry: harvest registration and lookups
type CrateService struct {
	store   domain.Store
	photos  photoUploader
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCrateService creates a new CrateService. photos and m may be nil.
func NewCrateService(store domain.Store, photos PhotoStore, logger *logging.Logger, m *metrics.Metrics) *CrateService {
	logger = logger.WithComponent("crate-service")
	return &CrateService{
		store:   store,
		photos:  photoUploader{store: photos, logger: logger},
		logger:  logger,
		metrics: m,
		now:     utcNow,
	}
}

// RegisterCrate records a crate at harvest. An attached photo is uploaded
// before the crate is stored, under a key derived from the QR code; when the
// upload fails the crate is registered without it.
func (s *CrateService) RegisterCrate(ctx context.Context, cmd RegisterCrateCommand) (*domain.Crate, error) {
	code, err := domain.ParseCrateCode(cmd.QRCode)
	if err != nil {
		return nil, err
	}

	photoURL := cmd.PhotoURL
	if len(cmd.Photo) > 0 && s.photos.store != nil {
		existing, err := s.store.Crates().FindByQRCode(ctx, code.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to get crate: %w", err)
		}
		if existing != nil {
			return nil, &domain.AlreadyExistsError{Resource: "crate", Key: code.Value()}
		}
		if url := s.photos.upload(ctx, "crates", code.Value(), cmd.Photo, cmd.PhotoContentType); url != "" {
			photoURL = url
		}
	}

	now := s.now()
	var harvestedAt time.Time
	if cmd.HarvestedAt != nil {
		harvestedAt = cmd.HarvestedAt.UTC()
	}

	crate, err := domain.NewCrate(domain.NewCrateParams{
		ID:              uuid.NewString(),
		QRCode:          code,
		Variety:         strings.TrimSpace(cmd.Variety),
		Weight:          cmd.Weight,
		QualityGrade:    cmd.QualityGrade,
		HarvestLocation: cmd.HarvestLocation,
		HarvestedAt:     harvestedAt,
		SupervisorID:    strings.TrimSpace(cmd.SupervisorID),
		PhotoURL:        photoURL,
		Notes:           cmd.Notes,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Crates().Create(ctx, crate); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCrateRegistered(gradeLabel(crate.QualityGrade))
	}
	s.logger.Info("Registered crate",
		"crateId", crate.ID,
		"qrCode", crate.QRCode,
		"variety", crate.Variety,
		"weight", crate.Weight,
	)
	return crate, nil
}

// GetCrate returns a crate by id
func (s *CrateService) GetCrate(ctx context.Context, crateID string) (*domain.Crate, error) {
	crate, err := s.store.Crates().FindByID(ctx, crateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get crate: %w", err)
	}
	if crate == nil {
		return nil, domain.NewNotFoundError("crate", crateID)
	}
	return crate, nil
}

// GetCrateByQRCode returns a crate by its QR code, matched case-insensitively
func (s *CrateService) GetCrateByQRCode(ctx context.Context, raw string) (*domain.Crate, error) {
	code, err := domain.ParseCrateCode(raw)
	if err != nil {
		return nil, err
	}
	crate, err := s.store.Crates().FindByQRCode(ctx, code.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to get crate: %w", err)
	}
	if crate == nil {
		return nil, domain.NewNotFoundError("crate", code.Value())
	}
	return crate, nil
}

// ListCrates returns one page of crates matching the query, most recently harvested first, and the total count
func (s *CrateService) ListCrates(ctx context.Context, query ListCratesQuery) ([]*domain.Crate, int64, error) {
	if query.QualityGrade != nil && !query.QualityGrade.IsValid() {
		return nil, 0, domain.NewValidationError("qualityGrade", "must be one of A, B, C, reject")
	}
	if query.HarvestedFrom != nil && query.HarvestedTo != nil && !query.HarvestedFrom.Before(*query.HarvestedTo) {
		return nil, 0, domain.NewValidationError("harvestedTo", "must be after harvestedFrom")
	}
	page := domain.DefaultPagination()
	if query.Page > 0 {
		page.Page = query.Page
	}
	if query.PageSize > 0 {
		page.PageSize = query.PageSize
	}

	filter := domain.CrateFilter{
		BatchID:       query.BatchID,
		Variety:       query.Variety,
		SupervisorID:  query.SupervisorID,
		QualityGrade:  query.QualityGrade,
		HarvestedFrom: query.HarvestedFrom,
		HarvestedTo:   query.HarvestedTo,
	}
	crates, total, err := s.store.Crates().List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list crates: %w", err)
	}
	return crates, total, nil
}

// ListUnassigned returns one page of crates that are in no batch, and the total count
func (s *CrateService) ListUnassigned(ctx context.Context, page domain.Pagination) ([]*domain.Crate, int64, error) {
	if page.Page < 1 || page.PageSize < 1 {
		page = domain.DefaultPagination()
	}
	crates, total, err := s.store.Crates().FindUnassigned(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unassigned crates: %w", err)
	}
	return crates, total, nil
}

func gradeLabel(g domain.QualityGrade) string {
	if g == "" {
		return "ungraded"
	}
	return string(g)
}
