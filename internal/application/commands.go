package application

import (
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

// CreateBatchCommand opens a new dispatch batch. The batch code is generated.
type CreateBatchCommand struct {
	OriginID      string
	DestinationID string
	TransportMode domain.TransportMode
	VehicleNumber string
	DriverName    string
	SupervisorID  string
	ETA           *time.Time
	Location      *domain.GeoPoint
	PhotoURL      string
	Notes         string
}

// ListBatchesQuery filters and pages the batch list
type ListBatchesQuery struct {
	Status        *domain.BatchStatus
	OriginID      *string
	DestinationID *string
	SupervisorID  *string
	Page          int64
	PageSize      int64
}

// ListCratesQuery filters and pages the crate list.
// The harvest range includes HarvestedFrom and excludes HarvestedTo.
type ListCratesQuery struct {
	BatchID       *string
	Variety       *string
	SupervisorID  *string
	QualityGrade  *domain.QualityGrade
	HarvestedFrom *time.Time
	HarvestedTo   *time.Time
	Page          int64
	PageSize      int64
}

// AddCrateCommand assigns a crate to a batch, identified by QR code or by id.
// QRCode wins when both are set.
type AddCrateCommand struct {
	BatchID string
	QRCode  string
	CrateID string
}

// UpdateBatchCommand edits the metadata of an open batch
type UpdateBatchCommand struct {
	BatchID         string
	ExpectedVersion *int64
	Details         domain.BatchDetails
}

// CancelBatchCommand abandons an open or in-transit batch
type CancelBatchCommand struct {
	BatchID string
	Reason  string
}

// RegisterCrateCommand records a crate at harvest
type RegisterCrateCommand struct {
	QRCode          string
	Variety         string
	Weight          float64
	QualityGrade    domain.QualityGrade
	HarvestLocation *domain.GeoPoint
	HarvestedAt     *time.Time
	SupervisorID    string
	Notes           string

	// PhotoURL references an already stored photo; Photo is uploaded when set
	PhotoURL         string
	Photo            []byte
	PhotoContentType string
}

// ReconcileCrateCommand records the post-transit weight of a crate
type ReconcileCrateCommand struct {
	BatchID string
	QRCode  string
	Weight  float64

	PhotoURL         string
	Photo            []byte
	PhotoContentType string

	// DeviceID identifies the scanner that read the code
	DeviceID string
}

// AddCrateResult is the batch after an assignment together with the crate
type AddCrateResult struct {
	Batch *domain.Batch
	Crate *domain.Crate
	// AlreadyAssigned is true when the crate was already in this batch and nothing changed
	AlreadyAssigned bool
}

// ReconciliationStatus is the polled reconciliation view of a batch
type ReconciliationStatus struct {
	domain.ReconciliationProgress
	BatchCode string             `json:"batchCode"`
	Status    domain.BatchStatus `json:"status"`
}

// WeightDetails is the batch weight summary with the per-crate table
type WeightDetails struct {
	BatchID   string               `json:"batchId"`
	BatchCode string               `json:"batchCode"`
	Status    domain.BatchStatus   `json:"status"`
	Summary   domain.WeightSummary `json:"summary"`
	Crates    []domain.CrateWeight `json:"crates"`
}
