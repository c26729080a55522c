package dto

import (
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

// TransportResponse represents the vehicle details of a batch
type TransportResponse struct {
	Mode          string `json:"mode,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	DriverName    string `json:"driverName,omitempty"`
}

// BatchResponse represents the response for a batch
type BatchResponse struct {
	ID                 string               `json:"id"`
	Code               string               `json:"code"`
	Status             string               `json:"status"`
	OriginID           string               `json:"originId"`
	DestinationID      string               `json:"destinationId,omitempty"`
	Transport          TransportResponse    `json:"transport"`
	SupervisorID       string               `json:"supervisorId"`
	ETA                *time.Time           `json:"eta,omitempty"`
	Location           *domain.GeoPoint     `json:"location,omitempty"`
	PhotoURL           string               `json:"photoUrl,omitempty"`
	Notes              string               `json:"notes,omitempty"`
	DepartureTime      *time.Time           `json:"departureTime,omitempty"`
	ArrivalTime        *time.Time           `json:"arrivalTime,omitempty"`
	DeliveredAt        *time.Time           `json:"deliveredAt,omitempty"`
	ClosedAt           *time.Time           `json:"closedAt,omitempty"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	CancellationReason string               `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	Version            int64                `json:"version"`
	Summary            BatchSummaryResponse `json:"summary"`
}

// BatchSummaryResponse holds the derived counters of a batch
type BatchSummaryResponse struct {
	TotalCrates             int     `json:"totalCrates"`
	TotalWeight             float64 `json:"totalWeight"`
	ReconciledCount         int     `json:"reconciledCount"`
	TotalReconciledWeight   float64 `json:"totalReconciledWeight"`
	TotalWeightDifferential float64 `json:"totalWeightDifferential"`
	WeightLossPercentage    float64 `json:"weightLossPercentage"`
	IsFullyReconciled       bool    `json:"isFullyReconciled"`
}

// CrateResponse represents the response for a crate
type CrateResponse struct {
	ID                 string           `json:"id"`
	QRCode             string           `json:"qrCode"`
	Variety            string           `json:"variety"`
	Weight             float64          `json:"weight"`
	QualityGrade       string           `json:"qualityGrade,omitempty"`
	HarvestLocation    *domain.GeoPoint `json:"harvestLocation,omitempty"`
	HarvestedAt        time.Time        `json:"harvestedAt"`
	SupervisorID       string           `json:"supervisorId"`
	PhotoURL           string           `json:"photoUrl,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	BatchID            string           `json:"batchId,omitempty"`
	AssignedAt         *time.Time       `json:"assignedAt,omitempty"`
	Reconciled         bool             `json:"reconciled"`
	ReconciledWeight   *float64         `json:"reconciledWeight,omitempty"`
	WeightDifferential *float64         `json:"weightDifferential,omitempty"`
	ReconciledPhotoURL string           `json:"reconciledPhotoUrl,omitempty"`
	ReconciledAt       *time.Time       `json:"reconciledAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// AddCrateResponse represents the batch after a crate was added
type AddCrateResponse struct {
	Batch           BatchResponse `json:"batch"`
	Crate           CrateResponse `json:"crate"`
	AlreadyAssigned bool          `json:"alreadyAssigned"`
}

// ReconciliationRecordResponse represents a stored reconciliation
type ReconciliationRecordResponse struct {
	ID               string    `json:"id"`
	BatchID          string    `json:"batchId"`
	CrateID          string    `json:"crateId"`
	QRCode           string    `json:"qrCode"`
	OriginalWeight   float64   `json:"originalWeight"`
	ReconciledWeight float64   `json:"reconciledWeight"`
	Differential     float64   `json:"differential"`
	PhotoURL         string    `json:"photoUrl,omitempty"`
	RecordedBy       string    `json:"recordedBy,omitempty"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// ReconcileResponse is returned after a crate was reconciled
type ReconcileResponse struct {
	Record   ReconciliationRecordResponse  `json:"record"`
	Batch    BatchResponse                 `json:"batch"`
	Progress domain.ReconciliationProgress `json:"progress"`
	Weights  domain.WeightSummary          `json:"weights"`
}

// CodeValidationResponse describes a scanned code
type CodeValidationResponse struct {
	Code       string `json:"code"`
	Valid      bool   `json:"valid"`
	Normalized string `json:"normalized,omitempty"`
	Type       string `json:"type,omitempty"`
	Format     string `json:"format,omitempty"`
	IssuedOn   string `json:"issuedOn,omitempty"`
	Sequence   int    `json:"sequence,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ListResponse wraps an unpaginated collection
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// NewListResponse renders nil as an empty array
func NewListResponse[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Count: len(data)}
}

// ToBatchResponse converts a domain batch to its response
func ToBatchResponse(b *domain.Batch) BatchResponse {
	agg := b.Aggregates
	return BatchResponse{
		ID:            b.ID,
		Code:          b.Code,
		Status:        string(b.Status),
		OriginID:      b.OriginID,
		DestinationID: b.DestinationID,
		Transport: TransportResponse{
			Mode:          string(b.Transport.Mode),
			VehicleNumber: b.Transport.VehicleNumber,
			DriverName:    b.Transport.DriverName,
		},
		SupervisorID:       b.SupervisorID,
		ETA:                b.ETA,
		Location:           b.Location,
		PhotoURL:           b.PhotoURL,
		Notes:              b.Notes,
		DepartureTime:      b.DepartureTime,
		ArrivalTime:        b.ArrivalTime,
		DeliveredAt:        b.DeliveredAt,
		ClosedAt:           b.ClosedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
		Summary: BatchSummaryResponse{
			TotalCrates:             agg.TotalCrates,
			TotalWeight:             domain.RoundWeight(agg.TotalWeight),
			ReconciledCount:         agg.ReconciledCount,
			TotalReconciledWeight:   domain.RoundWeight(agg.TotalReconciledWeight),
			TotalWeightDifferential: domain.RoundWeight(agg.TotalWeightDifferential),
			WeightLossPercentage:    domain.RoundWeight(agg.WeightLossPercentage),
			IsFullyReconciled:       b.IsFullyReconciled(),
		},
	}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []*domain.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, ToBatchResponse(b))
	}
	return out
}

// ToCrateResponse converts a domain crate to its response
func ToCrateResponse(c *domain.Crate) CrateResponse {
	resp := CrateResponse{
		ID:              c.ID,
		QRCode:          c.QRCode,
		Variety:         c.Variety,
		Weight:          c.Weight,
		QualityGrade:    string(c.QualityGrade),
		HarvestLocation: c.HarvestLocation,
		HarvestedAt:     c.HarvestedAt,
		SupervisorID:    c.SupervisorID,
		PhotoURL:        c.PhotoURL,
		Notes:           c.Notes,
		BatchID:         c.BatchID,
		AssignedAt:      c.AssignedAt,
		Reconciled:      c.Reconciled,
		CreatedAt:       c.CreatedAt,
	}
	if c.Reconciled {
		weight := c.ReconciledWeight
		diff := domain.RoundWeight(c.WeightDifferential)
		resp.ReconciledWeight = &weight
		resp.WeightDifferential = &diff
		resp.ReconciledPhotoURL = c.ReconciledPhotoURL
		resp.ReconciledAt = c.ReconciledAt
	}
	return resp
}

// ToCrateResponses converts a slice of crates
func ToCrateResponses(crates []*domain.Crate) []CrateResponse {
	out := make([]CrateResponse, 0, len(crates))
	for _, c := range crates {
		out = append(out, ToCrateResponse(c))
	}
	return out
}

// ToAddCrateResponse converts an add-crate result
func ToAddCrateResponse(r *application.AddCrateResult) AddCrateResponse {
	return AddCrateResponse{
		Batch:           ToBatchResponse(r.Batch),
		Crate:           ToCrateResponse(r.Crate),
		AlreadyAssigned: r.AlreadyAssigned,
	}
}

// ToRecordResponse converts a reconciliation record
func ToRecordResponse(r *domain.ReconciliationRecord) ReconciliationRecordResponse {
	return ReconciliationRecordResponse{
		ID:               r.ID,
		BatchID:          r.BatchID,
		CrateID:          r.CrateID,
		QRCode:           r.QRCode,
		OriginalWeight:   r.OriginalWeight,
		ReconciledWeight: r.ReconciledWeight,
		Differential:     domain.RoundWeight(r.Differential),
		PhotoURL:         r.PhotoURL,
		RecordedBy:       r.RecordedBy,
		RecordedAt:       r.RecordedAt,
	}
}

// ToRecordResponses converts a slice of reconciliation records
func ToRecordResponses(records []*domain.ReconciliationRecord) []ReconciliationRecordResponse {
	out := make([]ReconciliationRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ToRecordResponse(r))
	}
	return out
}

// ToReconcileResponse converts a reconciliation result
func ToReconcileResponse(r *domain.ReconciliationResult) ReconcileResponse {
	return ReconcileResponse{
		Record:   ToRecordResponse(r.Record),
		Batch:    ToBatchResponse(r.Batch),
		Progress: r.Progress,
		Weights:  r.Weights,
	}
}

// ToCodeValidationResponse describes a parsed code, or why parsing failed
func ToCodeValidationResponse(raw string, code domain.Code, err error) CodeValidationResponse {
	if err != nil {
		resp := CodeValidationResponse{Code: raw, Valid: false, Reason: err.Error()}
		if ve, ok := err.(*domain.ValidationError); ok {
			resp.Reason = ve.Reason
		}
		return resp
	}
	resp := CodeValidationResponse{
		Code:       raw,
		Valid:      true,
		Normalized: code.Value(),
		Type:       string(code.Type()),
		Format:     string(code.Format()),
		Sequence:   code.Sequence(),
	}
	if !code.IssuedOn().IsZero() {
		resp.IssuedOn = code.IssuedOn().Format(time.DateOnly)
	}
	return resp
}
