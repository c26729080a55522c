package domain

import (
	"strings"
	"time"
)

// QualityGrade is the harvest quality classification of a crate
type QualityGrade string

const (
	QualityGradeA      QualityGrade = "A"
	QualityGradeB      QualityGrade = "B"
	QualityGradeC      QualityGrade = "C"
	QualityGradeReject QualityGrade = "reject"
)

// AllQualityGrades lists grades in reporting order
var AllQualityGrades = []QualityGrade{QualityGradeA, QualityGradeB, QualityGradeC, QualityGradeReject}

func (g QualityGrade) IsValid() bool {
	switch g {
	case QualityGradeA, QualityGradeB, QualityGradeC, QualityGradeReject:
		return true
	default:
		return false
	}
}

// GeoPoint is a GPS fix captured on a field device
type GeoPoint struct {
	Lat      float64  `bson:"lat" json:"lat"`
	Lng      float64  `bson:"lng" json:"lng"`
	Accuracy *float64 `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
}

// Validate checks coordinate bounds
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return NewValidationError("lat", "latitude must be between -90 and 90")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return NewValidationError("lng", "longitude must be between -180 and 180")
	}
	return nil
}

// Crate is a unit of harvested produce tracked from the field to the packhouse
type Crate struct {
	ID              string       `bson:"_id" json:"id"`
	QRCode          string       `bson:"qrCode" json:"qrCode"`
	Variety         string       `bson:"variety" json:"variety"`
	Weight          float64      `bson:"weight" json:"weight"`
	QualityGrade    QualityGrade `bson:"qualityGrade,omitempty" json:"qualityGrade,omitempty"`
	HarvestLocation *GeoPoint    `bson:"harvestLocation,omitempty" json:"harvestLocation,omitempty"`
	HarvestedAt     time.Time    `bson:"harvestedAt" json:"harvestedAt"`
	SupervisorID    string       `bson:"supervisorId" json:"supervisorId"`
	PhotoURL        string       `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	Notes           string       `bson:"notes,omitempty" json:"notes,omitempty"`

	BatchID    string     `bson:"batchId,omitempty" json:"batchId,omitempty"`
	AssignedAt *time.Time `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`

	Reconciled         bool       `bson:"reconciled" json:"reconciled"`
	ReconciledWeight   float64    `bson:"reconciledWeight,omitempty" json:"reconciledWeight,omitempty"`
	WeightDifferential float64    `bson:"weightDifferential,omitempty" json:"weightDifferential,omitempty"`
	ReconciledPhotoURL string     `bson:"reconciledPhotoUrl,omitempty" json:"reconciledPhotoUrl,omitempty"`
	ReconciledAt       *time.Time `bson:"reconciledAt,omitempty" json:"reconciledAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// Domain events (not persisted)
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewCrateParams carries the attributes captured at harvest
type NewCrateParams struct {
	ID              string
	QRCode          Code
	Variety         string
	Weight          float64
	QualityGrade    QualityGrade
	HarvestLocation *GeoPoint
	HarvestedAt     time.Time
	SupervisorID    string
	PhotoURL        string
	Notes           string
}

// NewCrate registers an unassigned crate
func NewCrate(params NewCrateParams, now time.Time) (*Crate, error) {
	if params.ID == "" {
		return nil, NewValidationError("id", "crate id is required")
	}
	if !params.QRCode.IsCrate() {
		return nil, NewValidationError("qrCode", "a crate code is required")
	}
	if err := ValidateWeight("weight", params.Weight); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Variety) == "" {
		return nil, NewValidationError("variety", "variety is required")
	}
	if strings.TrimSpace(params.SupervisorID) == "" {
		return nil, NewValidationError("supervisorId", "supervisor is required")
	}
	if params.QualityGrade != "" && !params.QualityGrade.IsValid() {
		return nil, NewValidationError("qualityGrade", "must be one of A, B, C, reject")
	}
	if params.HarvestLocation != nil {
		if err := params.HarvestLocation.Validate(); err != nil {
			return nil, err
		}
	}

	harvestedAt := params.HarvestedAt
	if harvestedAt.IsZero() {
		harvestedAt = now
	}

	crate := &Crate{
		ID:              params.ID,
		QRCode:          params.QRCode.Value(),
		Variety:         params.Variety,
		Weight:          params.Weight,
		QualityGrade:    params.QualityGrade,
		HarvestLocation: params.HarvestLocation,
		HarvestedAt:     harvestedAt,
		SupervisorID:    params.SupervisorID,
		PhotoURL:        params.PhotoURL,
		Notes:           params.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	crate.addDomainEvent(&CrateRegisteredEvent{
		CrateID:      crate.ID,
		QRCode:       crate.QRCode,
		Variety:      crate.Variety,
		Weight:       crate.Weight,
		QualityGrade: crate.QualityGrade,
		HarvestedAt:  crate.HarvestedAt,
		OccurredAt_:  now,
	})

	return crate, nil
}

// IsAssigned returns true once the crate belongs to a batch
func (c *Crate) IsAssigned() bool {
	return c.BatchID != ""
}

// AssignToBatch binds the crate to a batch. Reassignment is not permitted.
func (c *Crate) AssignToBatch(batchID string, now time.Time) error {
	if c.IsAssigned() {
		return &CrateAssignedError{CrateID: c.ID, BatchID: c.BatchID}
	}
	c.BatchID = batchID
	c.AssignedAt = &now
	c.UpdatedAt = now
	return nil
}

// Reconcile records the post-transit weight of the crate. It can succeed only once.
func (c *Crate) Reconcile(weight float64, photoURL string, now time.Time) (*ReconciliationRecord, error) {
	if c.Reconciled {
		return nil, &DuplicateReconciliationError{}
	}
	if err := ValidateWeight("weight", weight); err != nil {
		return nil, err
	}

	c.Reconciled = true
	c.ReconciledWeight = weight
	c.WeightDifferential = c.Weight - weight
	c.ReconciledPhotoURL = photoURL
	c.ReconciledAt = &now
	c.UpdatedAt = now

	record := &ReconciliationRecord{
		BatchID:          c.BatchID,
		CrateID:          c.ID,
		QRCode:           c.QRCode,
		OriginalWeight:   c.Weight,
		ReconciledWeight: weight,
		Differential:     c.WeightDifferential,
		PhotoURL:         photoURL,
		RecordedAt:       now,
	}

	c.addDomainEvent(&CrateReconciledEvent{
		CrateID:          c.ID,
		BatchID:          c.BatchID,
		QRCode:           c.QRCode,
		OriginalWeight:   c.Weight,
		ReconciledWeight: weight,
		Differential:     c.WeightDifferential,
		PhotoURL:         photoURL,
		ReconciledAt:     now,
	})

	return record, nil
}

func (c *Crate) addDomainEvent(event DomainEvent) {
	c.DomainEvents = append(c.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (c *Crate) GetDomainEvents() []DomainEvent {
	return c.DomainEvents
}

// ClearDomainEvents clears all domain events
func (c *Crate) ClearDomainEvents() {
	c.DomainEvents = make([]DomainEvent, 0)
}
