package domain

import (
	"strings"
	"time"
)

// BatchStatus represents the lifecycle status of a dispatch batch
type BatchStatus string

const (
	BatchStatusOpen      BatchStatus = "open"
	BatchStatusInTransit BatchStatus = "in_transit"
	BatchStatusArrived   BatchStatus = "arrived"
	BatchStatusDelivered BatchStatus = "delivered"
	BatchStatusClosed    BatchStatus = "closed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// AllBatchStatuses lists statuses in lifecycle order
var AllBatchStatuses = []BatchStatus{
	BatchStatusOpen,
	BatchStatusInTransit,
	BatchStatusArrived,
	BatchStatusDelivered,
	BatchStatusClosed,
	BatchStatusCancelled,
}

// IsValid checks if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusOpen, BatchStatusInTransit, BatchStatusArrived,
		BatchStatusDelivered, BatchStatusClosed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusClosed || s == BatchStatusCancelled
}

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusOpen:      {BatchStatusInTransit, BatchStatusCancelled},
	BatchStatusInTransit: {BatchStatusArrived, BatchStatusCancelled},
	BatchStatusArrived:   {BatchStatusDelivered},
	BatchStatusDelivered: {BatchStatusClosed},
	BatchStatusClosed:    {},
	BatchStatusCancelled: {},
}

// CanTransitionTo checks if the status can transition to another status
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	allowedTargets, exists := batchTransitions[s]
	if !exists {
		return false
	}
	for _, allowed := range allowedTargets {
		if target == allowed {
			return true
		}
	}
	return false
}

// TransportMode is how a batch travels from origin to destination
type TransportMode string

const (
	TransportModeTruck     TransportMode = "truck"
	TransportModeVan       TransportMode = "van"
	TransportModeBicycle   TransportMode = "bicycle"
	TransportModeMotorbike TransportMode = "motorbike"
	TransportModeOther     TransportMode = "other"
)

func (m TransportMode) IsValid() bool {
	switch m {
	case TransportModeTruck, TransportModeVan, TransportModeBicycle,
		TransportModeMotorbike, TransportModeOther:
		return true
	default:
		return false
	}
}

// Transport holds vehicle details of a batch
type Transport struct {
	Mode          TransportMode `bson:"mode,omitempty" json:"mode,omitempty"`
	VehicleNumber string        `bson:"vehicleNumber,omitempty" json:"vehicleNumber,omitempty"`
	DriverName    string        `bson:"driverName,omitempty" json:"driverName,omitempty"`
}

// BatchAggregates are derived from the crates assigned to a batch and are only
// written through RefreshAggregates.
type BatchAggregates struct {
	TotalCrates             int     `bson:"totalCrates" json:"totalCrates"`
	TotalWeight             float64 `bson:"totalWeight" json:"totalWeight"`
	ReconciledCount         int     `bson:"reconciledCount" json:"reconciledCount"`
	TotalOriginalWeight     float64 `bson:"totalOriginalWeight" json:"totalOriginalWeight"`
	TotalReconciledWeight   float64 `bson:"totalReconciledWeight" json:"totalReconciledWeight"`
	TotalWeightDifferential float64 `bson:"totalWeightDifferential" json:"totalWeightDifferential"`
	WeightLossPercentage    float64 `bson:"weightLossPercentage" json:"weightLossPercentage"`
}

// Batch is the aggregate root for a dispatch of crates between two locations
type Batch struct {
	ID                 string          `bson:"_id" json:"id"`
	Code               string          `bson:"code" json:"code"`
	Status             BatchStatus     `bson:"status" json:"status"`
	OriginID           string          `bson:"originId" json:"originId"`
	DestinationID      string          `bson:"destinationId,omitempty" json:"destinationId,omitempty"`
	Transport          Transport       `bson:"transport" json:"transport"`
	SupervisorID       string          `bson:"supervisorId" json:"supervisorId"`
	ETA                *time.Time      `bson:"eta,omitempty" json:"eta,omitempty"`
	Location           *GeoPoint       `bson:"location,omitempty" json:"location,omitempty"`
	PhotoURL           string          `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	Notes              string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Aggregates         BatchAggregates `bson:"aggregates" json:"aggregates"`
	DepartureTime      *time.Time      `bson:"departureTime,omitempty" json:"departureTime,omitempty"`
	ArrivalTime        *time.Time      `bson:"arrivalTime,omitempty" json:"arrivalTime,omitempty"`
	DeliveredAt        *time.Time      `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	ClosedAt           *time.Time      `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	CancelledAt        *time.Time      `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason string          `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	Version            int64           `bson:"version" json:"version"`
	CreatedAt          time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time       `bson:"updatedAt" json:"updatedAt"`

	// Domain events (not persisted)
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewBatchParams carries the caller-supplied attributes of a new batch
type NewBatchParams struct {
	ID            string
	Code          Code
	OriginID      string
	DestinationID string
	Transport     Transport
	SupervisorID  string
	ETA           *time.Time
	Location      *GeoPoint
	PhotoURL      string
	Notes         string
}

// NewBatch creates an open batch with no crates
func NewBatch(params NewBatchParams, now time.Time) (*Batch, error) {
	if params.ID == "" {
		return nil, NewValidationError("id", "batch id is required")
	}
	if !params.Code.IsBatch() {
		return nil, NewValidationError("code", "a batch code is required")
	}
	if strings.TrimSpace(params.OriginID) == "" {
		return nil, NewValidationError("originId", "origin location is required")
	}
	if strings.TrimSpace(params.SupervisorID) == "" {
		return nil, NewValidationError("supervisorId", "supervisor is required")
	}
	if params.Transport.Mode != "" && !params.Transport.Mode.IsValid() {
		return nil, NewValidationError("transportMode", "must be one of truck, van, bicycle, motorbike, other")
	}
	if params.Location != nil {
		if err := params.Location.Validate(); err != nil {
			return nil, err
		}
	}

	batch := &Batch{
		ID:            params.ID,
		Code:          params.Code.Value(),
		Status:        BatchStatusOpen,
		OriginID:      params.OriginID,
		DestinationID: params.DestinationID,
		Transport:     params.Transport,
		SupervisorID:  params.SupervisorID,
		ETA:           params.ETA,
		Location:      params.Location,
		PhotoURL:      params.PhotoURL,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	batch.addDomainEvent(&BatchCreatedEvent{
		BatchID:       batch.ID,
		BatchCode:     batch.Code,
		OriginID:      batch.OriginID,
		DestinationID: batch.DestinationID,
		SupervisorID:  batch.SupervisorID,
		OccurredAt_:   now,
	})

	return batch, nil
}

// AddCrate assigns an unassigned crate to this batch. The batch must be open.
// Aggregates are refreshed separately from the crate records.
func (b *Batch) AddCrate(crate *Crate, now time.Time) error {
	if b.Status != BatchStatusOpen {
		return &InvalidStateTransitionError{
			BatchID: b.ID,
			Current: b.Status,
			Action:  "add crate to",
			Reason:  "crates can only be added to an open batch",
		}
	}
	if err := crate.AssignToBatch(b.ID, now); err != nil {
		return err
	}

	b.UpdatedAt = now
	b.addDomainEvent(&CrateAddedToBatchEvent{
		BatchID:     b.ID,
		CrateID:     crate.ID,
		QRCode:      crate.QRCode,
		Weight:      crate.Weight,
		OccurredAt_: now,
	})
	return nil
}

// RefreshAggregates recomputes all derived aggregates from the batch's crate records
func (b *Batch) RefreshAggregates(crates []*Crate) {
	summary := SummarizeWeights(crates)
	b.Aggregates = BatchAggregates{
		TotalCrates:             summary.TotalCrates,
		TotalWeight:             summary.TotalOriginalWeight,
		ReconciledCount:         summary.ReconciledCount,
		TotalOriginalWeight:     summary.TotalOriginalWeight,
		TotalReconciledWeight:   summary.TotalReconciledWeight,
		TotalWeightDifferential: summary.TotalWeightDifferential,
		WeightLossPercentage:    summary.WeightLossPercentage,
	}
}

// IsFullyReconciled reports whether every crate in a non-empty batch is reconciled
func (b *Batch) IsFullyReconciled() bool {
	return b.Aggregates.TotalCrates > 0 && b.Aggregates.ReconciledCount == b.Aggregates.TotalCrates
}

// Depart moves an open batch with at least one crate into transit
func (b *Batch) Depart(now time.Time) error {
	if b.Status == BatchStatusOpen && b.Aggregates.TotalCrates == 0 {
		return b.rejected("depart", "batch has no crates")
	}
	from := b.Status
	if err := b.transition("depart", BatchStatusInTransit, now); err != nil {
		return err
	}
	b.DepartureTime = &now

	b.addDomainEvent(&BatchDepartedEvent{
		BatchID:       b.ID,
		BatchCode:     b.Code,
		FromStatus:    from,
		TotalCrates:   b.Aggregates.TotalCrates,
		TotalWeight:   b.Aggregates.TotalWeight,
		TransportMode: b.Transport.Mode,
		DepartedAt:    now,
	})
	return nil
}

// Arrive marks an in-transit batch as arrived, making it eligible for reconciliation
func (b *Batch) Arrive(now time.Time) error {
	if err := b.transition("arrive", BatchStatusArrived, now); err != nil {
		return err
	}
	b.ArrivalTime = &now
	if b.DepartureTime == nil {
		b.DepartureTime = &now
	}

	b.addDomainEvent(&BatchArrivedEvent{
		BatchID:       b.ID,
		BatchCode:     b.Code,
		DestinationID: b.DestinationID,
		TransitTime:   b.TransitTime().String(),
		ArrivedAt:     now,
	})
	return nil
}

// Deliver requires an arrived batch whose crates are all reconciled
func (b *Batch) Deliver(now time.Time) error {
	if b.Status == BatchStatusArrived && !b.IsFullyReconciled() {
		return b.rejected("deliver", b.unreconciledReason())
	}
	if err := b.transition("deliver", BatchStatusDelivered, now); err != nil {
		return err
	}
	b.DeliveredAt = &now

	b.addDomainEvent(&BatchDeliveredEvent{
		BatchID:              b.ID,
		BatchCode:            b.Code,
		TotalCrates:          b.Aggregates.TotalCrates,
		WeightDifferential:   b.Aggregates.TotalWeightDifferential,
		WeightLossPercentage: b.Aggregates.WeightLossPercentage,
		DeliveredAt:          now,
	})
	return nil
}

// Close finalizes a delivered, fully reconciled batch
func (b *Batch) Close(now time.Time) error {
	if b.Status == BatchStatusDelivered && !b.IsFullyReconciled() {
		return b.rejected("close", b.unreconciledReason())
	}
	if err := b.transition("close", BatchStatusClosed, now); err != nil {
		return err
	}
	b.ClosedAt = &now

	b.addDomainEvent(&BatchClosedEvent{
		BatchID:     b.ID,
		BatchCode:   b.Code,
		ClosedAt:    now,
		TotalCrates: b.Aggregates.TotalCrates,
	})
	return nil
}

// Cancel abandons an open or in-transit batch
func (b *Batch) Cancel(reason string, now time.Time) error {
	from := b.Status
	if err := b.transition("cancel", BatchStatusCancelled, now); err != nil {
		return err
	}
	b.CancelledAt = &now
	b.CancellationReason = reason

	b.addDomainEvent(&BatchCancelledEvent{
		BatchID:     b.ID,
		BatchCode:   b.Code,
		FromStatus:  from,
		Reason:      reason,
		CancelledAt: now,
	})
	return nil
}

// BatchDetails holds the editable metadata of an open batch. Nil fields are left unchanged.
type BatchDetails struct {
	DestinationID *string
	SupervisorID  *string
	TransportMode *TransportMode
	VehicleNumber *string
	DriverName    *string
	ETA           *time.Time
	Notes         *string
}

// UpdateDetails edits the metadata of an open batch and returns the names of
// the fields that changed. Status only moves through the lifecycle methods.
func (b *Batch) UpdateDetails(details BatchDetails, now time.Time) ([]string, error) {
	if b.Status != BatchStatusOpen {
		return nil, b.rejected("update", "only an open batch can be edited")
	}
	if details.SupervisorID != nil && strings.TrimSpace(*details.SupervisorID) == "" {
		return nil, NewValidationError("supervisorId", "supervisor cannot be cleared")
	}
	if details.TransportMode != nil && *details.TransportMode != "" && !details.TransportMode.IsValid() {
		return nil, NewValidationError("transportMode", "must be one of truck, van, bicycle, motorbike, other")
	}

	var changed []string
	setString := func(field string, dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = append(changed, field)
		}
	}
	setString("destinationId", &b.DestinationID, details.DestinationID)
	setString("supervisorId", &b.SupervisorID, details.SupervisorID)
	if details.TransportMode != nil && b.Transport.Mode != *details.TransportMode {
		b.Transport.Mode = *details.TransportMode
		changed = append(changed, "transportMode")
	}
	setString("vehicleNumber", &b.Transport.VehicleNumber, details.VehicleNumber)
	setString("driverName", &b.Transport.DriverName, details.DriverName)
	if details.ETA != nil && (b.ETA == nil || !b.ETA.Equal(*details.ETA)) {
		eta := *details.ETA
		b.ETA = &eta
		changed = append(changed, "eta")
	}
	setString("notes", &b.Notes, details.Notes)

	if len(changed) == 0 {
		return nil, nil
	}
	b.UpdatedAt = now
	b.addDomainEvent(&BatchUpdatedEvent{
		BatchID:   b.ID,
		BatchCode: b.Code,
		Changes:   changed,
		UpdatedAt: now,
	})
	return changed, nil
}

// EnsureReconcilable returns an error unless crates of this batch may be reconciled
func (b *Batch) EnsureReconcilable() error {
	if b.Status != BatchStatusArrived {
		return b.rejected("reconcile crates of", "reconciliation is only allowed once the batch has arrived")
	}
	return nil
}

// TransitTime returns the time between departure and arrival, zero until both are set
func (b *Batch) TransitTime() time.Duration {
	if b.DepartureTime == nil || b.ArrivalTime == nil {
		return 0
	}
	return b.ArrivalTime.Sub(*b.DepartureTime)
}

func (b *Batch) transition(action string, target BatchStatus, now time.Time) error {
	if b.Status.IsTerminal() {
		return b.rejected(action, "batch is "+string(b.Status)+" and accepts no further changes")
	}
	if !b.Status.CanTransitionTo(target) {
		return b.rejected(action, "")
	}
	b.Status = target
	b.UpdatedAt = now
	return nil
}

func (b *Batch) rejected(action, reason string) error {
	return &InvalidStateTransitionError{BatchID: b.ID, Current: b.Status, Action: action, Reason: reason}
}

func (b *Batch) unreconciledReason() string {
	p := NewReconciliationProgress(b.ID, b.Aggregates.ReconciledCount, b.Aggregates.TotalCrates)
	return "batch is not fully reconciled (" + p.Label + ")"
}

func (b *Batch) addDomainEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (b *Batch) GetDomainEvents() []DomainEvent {
	return b.DomainEvents
}

// ClearDomainEvents clears all domain events
func (b *Batch) ClearDomainEvents() {
	b.DomainEvents = make([]DomainEvent, 0)
}
