package domain

import "time"

// DomainEvent represents a domain event interface
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// Event type names, also used as CloudEvents types
const (
	EventTypeBatchCreated    = "dispatch.batch.created"
	EventTypeBatchUpdated    = "dispatch.batch.updated"
	EventTypeCrateAdded      = "dispatch.batch.crate_added"
	EventTypeBatchDeparted   = "dispatch.batch.departed"
	EventTypeBatchArrived    = "dispatch.batch.arrived"
	EventTypeBatchDelivered  = "dispatch.batch.delivered"
	EventTypeBatchClosed     = "dispatch.batch.closed"
	EventTypeBatchCancelled  = "dispatch.batch.cancelled"
	EventTypeCrateRegistered = "dispatch.crate.registered"
	EventTypeCrateReconciled = "dispatch.crate.reconciled"
)

// BatchCreatedEvent is emitted when a new batch is opened
type BatchCreatedEvent struct {
	BatchID       string    `json:"batchId"`
	BatchCode     string    `json:"batchCode"`
	OriginID      string    `json:"originId"`
	DestinationID string    `json:"destinationId,omitempty"`
	SupervisorID  string    `json:"supervisorId"`
	OccurredAt_   time.Time `json:"occurredAt"`
}

func (e *BatchCreatedEvent) EventType() string     { return EventTypeBatchCreated }
func (e *BatchCreatedEvent) OccurredAt() time.Time { return e.OccurredAt_ }

// BatchUpdatedEvent is emitted when the metadata of an open batch is edited
type BatchUpdatedEvent struct {
	BatchID   string    `json:"batchId"`
	BatchCode string    `json:"batchCode"`
	Changes   []string  `json:"changes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *BatchUpdatedEvent) EventType() string     { return EventTypeBatchUpdated }
func (e *BatchUpdatedEvent) OccurredAt() time.Time { return e.UpdatedAt }

// CrateAddedToBatchEvent is emitted when a crate is assigned to a batch
type CrateAddedToBatchEvent struct {
	BatchID     string    `json:"batchId"`
	CrateID     string    `json:"crateId"`
	QRCode      string    `json:"qrCode"`
	Weight      float64   `json:"weight"`
	OccurredAt_ time.Time `json:"occurredAt"`
}

func (e *CrateAddedToBatchEvent) EventType() string     { return EventTypeCrateAdded }
func (e *CrateAddedToBatchEvent) OccurredAt() time.Time { return e.OccurredAt_ }

// BatchDepartedEvent is emitted when a batch leaves its origin
type BatchDepartedEvent struct {
	BatchID       string        `json:"batchId"`
	BatchCode     string        `json:"batchCode"`
	FromStatus    BatchStatus   `json:"fromStatus"`
	TotalCrates   int           `json:"totalCrates"`
	TotalWeight   float64       `json:"totalWeight"`
	TransportMode TransportMode `json:"transportMode,omitempty"`
	DepartedAt    time.Time     `json:"departedAt"`
}

func (e *BatchDepartedEvent) EventType() string     { return EventTypeBatchDeparted }
func (e *BatchDepartedEvent) OccurredAt() time.Time { return e.DepartedAt }

// BatchArrivedEvent is emitted when a batch reaches its destination
type BatchArrivedEvent struct {
	BatchID       string    `json:"batchId"`
	BatchCode     string    `json:"batchCode"`
	DestinationID string    `json:"destinationId,omitempty"`
	TransitTime   string    `json:"transitTime"`
	ArrivedAt     time.Time `json:"arrivedAt"`
}

func (e *BatchArrivedEvent) EventType() string     { return EventTypeBatchArrived }
func (e *BatchArrivedEvent) OccurredAt() time.Time { return e.ArrivedAt }

// BatchDeliveredEvent is emitted once every crate of an arrived batch is reconciled and handed over
type BatchDeliveredEvent struct {
	BatchID              string    `json:"batchId"`
	BatchCode            string    `json:"batchCode"`
	TotalCrates          int       `json:"totalCrates"`
	WeightDifferential   float64   `json:"weightDifferential"`
	WeightLossPercentage float64   `json:"weightLossPercentage"`
	DeliveredAt          time.Time `json:"deliveredAt"`
}

func (e *BatchDeliveredEvent) EventType() string     { return EventTypeBatchDelivered }
func (e *BatchDeliveredEvent) OccurredAt() time.Time { return e.DeliveredAt }

// BatchClosedEvent is emitted when a batch is finalized
type BatchClosedEvent struct {
	BatchID     string    `json:"batchId"`
	BatchCode   string    `json:"batchCode"`
	TotalCrates int       `json:"totalCrates"`
	ClosedAt    time.Time `json:"closedAt"`
}

func (e *BatchClosedEvent) EventType() string     { return EventTypeBatchClosed }
func (e *BatchClosedEvent) OccurredAt() time.Time { return e.ClosedAt }

// BatchCancelledEvent is emitted when a batch is abandoned
type BatchCancelledEvent struct {
	BatchID     string      `json:"batchId"`
	BatchCode   string      `json:"batchCode"`
	FromStatus  BatchStatus `json:"fromStatus"`
	Reason      string      `json:"reason,omitempty"`
	CancelledAt time.Time   `json:"cancelledAt"`
}

func (e *BatchCancelledEvent) EventType() string     { return EventTypeBatchCancelled }
func (e *BatchCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// CrateRegisteredEvent is emitted when a crate is recorded at harvest
type CrateRegisteredEvent struct {
	CrateID      string       `json:"crateId"`
	QRCode       string       `json:"qrCode"`
	Variety      string       `json:"variety"`
	Weight       float64      `json:"weight"`
	QualityGrade QualityGrade `json:"qualityGrade,omitempty"`
	HarvestedAt  time.Time    `json:"harvestedAt"`
	OccurredAt_  time.Time    `json:"occurredAt"`
}

func (e *CrateRegisteredEvent) EventType() string     { return EventTypeCrateRegistered }
func (e *CrateRegisteredEvent) OccurredAt() time.Time { return e.OccurredAt_ }

// CrateReconciledEvent is emitted when a crate is re-weighed on arrival
type CrateReconciledEvent struct {
	CrateID          string    `json:"crateId"`
	BatchID          string    `json:"batchId"`
	QRCode           string    `json:"qrCode"`
	OriginalWeight   float64   `json:"originalWeight"`
	ReconciledWeight float64   `json:"reconciledWeight"`
	Differential     float64   `json:"differential"` // positive is loss
	PhotoURL         string    `json:"photoUrl,omitempty"`
	ReconciledAt     time.Time `json:"reconciledAt"`
}

func (e *CrateReconciledEvent) EventType() string     { return EventTypeCrateReconciled }
func (e *CrateReconciledEvent) OccurredAt() time.Time { return e.ReconciledAt }
