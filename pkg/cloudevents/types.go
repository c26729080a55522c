package cloudevents

import (
	"fmt"
	"time"
)

// Event sources
const (
	SourceDispatch      = "/asikh/dispatch-service"
	SourceCrateRegistry = "/asikh/crate-registry"
)

// Extension attribute names
const (
	ExtCorrelationID = "dispatchcorrelationid"
	ExtBatchID       = "dispatchbatchid"
	ExtActorID       = "dispatchactorid"
)

// SpecVersion is the CloudEvents version emitted by the factory
const SpecVersion = "1.0"

// DispatchCloudEvent represents a CloudEvents v1.0 compliant event for the
// mango dispatch domain
type DispatchCloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`

	// Dispatch extensions
	CorrelationID string `json:"dispatchcorrelationid,omitempty"`
	BatchID       string `json:"dispatchbatchid,omitempty"`
	ActorID       string `json:"dispatchactorid,omitempty"`
}

// Validate checks the attributes CloudEvents marks as required
func (e *DispatchCloudEvent) Validate() error {
	switch {
	case e.SpecVersion != SpecVersion:
		return fmt.Errorf("unsupported specversion %q", e.SpecVersion)
	case e.ID == "":
		return fmt.Errorf("event id is required")
	case e.Type == "":
		return fmt.Errorf("event type is required")
	case e.Source == "":
		return fmt.Errorf("event source is required")
	}
	return nil
}

// Extensions returns the non-empty extension attributes keyed by their
// CloudEvents names, for use as Kafka headers
func (e *DispatchCloudEvent) Extensions() map[string]string {
	ext := make(map[string]string, 3)
	if e.CorrelationID != "" {
		ext[ExtCorrelationID] = e.CorrelationID
	}
	if e.BatchID != "" {
		ext[ExtBatchID] = e.BatchID
	}
	if e.ActorID != "" {
		ext[ExtActorID] = e.ActorID
	}
	return ext
}
