package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is by the handler layer
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrDuplicateReconciliation = errors.New("crate already reconciled")
	ErrConcurrencyConflict     = errors.New("concurrent modification")
	ErrCrateAlreadyAssigned    = errors.New("crate already assigned to a batch")
	ErrTransient               = errors.New("transient failure")
	ErrSequenceExhausted       = errors.New("daily sequence exhausted")
)

// ValidationError reports malformed or missing input
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing batch or crate, or a crate outside the requested batch
type NotFoundError struct {
	Resource string
	Key      string
	// Batch is the code of the batch the resource was looked up in, if scoped
	Batch string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// NewCrateNotInBatchError reports a crate that exists but is assigned elsewhere
func NewCrateNotInBatchError(qrCode, batchCode string) *NotFoundError {
	return &NotFoundError{Resource: "crate", Key: qrCode, Batch: batchCode}
}

func (e *NotFoundError) Error() string {
	if e.Batch != "" {
		return fmt.Sprintf("%s %s not found in batch %s", e.Resource, e.Key, e.Batch)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SequenceExhaustedError reports that every short code of a day has been issued
type SequenceExhaustedError struct {
	Prefix string
	Day    string
	Max    int
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("all %d %s codes for %s have been issued", e.Max, e.Prefix, e.Day)
}

func (e *SequenceExhaustedError) Is(target error) bool { return target == ErrSequenceExhausted }

// InvalidStateTransitionError is returned when an operation is not legal from the
// batch's current status. Current is surfaced to callers so they can pick the next action.
type InvalidStateTransitionError struct {
	BatchID string
	Current BatchStatus
	Action  string
	Reason  string
}

func (e *InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s batch %s in status %s", e.Action, e.BatchID, e.Current)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// DuplicateReconciliationError carries the record created by the first successful attempt
type DuplicateReconciliationError struct {
	Record *ReconciliationRecord
}

func (e *DuplicateReconciliationError) Error() string {
	if e.Record == nil {
		return ErrDuplicateReconciliation.Error()
	}
	return fmt.Sprintf("crate %s already reconciled at %s", e.Record.QRCode, e.Record.RecordedAt.Format("2006-01-02T15:04:05Z07:00"))
}

func (e *DuplicateReconciliationError) Is(target error) bool {
	return target == ErrDuplicateReconciliation
}

// ConcurrencyConflictError means another writer changed the resource since it was read
type ConcurrencyConflictError struct {
	Resource string
	ID       string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently, refresh and retry", e.Resource, e.ID)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// CrateAssignedError is returned when a crate already belongs to another batch
type CrateAssignedError struct {
	CrateID string
	BatchID string
}

func (e *CrateAssignedError) Error() string {
	return fmt.Sprintf("crate %s already assigned to batch %s", e.CrateID, e.BatchID)
}

func (e *CrateAssignedError) Is(target error) bool { return target == ErrCrateAlreadyAssigned }

// TransientError wraps network or timeout failures that are safe to retry
type TransientError struct {
	Op  string
	Err error
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }
