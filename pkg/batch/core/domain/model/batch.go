package model

import (
	"fmt"
	"time"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchStatusStarted    BatchStatus = "STARTED"
	BatchStatusInProgress BatchStatus = "IN_PROGRESS"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// ParseBatchStatus converts a status name, as given to `status --state`, into a BatchStatus.
func ParseBatchStatus(s string) (BatchStatus, error) {
	switch BatchStatus(s) {
	case BatchStatusStarted, BatchStatusInProgress, BatchStatusCompleted, BatchStatusFailed:
		return BatchStatus(s), nil
	}
	return "", fmt.Errorf("unknown batch status: %q", s)
}

// StepStatus is the lifecycle state of a processing step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
)

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the step is finished.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// InputRef identifies the file a batch was started for.
type InputRef struct {
	Name string
	Size int64
}

// Batch is one processing run for one tenant and one input file.
type Batch struct {
	ID              string
	TenantID        string
	InputIdentifier string
	InputSize       int64
	RecordCount     int64
	Status          BatchStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	LastError       string
	ExternalRunRef  string
	Metadata        Metadata
	UpdatedAt       time.Time
}

// NewBatch builds a STARTED batch.
func NewBatch(id, tenantID string, input InputRef, metadata Metadata, now time.Time) *Batch {
	if metadata == nil {
		metadata = Metadata{}
	}
	return &Batch{
		ID:              id,
		TenantID:        tenantID,
		InputIdentifier: input.Name,
		InputSize:       input.Size,
		Status:          BatchStatusStarted,
		StartedAt:       now,
		ExternalRunRef:  metadata[MetadataExternalRunRef],
		Metadata:        metadata,
		UpdatedAt:       now,
	}
}

// isValidBatchTransition allows only forward moves.
func isValidBatchTransition(current, next BatchStatus) bool {
	switch current {
	case BatchStatusStarted:
		return next == BatchStatusInProgress || next == BatchStatusCompleted || next == BatchStatusFailed
	case BatchStatusInProgress:
		return next == BatchStatusCompleted || next == BatchStatusFailed
	case BatchStatusCompleted, BatchStatusFailed:
		return false
	default:
		return false
	}
}

// TransitionTo moves the batch to newStatus. Callers set the remaining fields.
func (b *Batch) TransitionTo(newStatus BatchStatus) error {
	if !isValidBatchTransition(b.Status, newStatus) {
		return fmt.Errorf("Batch (ID: %s): Invalid state transition: %s -> %s", b.ID, b.Status, newStatus)
	}
	b.Status = newStatus
	return nil
}

// ProcessingStep is one named stage run within a batch.
type ProcessingStep struct {
	// Seq is assigned by the store and orders steps by creation.
	Seq              int64
	ID               string
	BatchID          string
	StepName         string
	Status           StepStatus
	StartedAt        time.Time
	CompletedAt      *time.Time
	RecordsProcessed int64
	ErrorMessage     string
	ExternalJobRef   string
}

// NewProcessingStep builds a RUNNING step.
func NewProcessingStep(batchID, stepName string, now time.Time) *ProcessingStep {
	return &ProcessingStep{
		ID:        NewID(),
		BatchID:   batchID,
		StepName:  stepName,
		Status:    StepStatusRunning,
		StartedAt: now,
	}
}

// BatchSummary is recomputed from the step rows on every call.
type BatchSummary struct {
	BatchID        string
	Status         BatchStatus
	TotalSteps     int
	CompletedSteps int
	FailedSteps    int
	TotalRecords   int64
}
