// Package repository declares the persistence ports of the sheetflow core
// and the sentinel errors callers match with errors.Is.
package repository

import (
	"context"
	"errors"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
)

var (
	// ErrDuplicateBatch is returned when a batch id is already used by any tenant.
	ErrDuplicateBatch = errors.New("duplicate batch")
	// ErrInvalidTransition is returned when a batch status change would move backward
	// or re-open a terminal batch.
	ErrInvalidTransition = errors.New("invalid batch status transition")
	// ErrBatchNotFound is returned when a batch id is unknown.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrStepNotFound is returned when a step id is unknown.
	ErrStepNotFound = errors.New("processing step not found")
	// ErrInvalidFilter is returned when a record query filters on an unknown column.
	ErrInvalidFilter = errors.New("invalid record filter")
)

func init() {
	exception.RegisterErrorType("ErrDuplicateBatch", ErrDuplicateBatch)
	exception.RegisterErrorType("ErrInvalidTransition", ErrInvalidTransition)
	exception.RegisterErrorType("ErrBatchNotFound", ErrBatchNotFound)
	exception.RegisterErrorType("ErrStepNotFound", ErrStepNotFound)
	exception.RegisterErrorType("ErrInvalidFilter", ErrInvalidFilter)
}

// LeaseRepository persists live tenant leases.
type LeaseRepository interface {
	// InsertLease atomically inserts lease unless a lease for the same
	// (tenant, kind) exists. It returns false, nil on contention.
	InsertLease(ctx context.Context, lease *model.Lease) (bool, error)

	// DeleteLease removes the lease matching tenant, batch and kind and
	// records it as RELEASED. It returns false, nil when nothing matched.
	DeleteLease(ctx context.Context, tenantID, batchID, lockKind string, now time.Time) (bool, error)

	// DeleteExpiredLeases removes every lease with expires_at <= now and
	// records each as EXPIRED. It returns the number removed.
	DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error)

	// FindLease returns the live lease for (tenant, kind), or nil.
	FindLease(ctx context.Context, tenantID, lockKind string) (*model.Lease, error)
}

// LedgerRepository persists batches and their steps.
type LedgerRepository interface {
	// InsertBatch stores a new batch, or returns ErrDuplicateBatch.
	InsertBatch(ctx context.Context, batch *model.Batch) error
	// FindBatchByID returns the batch, or ErrBatchNotFound.
	FindBatchByID(ctx context.Context, batchID string) (*model.Batch, error)
	// FindBatchesByTenant returns the tenant's batches, newest first. limit <= 0 means all.
	FindBatchesByTenant(ctx context.Context, tenantID string, limit int) ([]*model.Batch, error)
	// UpdateBatchIf writes batch's status, completion and error fields only while
	// the stored status is one of from. It reports whether a row changed.
	UpdateBatchIf(ctx context.Context, batch *model.Batch, from ...model.BatchStatus) (bool, error)

	// InsertStep stores a new step and assigns its Seq.
	InsertStep(ctx context.Context, step *model.ProcessingStep) error
	// FindStepByID returns the step, or ErrStepNotFound.
	FindStepByID(ctx context.Context, stepID string) (*model.ProcessingStep, error)
	// FindStepsByBatchID returns the batch's steps in creation order.
	FindStepsByBatchID(ctx context.Context, batchID string) ([]*model.ProcessingStep, error)
	// UpdateStepIf writes step's terminal fields only while the stored status is one of from.
	UpdateStepIf(ctx context.Context, step *model.ProcessingStep, from ...model.StepStatus) (bool, error)
}

// RecordRepository persists versioned raw cells and entities. Rows are only
// ever inserted or deactivated.
type RecordRepository interface {
	InsertRawCells(ctx context.Context, cells []*model.RawCell) error
	InsertEntities(ctx context.Context, entities []*model.Entity) error

	// FindActiveRawCells returns the tenant's active cells matching filter, in insertion order.
	FindActiveRawCells(ctx context.Context, tenantID string, filter map[string]interface{}) ([]*model.RawCell, error)
	// FindActiveEntities returns the tenant's active entities of entityType matching filter, in insertion order.
	FindActiveEntities(ctx context.Context, tenantID, entityType string, filter map[string]interface{}) ([]*model.Entity, error)

	// FindRawCellsByBatch returns every cell of the batch, active or not.
	FindRawCellsByBatch(ctx context.Context, batchID string) ([]*model.RawCell, error)
	// FindEntitiesByBatch returns every entity of the batch, active or not.
	FindEntitiesByBatch(ctx context.Context, batchID string) ([]*model.Entity, error)
	// CountRawCellsByBatch counts the batch's cells, active or not.
	CountRawCellsByBatch(ctx context.Context, batchID string) (int64, error)

	// DeactivateRawCells flips active to false on active cells matching scope
	// (tenant_id or batch_id) and returns the number of rows changed.
	DeactivateRawCells(ctx context.Context, scope map[string]interface{}) (int64, error)
	// DeactivateEntities is DeactivateRawCells for entities.
	DeactivateEntities(ctx context.Context, scope map[string]interface{}) (int64, error)
}
