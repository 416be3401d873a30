package usecase

import (
	"context"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// LockManager hands out per-tenant leases. Contention and releasing a lease
// that is not held are reported as false, never as errors; only store
// failures are returned as errors.
type LockManager interface {
	// Acquire sweeps expired leases, then tries to take the lease for
	// (tenantID, lockKind) on behalf of batchID for ttl.
	// An empty lockKind means "processing"; a non-positive ttl means the configured default.
	Acquire(ctx context.Context, tenantID, batchID, lockKind string, ttl time.Duration) (bool, error)

	// Release removes the lease held by batchID. It returns false when no such lease exists.
	Release(ctx context.Context, tenantID, batchID, lockKind string) (bool, error)

	// Sweep removes every expired lease and returns how many were removed.
	Sweep(ctx context.Context) (int64, error)

	// Inspect returns the live lease for (tenantID, lockKind), or nil when
	// there is none or it has expired.
	Inspect(ctx context.Context, tenantID, lockKind string) (*model.Lease, error)
}

// BatchLedger is the audit trail of batches and their steps.
type BatchLedger interface {
	// CreateBatch records a STARTED batch. An empty batchID is replaced by a new id.
	// It fails with repository.ErrDuplicateBatch when the id is taken by any tenant.
	CreateBatch(ctx context.Context, batchID, tenantID string, input model.InputRef, metadata model.Metadata) (*model.Batch, error)

	// RecordStep appends a RUNNING step. Step names may repeat.
	RecordStep(ctx context.Context, batchID, stepName string, opts ...StepOption) (*model.ProcessingStep, error)

	// CompleteStep marks the step COMPLETED, or FAILED when stepErr is set.
	// Completing a terminal step is a no-op.
	CompleteStep(ctx context.Context, stepID string, recordsProcessed int64, stepErr error) error

	// CompleteBatch moves the batch to a terminal status. Repeating the same
	// status is a no-op; any other change fails with repository.ErrInvalidTransition.
	CompleteBatch(ctx context.Context, batchID string, status model.BatchStatus, batchErr error) error

	// Summarize aggregates the batch's steps.
	Summarize(ctx context.Context, batchID string) (*model.BatchSummary, error)

	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListSteps(ctx context.Context, batchID string) ([]*model.ProcessingStep, error)
	ListBatches(ctx context.Context, tenantID string, limit int) ([]*model.Batch, error)
}

// RecordStore appends versioned records and reads the active view.
type RecordStore interface {
	WriteRaw(ctx context.Context, cell *model.RawCell) error
	WriteRawBatch(ctx context.Context, cells []*model.RawCell) error
	WriteEntity(ctx context.Context, entity *model.Entity) error
	WriteEntities(ctx context.Context, entities []*model.Entity) error

	// QueryActive returns the tenant's active records of kind in insertion order.
	// kind is model.RecordKindRaw or an entity type.
	QueryActive(ctx context.Context, tenantID, kind string, filter map[string]interface{}) ([]model.Record, error)

	// QueryByBatch returns every record of the batch, raw cells first, active or not.
	QueryByBatch(ctx context.Context, batchID string) ([]model.Record, error)

	// ResolveEntity returns the newest active entity with businessKey, or nil.
	ResolveEntity(ctx context.Context, tenantID, entityType, businessKey string) (*model.Entity, error)
}

// PurgeService deactivates records without deleting them.
type PurgeService interface {
	// PurgeTenant deactivates every active record of the tenant and returns
	// the number of raw cells deactivated.
	PurgeTenant(ctx context.Context, tenantID string) (int64, error)

	// PurgeBatch deactivates the active records written by one batch.
	PurgeBatch(ctx context.Context, batchID string) (int64, error)
}
