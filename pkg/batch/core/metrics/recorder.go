package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// MetricRecorder records what the core services do. Implementations must be
// safe for concurrent use and must never fail the calling operation.
type MetricRecorder interface {
	// RecordLockAcquire records one acquire attempt and whether it won the lease.
	RecordLockAcquire(ctx context.Context, lockKind string, acquired bool)
	// RecordLockRelease records one release and whether a lease was removed.
	RecordLockRelease(ctx context.Context, lockKind string, released bool)
	// RecordLeasesExpired records leases removed by a sweep.
	RecordLeasesExpired(ctx context.Context, count int64)

	// RecordBatchStart records a created batch.
	RecordBatchStart(ctx context.Context, batch *model.Batch)
	// RecordBatchEnd records a batch that reached a terminal status.
	RecordBatchEnd(ctx context.Context, batch *model.Batch)
	// RecordStepEnd records a step that reached a terminal status.
	RecordStepEnd(ctx context.Context, step *model.ProcessingStep)

	// RecordRecordsWritten records rows written; kind is "raw" or an entity type.
	RecordRecordsWritten(ctx context.Context, kind string, count int)
	// RecordRecordsDeactivated records rows flipped to inactive by a purge.
	// scope is "tenant" or "batch".
	RecordRecordsDeactivated(ctx context.Context, scope string, raw, entities int64)

	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
