package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is used when metrics are disabled and in tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordLockAcquire(ctx context.Context, lockKind string, acquired bool)  {}
func (r *NoOpMetricRecorder) RecordLockRelease(ctx context.Context, lockKind string, released bool)  {}
func (r *NoOpMetricRecorder) RecordLeasesExpired(ctx context.Context, count int64)                   {}
func (r *NoOpMetricRecorder) RecordBatchStart(ctx context.Context, batch *model.Batch)               {}
func (r *NoOpMetricRecorder) RecordBatchEnd(ctx context.Context, batch *model.Batch)                 {}
func (r *NoOpMetricRecorder) RecordStepEnd(ctx context.Context, step *model.ProcessingStep)          {}
func (r *NoOpMetricRecorder) RecordRecordsWritten(ctx context.Context, kind string, count int)       {}
func (r *NoOpMetricRecorder) RecordRecordsDeactivated(ctx context.Context, scope string, raw, entities int64) {
}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartSpan(ctx context.Context, operation string, attributes map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
