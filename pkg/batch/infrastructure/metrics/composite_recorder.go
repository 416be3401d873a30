package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
)

// CompositeRecorder forwards every measurement to each of its recorders.
type CompositeRecorder struct {
	recorders []metrics.MetricRecorder
}

// NewCompositeRecorder creates a CompositeRecorder. Nil recorders are skipped.
func NewCompositeRecorder(recorders ...metrics.MetricRecorder) *CompositeRecorder {
	c := &CompositeRecorder{}
	for _, r := range recorders {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
	return c
}

func (c *CompositeRecorder) RecordLockAcquire(ctx context.Context, lockKind string, acquired bool) {
	for _, r := range c.recorders {
		r.RecordLockAcquire(ctx, lockKind, acquired)
	}
}

func (c *CompositeRecorder) RecordLockRelease(ctx context.Context, lockKind string, released bool) {
	for _, r := range c.recorders {
		r.RecordLockRelease(ctx, lockKind, released)
	}
}

func (c *CompositeRecorder) RecordLeasesExpired(ctx context.Context, count int64) {
	for _, r := range c.recorders {
		r.RecordLeasesExpired(ctx, count)
	}
}

func (c *CompositeRecorder) RecordBatchStart(ctx context.Context, batch *model.Batch) {
	for _, r := range c.recorders {
		r.RecordBatchStart(ctx, batch)
	}
}

func (c *CompositeRecorder) RecordBatchEnd(ctx context.Context, batch *model.Batch) {
	for _, r := range c.recorders {
		r.RecordBatchEnd(ctx, batch)
	}
}

func (c *CompositeRecorder) RecordStepEnd(ctx context.Context, step *model.ProcessingStep) {
	for _, r := range c.recorders {
		r.RecordStepEnd(ctx, step)
	}
}

func (c *CompositeRecorder) RecordRecordsWritten(ctx context.Context, kind string, count int) {
	for _, r := range c.recorders {
		r.RecordRecordsWritten(ctx, kind, count)
	}
}

func (c *CompositeRecorder) RecordRecordsDeactivated(ctx context.Context, scope string, raw, entities int64) {
	for _, r := range c.recorders {
		r.RecordRecordsDeactivated(ctx, scope, raw, entities)
	}
}

func (c *CompositeRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range c.recorders {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ metrics.MetricRecorder = (*CompositeRecorder)(nil)
