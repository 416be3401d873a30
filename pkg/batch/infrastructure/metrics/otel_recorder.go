package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
)

// OTelMetricRecorder records the same measurements as PrometheusRecorder
// through an OpenTelemetry meter.
type OTelMetricRecorder struct {
	lockAcquire        metric.Int64Counter
	lockRelease        metric.Int64Counter
	leaseExpired       metric.Int64Counter
	batchStatus        metric.Int64Counter
	batchDuration      metric.Float64Histogram
	stepDuration       metric.Float64Histogram
	recordsWritten     metric.Int64Counter
	recordsDeactivated metric.Int64Counter
	operationDuration  metric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on provider's meter.
func NewOTelMetricRecorder(provider metric.MeterProvider) (*OTelMetricRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelMetricRecorder{}

	var err error
	if r.lockAcquire, err = meter.Int64Counter("sheetflow.lock.acquire", metric.WithDescription("Lock acquire attempts.")); err != nil {
		return nil, fmt.Errorf("failed to create lock acquire counter: %w", err)
	}
	if r.lockRelease, err = meter.Int64Counter("sheetflow.lock.release", metric.WithDescription("Lock releases.")); err != nil {
		return nil, fmt.Errorf("failed to create lock release counter: %w", err)
	}
	if r.leaseExpired, err = meter.Int64Counter("sheetflow.lease.expired", metric.WithDescription("Leases removed by the expiry sweep.")); err != nil {
		return nil, fmt.Errorf("failed to create lease expired counter: %w", err)
	}
	if r.batchStatus, err = meter.Int64Counter("sheetflow.batch.status", metric.WithDescription("Batches by recorded status.")); err != nil {
		return nil, fmt.Errorf("failed to create batch status counter: %w", err)
	}
	if r.batchDuration, err = meter.Float64Histogram("sheetflow.batch.duration", metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create batch duration histogram: %w", err)
	}
	if r.stepDuration, err = meter.Float64Histogram("sheetflow.step.duration", metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create step duration histogram: %w", err)
	}
	if r.recordsWritten, err = meter.Int64Counter("sheetflow.records.written"); err != nil {
		return nil, fmt.Errorf("failed to create records written counter: %w", err)
	}
	if r.recordsDeactivated, err = meter.Int64Counter("sheetflow.records.deactivated"); err != nil {
		return nil, fmt.Errorf("failed to create records deactivated counter: %w", err)
	}
	if r.operationDuration, err = meter.Float64Histogram("sheetflow.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}
	return r, nil
}

func (r *OTelMetricRecorder) RecordLockAcquire(ctx context.Context, lockKind string, acquired bool) {
	r.lockAcquire.Add(ctx, 1, metric.WithAttributes(attribute.String("lock_kind", lockKind), attribute.Bool("acquired", acquired)))
}

func (r *OTelMetricRecorder) RecordLockRelease(ctx context.Context, lockKind string, released bool) {
	r.lockRelease.Add(ctx, 1, metric.WithAttributes(attribute.String("lock_kind", lockKind), attribute.Bool("released", released)))
}

func (r *OTelMetricRecorder) RecordLeasesExpired(ctx context.Context, count int64) {
	if count > 0 {
		r.leaseExpired.Add(ctx, count)
	}
}

func (r *OTelMetricRecorder) RecordBatchStart(ctx context.Context, batch *model.Batch) {
	r.batchStatus.Add(ctx, 1, metric.WithAttributes(attribute.String("status", batch.Status.String())))
}

func (r *OTelMetricRecorder) RecordBatchEnd(ctx context.Context, batch *model.Batch) {
	status := metric.WithAttributes(attribute.String("status", batch.Status.String()))
	r.batchStatus.Add(ctx, 1, status)
	if batch.CompletedAt != nil {
		r.batchDuration.Record(ctx, batch.CompletedAt.Sub(batch.StartedAt).Seconds(), status)
	}
}

func (r *OTelMetricRecorder) RecordStepEnd(ctx context.Context, step *model.ProcessingStep) {
	if step.CompletedAt == nil {
		return
	}
	r.stepDuration.Record(ctx, step.CompletedAt.Sub(step.StartedAt).Seconds(), metric.WithAttributes(
		attribute.String("step_name", step.StepName),
		attribute.String("status", step.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordRecordsWritten(ctx context.Context, kind string, count int) {
	r.recordsWritten.Add(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}

func (r *OTelMetricRecorder) RecordRecordsDeactivated(ctx context.Context, scope string, raw, entities int64) {
	r.recordsDeactivated.Add(ctx, raw, metric.WithAttributes(attribute.String("scope", scope), attribute.String("table", "raw")))
	r.recordsDeactivated.Add(ctx, entities, metric.WithAttributes(attribute.String("scope", scope), attribute.String("table", "entity")))
}

func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)
