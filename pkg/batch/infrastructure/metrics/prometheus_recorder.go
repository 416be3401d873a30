package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder.
// Tenant ids are kept out of labels to bound cardinality.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Lock metrics
	lockAcquireCounter *prometheus.CounterVec
	lockReleaseCounter *prometheus.CounterVec
	leaseExpiredCount  prometheus.Counter

	// Batch metrics
	batchStatusCounter   *prometheus.CounterVec
	batchDurationSeconds *prometheus.HistogramVec
	stepDurationSeconds  *prometheus.HistogramVec
	stepRecordsCount     *prometheus.CounterVec

	// Record metrics
	recordsWrittenCount     *prometheus.CounterVec
	recordsDeactivatedCount *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder on its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		lockAcquireCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_lock_acquire_total",
			Help: "Lock acquire attempts by lock kind and result.",
		}, []string{"lock_kind", "acquired"}),
		lockReleaseCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_lock_release_total",
			Help: "Lock releases by lock kind and result.",
		}, []string{"lock_kind", "released"}),
		leaseExpiredCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetflow_lease_expired_total",
			Help: "Leases removed by the expiry sweep.",
		}),
		batchStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_batch_status_total",
			Help: "Batches by recorded status.",
		}, []string{"status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheetflow_batch_duration_seconds",
			Help:    "Duration of batches from start to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheetflow_step_duration_seconds",
			Help:    "Duration of processing steps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step_name", "status"}),
		stepRecordsCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_step_records_total",
			Help: "Records processed by step.",
		}, []string{"step_name"}),
		recordsWrittenCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_records_written_total",
			Help: "Versioned records written by kind.",
		}, []string{"kind"}),
		recordsDeactivatedCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetflow_records_deactivated_total",
			Help: "Versioned records deactivated by purge scope and table.",
		}, []string{"scope", "table"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheetflow_operation_duration_seconds",
			Help:    "Duration of core operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		r.lockAcquireCounter,
		r.lockReleaseCounter,
		r.leaseExpiredCount,
		r.batchStatusCounter,
		r.batchDurationSeconds,
		r.stepDurationSeconds,
		r.stepRecordsCount,
		r.recordsWrittenCount,
		r.recordsDeactivatedCount,
		r.operationDurationSeconds,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordLockAcquire(ctx context.Context, lockKind string, acquired bool) {
	r.lockAcquireCounter.WithLabelValues(lockKind, strconv.FormatBool(acquired)).Inc()
}

func (r *PrometheusRecorder) RecordLockRelease(ctx context.Context, lockKind string, released bool) {
	r.lockReleaseCounter.WithLabelValues(lockKind, strconv.FormatBool(released)).Inc()
}

func (r *PrometheusRecorder) RecordLeasesExpired(ctx context.Context, count int64) {
	if count > 0 {
		r.leaseExpiredCount.Add(float64(count))
	}
}

func (r *PrometheusRecorder) RecordBatchStart(ctx context.Context, batch *model.Batch) {
	r.batchStatusCounter.WithLabelValues(batch.Status.String()).Inc()
}

func (r *PrometheusRecorder) RecordBatchEnd(ctx context.Context, batch *model.Batch) {
	r.batchStatusCounter.WithLabelValues(batch.Status.String()).Inc()
	if batch.CompletedAt == nil {
		return
	}
	duration := batch.CompletedAt.Sub(batch.StartedAt).Seconds()
	r.batchDurationSeconds.WithLabelValues(batch.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Batch '%s' ended with %s. Duration: %.3fs", batch.ID, batch.Status, duration)
}

func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, step *model.ProcessingStep) {
	r.stepRecordsCount.WithLabelValues(step.StepName).Add(float64(step.RecordsProcessed))
	if step.CompletedAt == nil {
		return
	}
	r.stepDurationSeconds.WithLabelValues(step.StepName, step.Status.String()).Observe(step.CompletedAt.Sub(step.StartedAt).Seconds())
}

func (r *PrometheusRecorder) RecordRecordsWritten(ctx context.Context, kind string, count int) {
	r.recordsWrittenCount.WithLabelValues(kind).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRecordsDeactivated(ctx context.Context, scope string, raw, entities int64) {
	r.recordsDeactivatedCount.WithLabelValues(scope, "raw").Add(float64(raw))
	r.recordsDeactivatedCount.WithLabelValues(scope, "entity").Add(float64(entities))
}

func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
