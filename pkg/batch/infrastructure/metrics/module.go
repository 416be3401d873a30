package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// RecorderParams defines the dependencies of DecorateRecorder.
type RecorderParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Cfg        *config.Config
	Base       metrics.MetricRecorder
	Prometheus *PrometheusRecorder
}

// DecorateRecorder replaces the no-op recorder with Prometheus, plus OTLP
// metrics when an endpoint is configured.
func DecorateRecorder(p RecorderParams) (metrics.MetricRecorder, error) {
	if !p.Cfg.Sheetflow.Metrics.Enabled {
		return p.Base, nil
	}

	recorders := []metrics.MetricRecorder{p.Prometheus}

	meterProvider, err := NewMeterProvider(context.Background(), p.Cfg.Sheetflow.Metrics.OTLP)
	if err != nil {
		return nil, err
	}
	if meterProvider != nil {
		otelRecorder, err := NewOTelMetricRecorder(meterProvider)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, otelRecorder)
		p.Lifecycle.Append(fx.Hook{OnStop: meterProvider.Shutdown})
		logger.Infof("Metrics: exporting OTLP metrics to %s", p.Cfg.Sheetflow.Metrics.OTLP.Endpoint)
	}
	return NewCompositeRecorder(recorders...), nil
}

// DecorateTracer replaces the no-op tracer with an OpenTelemetry tracer.
func DecorateTracer(lc fx.Lifecycle, cfg *config.Config, base metrics.Tracer) (metrics.Tracer, error) {
	if !cfg.Sheetflow.Metrics.Enabled {
		return base, nil
	}
	provider, err := NewTracerProvider(context.Background(), cfg.Sheetflow.Metrics.OTLP)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: provider.Shutdown})
	return NewOpenTelemetryTracer(provider), nil
}

// RegisterMetricsServer serves /metrics while the application runs.
func RegisterMetricsServer(lc fx.Lifecycle, cfg *config.Config, recorder *PrometheusRecorder) {
	addr := cfg.Sheetflow.Metrics.ListenAddress
	if !cfg.Sheetflow.Metrics.Enabled || addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("Metrics: serving /metrics on %s", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics: server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// Module wires Prometheus and OpenTelemetry over the no-op defaults of the
// core metrics module.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Decorate(DecorateRecorder),
	fx.Decorate(DecorateTracer),
	fx.Invoke(RegisterMetricsServer),
)
