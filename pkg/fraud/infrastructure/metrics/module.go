package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// NewMetricRecorder selects the recorder named by infrastructure.metrics.type.
// The Prometheus recorder shares registry with the /metrics handler.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.InfrastructureConfig, registry *prometheus.Registry) (metrics.MetricRecorder, error) {
	switch cfg.Metrics.Type {
	case "prometheus":
		logger.Infof("Metrics: using Prometheus recorder.")
		return NewPrometheusRecorder(registry), nil
	case "otel":
		provider, err := NewOTLPMeterProvider(context.Background(), cfg.Metrics.Exporter, cfg.Metrics.Endpoint)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
		logger.Infof("Metrics: using OpenTelemetry recorder (%s exporter).", cfg.Metrics.Exporter)
		return NewOTelMetricRecorder(provider)
	default:
		return metrics.NewNoOpMetricRecorder(), nil
	}
}

// NewTracer returns an OTLP-exporting tracer when tracing is enabled, otherwise a no-op.
func NewTracer(lc fx.Lifecycle, cfg *config.InfrastructureConfig) (metrics.Tracer, error) {
	if !cfg.Tracing.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	provider, err := NewOTLPTracerProvider(context.Background(), cfg.Tracing.Exporter, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: provider.Shutdown})
	logger.Infof("Tracing: exporting spans over %s.", cfg.Tracing.Exporter)
	return NewOpenTelemetryTracer(provider), nil
}

// Module provides the MetricRecorder, the Tracer and the Prometheus registry.
var Module = fx.Options(
	fx.Provide(NewPrometheusRegistry),
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
