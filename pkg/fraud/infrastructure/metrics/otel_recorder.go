package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
)

const instrumentationName = "github.com/tigerroll/fraudflow"

// OTelMetricRecorder records run and state metrics through an OpenTelemetry meter.
type OTelMetricRecorder struct {
	runs       otelmetric.Int64Counter
	runSeconds otelmetric.Float64Histogram
	steps      otelmetric.Int64Counter
	stepSecs   otelmetric.Float64Histogram
	retries    otelmetric.Int64Counter
	operations otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on provider.
func NewOTelMetricRecorder(provider otelmetric.MeterProvider) (*OTelMetricRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelMetricRecorder{}
	var err error
	if r.runs, err = meter.Int64Counter("fraudflow.run.count", otelmetric.WithDescription("Pipeline runs by status.")); err != nil {
		return nil, err
	}
	if r.runSeconds, err = meter.Float64Histogram("fraudflow.run.duration", otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.steps, err = meter.Int64Counter("fraudflow.state.count", otelmetric.WithDescription("Executed states by status.")); err != nil {
		return nil, err
	}
	if r.stepSecs, err = meter.Float64Histogram("fraudflow.state.duration", otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("fraudflow.state.retries"); err != nil {
		return nil, err
	}
	if r.operations, err = meter.Float64Histogram("fraudflow.operation.duration", otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

// NewOTLPMeterProvider builds a MeterProvider that pushes to an OTLP collector over grpc or http.
func NewOTLPMeterProvider(ctx context.Context, exporter, endpoint string) (*sdkmetric.MeterProvider, error) {
	var exp sdkmetric.Exporter
	var err error
	switch exporter {
	case "", "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		exp, err = otlpmetricgrpc.New(ctx, opts...)
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		exp, err = otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP metric exporter: %s", exporter)
	}
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil
}

func (r *OTelMetricRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {
	r.runs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("pipeline", run.PipelineName),
		attribute.String("status", run.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun) {
	attrs := otelmetric.WithAttributes(
		attribute.String("pipeline", run.PipelineName),
		attribute.String("status", run.Status.String()),
	)
	r.runs.Add(ctx, 1, attrs)
	if run.EndTime != nil {
		r.runSeconds.Record(ctx, run.EndTime.Sub(run.StartTime).Seconds(), attrs)
	}
}

func (r *OTelMetricRecorder) RecordStepStart(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
	r.steps.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("pipeline", run.PipelineName),
		attribute.String("state", step.StateName),
		attribute.String("status", step.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordStepEnd(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
	attrs := otelmetric.WithAttributes(
		attribute.String("pipeline", run.PipelineName),
		attribute.String("state", step.StateName),
		attribute.String("status", step.Status.String()),
	)
	r.steps.Add(ctx, 1, attrs)
	if step.EndTime != nil {
		r.stepSecs.Record(ctx, step.EndTime.Sub(step.StartTime).Seconds(), attrs)
	}
}

func (r *OTelMetricRecorder) RecordRetry(ctx context.Context, stateName string, reason string) {
	r.retries.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("state", stateName),
		attribute.String("reason", reason),
	))
}

func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := []attribute.KeyValue{attribute.String("name", name)}
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operations.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)
