package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// NewOTLPTracerProvider builds a batching TracerProvider exporting over grpc or http.
func NewOTLPTracerProvider(ctx context.Context, exporter, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch exporter {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP trace exporter: %s", exporter)
	}
	if err != nil {
		return nil, err
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
}

// StartRunSpan starts a span for a PipelineRun.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func()) {
	attrs := []attribute.KeyValue{
		attribute.String("fraudflow.pipeline", run.PipelineName),
		attribute.String("fraudflow.run_id", run.ID),
	}
	if run.ParentID != "" {
		attrs = append(attrs, attribute.String("fraudflow.parent_run_id", run.ParentID))
	}
	ctx, span := t.tracer.Start(ctx, "run "+run.PipelineName, trace.WithAttributes(attrs...))
	return ctx, func() {
		span.SetAttributes(attribute.String("fraudflow.status", run.Status.String()))
		if run.Status == model.StatusFailed {
			desc := "run failed"
			if run.Error != nil {
				desc = run.Error.Error + ": " + run.Error.Cause
			}
			span.SetStatus(codes.Error, desc)
		}
		span.End()
	}
}

// StartStepSpan starts a span for a state.
func (t *OpenTelemetryTracer) StartStepSpan(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "state "+step.StateName, trace.WithAttributes(
		attribute.String("fraudflow.run_id", run.ID),
		attribute.String("fraudflow.state", step.StateName),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("fraudflow.status", step.Status.String()),
			attribute.Int("fraudflow.attempts", step.Attempts),
		)
		if step.Status == model.StatusFailed {
			span.SetStatus(codes.Error, step.Error)
		}
		span.End()
	}
}

// RecordError records an error on the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		logger.Debugf("Tracer: error in module %s outside a recording span: %v", module, err)
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("fraudflow.module", module)))
}

// RecordEvent records an event on the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
