package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func finishedRun(status model.RunStatus) *model.PipelineRun {
	run := model.NewPipelineRun("fraud-detection", nil)
	run.MarkAsStarted()
	if status == model.StatusFailed {
		run.MarkAsFailed(model.NewErrorRecord("TrainModel", exception.ErrStepTimeout, true))
	} else {
		run.MarkAsCompleted()
	}
	return run
}

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder(NewPrometheusRegistry())
	ctx := context.Background()
	run := finishedRun(model.StatusCompleted)
	step := model.NewStepRecord(run, "DataIngest")
	step.MarkAsCompleted()

	r.RecordRunEnd(ctx, run)
	r.RecordStepEnd(ctx, run, step)
	r.RecordRetry(ctx, "DataIngest", exception.ThrottlingException)
	r.RecordRetry(ctx, "DataIngest", exception.ThrottlingException)
	r.RecordDuration(ctx, "getStats", 15*time.Millisecond, map[string]string{"status": "success", "ignored": "x"})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("fraud-detection", "COMPLETED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepRetryCounter.WithLabelValues("DataIngest", exception.ThrottlingException)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stepDurationSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(r.operationDurationSeconds))
	assert.NotNil(t, r.Handler())
}

func TestOTelMetricRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelMetricRecorder(provider)
	require.NoError(t, err)

	ctx := context.Background()
	run := finishedRun(model.StatusFailed)
	r.RecordRunStart(ctx, run)
	r.RecordRunEnd(ctx, run)
	r.RecordRetry(ctx, "TrainModel", exception.ServiceUnavailable)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["fraudflow.run.count"])
	assert.True(t, names["fraudflow.run.duration"])
	assert.True(t, names["fraudflow.state.retries"])
}

func TestOpenTelemetryTracer(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(provider)

	run := model.NewPipelineRun("fraud-detection", nil)
	run.MarkAsStarted()
	ctx, endRun := tracer.StartRunSpan(context.Background(), run)

	step := model.NewStepRecord(run, "TrainModel")
	stepCtx, endStep := tracer.StartStepSpan(ctx, run, step)
	tracer.RecordEvent(stepCtx, "state.finished", map[string]interface{}{"attempts": 2, "state": "TrainModel"})
	tracer.RecordError(stepCtx, "TrainModel", exception.ErrStepTimeout)
	step.MarkAsFailed(exception.ErrStepTimeout)
	endStep()

	run.MarkAsFailed(model.NewErrorRecord("TrainModel", exception.ErrStepTimeout, true))
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "state TrainModel", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 2)
	assert.Equal(t, "state.finished", spans[0].Events()[0].Name)
	assert.Equal(t, "run fraud-detection", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}
