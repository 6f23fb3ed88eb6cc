// Package metrics defines the observability ports used by the flow runner.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// MetricRecorder records run- and step-level metrics.
// Implementations exist for Prometheus and OpenTelemetry.
type MetricRecorder interface {
	// RecordRunStart records the start of a PipelineRun.
	RecordRunStart(ctx context.Context, run *model.PipelineRun)
	// RecordRunEnd records the end of a PipelineRun.
	RecordRunEnd(ctx context.Context, run *model.PipelineRun)
	// RecordStepStart records the start of a state.
	RecordStepStart(ctx context.Context, run *model.PipelineRun, step *model.StepRecord)
	// RecordStepEnd records the end of a state.
	RecordStepEnd(ctx context.Context, run *model.PipelineRun, step *model.StepRecord)
	// RecordRetry records one retry of a state; reason is the matched error name.
	RecordRetry(ctx context.Context, stateName string, reason string)
	// RecordDuration records the duration of an arbitrary operation.
	//   Example tags: {"query": "getStats", "status": "success"}
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// Tracer is an abstract interface for distributed tracing.
type Tracer interface {
	// StartRunSpan starts a span for a run and returns a function that ends it.
	StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func())
	// StartStepSpan starts a span for a state within a run.
	StartStepSpan(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) (context.Context, func())
	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent records an event on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
