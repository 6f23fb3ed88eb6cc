package tracing

import (
	"context"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
)

// TracingStepListener adds a span event for every finished state so retries and errors
// show up on the run span.
type TracingStepListener struct {
	tracer metrics.Tracer
}

func NewTracingStepListener(tracer metrics.Tracer) flow.StepListener {
	return &TracingStepListener{tracer: tracer}
}

func (l *TracingStepListener) BeforeStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
}

func (l *TracingStepListener) AfterStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
	attrs := map[string]interface{}{
		"state":    record.StateName,
		"status":   string(record.Status),
		"attempts": record.Attempts,
	}
	if record.Error != "" {
		attrs["error"] = record.Error
	}
	l.tracer.RecordEvent(ctx, "state.finished", attrs)
}

var _ flow.StepListener = (*TracingStepListener)(nil)
