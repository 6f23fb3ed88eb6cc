package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun)   {}
func (r *NoOpMetricRecorder) RecordStepStart(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
}
func (r *NoOpMetricRecorder) RecordStepEnd(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
}
func (r *NoOpMetricRecorder) RecordRetry(ctx context.Context, stateName string, reason string) {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStepSpan(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
