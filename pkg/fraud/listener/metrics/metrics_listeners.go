package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
)

// MetricsStepListener records per-state durations and the number of extra attempts a state needed.
type MetricsStepListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsStepListener(recorder metrics.MetricRecorder) flow.StepListener {
	return &MetricsStepListener{recorder: recorder}
}

func (l *MetricsStepListener) BeforeStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
}

func (l *MetricsStepListener) AfterStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
	end := time.Now()
	if record.EndTime != nil {
		end = *record.EndTime
	}
	l.recorder.RecordDuration(ctx, "state_duration", end.Sub(record.StartTime), map[string]string{
		"pipeline": run.PipelineName,
		"state":    record.StateName,
		"status":   string(record.Status),
	})
}

var _ flow.StepListener = (*MetricsStepListener)(nil)
