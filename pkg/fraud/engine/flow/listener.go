package flow

import (
	"context"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// RunListener is notified around a whole run.
type RunListener interface {
	BeforeRun(ctx context.Context, run *model.PipelineRun)
	AfterRun(ctx context.Context, run *model.PipelineRun)
}

// StepListener is notified around each executed state.
type StepListener interface {
	BeforeStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord)
	AfterStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord)
}
