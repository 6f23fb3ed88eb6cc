package logging

import (
	"context"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// --- Run Listener ---

type LoggingRunListener struct{}

func NewLoggingRunListener() flow.RunListener {
	return &LoggingRunListener{}
}

func (l *LoggingRunListener) BeforeRun(ctx context.Context, run *model.PipelineRun) {
	logger.Infof("RunListener: BeforeRun - Pipeline: %s, ID: %s, Keys: %v", run.PipelineName, run.ID, run.Context.Keys())
}

func (l *LoggingRunListener) AfterRun(ctx context.Context, run *model.PipelineRun) {
	if run.Error != nil {
		logger.Infof("RunListener: AfterRun - Pipeline: %s, Status: %s, ExitStatus: %s, Error: %s in %s (caught: %t)",
			run.PipelineName, run.Status, run.ExitStatus, run.Error.Error, run.Error.State, run.Error.Caught)
		return
	}
	logger.Infof("RunListener: AfterRun - Pipeline: %s, Status: %s, ExitStatus: %s, Duration: %s", run.PipelineName, run.Status, run.ExitStatus, run.Duration())
}

var _ flow.RunListener = (*LoggingRunListener)(nil)

// --- Step Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() flow.StepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
	logger.Infof("StepListener: BeforeStep - State: %s, Run: %s", record.StateName, run.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) {
	logger.Infof("StepListener: AfterStep - State: %s, Status: %s, ExitStatus: %s, Attempts: %d", record.StateName, record.Status, record.ExitStatus, record.Attempts)
}

var _ flow.StepListener = (*LoggingStepListener)(nil)
