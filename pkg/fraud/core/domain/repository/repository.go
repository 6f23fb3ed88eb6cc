// Package repository defines persistence ports for pipeline runs.
package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// ErrRunNotFound is returned when a PipelineRun does not exist.
var ErrRunNotFound = errors.New("pipeline run not found")

// ErrStepRecordNotFound is returned when a StepRecord does not exist.
var ErrStepRecordNotFound = errors.New("step record not found")

func init() {
	exception.RegisterErrorType("ErrRunNotFound", ErrRunNotFound)
	exception.RegisterErrorType("ErrStepRecordNotFound", ErrStepRecordNotFound)
}

// RunRepository persists pipeline runs and their step history.
// Updates use optimistic locking on Version: an update against a stale
// version fails with exception.ErrOptimisticLockingFailure and the
// caller's Version is incremented on success.
type RunRepository interface {
	// SaveRun persists a new run.
	SaveRun(ctx context.Context, run *model.PipelineRun) error
	// UpdateRun persists the current state, context and error record of a run.
	UpdateRun(ctx context.Context, run *model.PipelineRun) error
	// FindRunByID loads a run with its step records ordered by start time.
	FindRunByID(ctx context.Context, id string) (*model.PipelineRun, error)
	// FindRunsByPipeline returns the most recent runs of a pipeline, newest first.
	FindRunsByPipeline(ctx context.Context, pipelineName string, limit int) ([]*model.PipelineRun, error)

	// SaveStepRecord persists a new step record.
	SaveStepRecord(ctx context.Context, step *model.StepRecord) error
	// UpdateStepRecord persists the outcome of a step.
	UpdateStepRecord(ctx context.Context, step *model.StepRecord) error

	// Close releases resources held by the repository.
	Close() error
}
