// Package sql persists pipeline runs through GORM, so a run's history survives restarts
// and can be inspected with the "runs" command.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// SQLRunRepository implements repository.RunRepository.
type SQLRunRepository struct {
	db *gorm.DB
}

// NewSQLRunRepository creates a repository over an already migrated db.
func NewSQLRunRepository(db *gorm.DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

func (r *SQLRunRepository) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	const op = "SQLRunRepository.SaveRun"
	if err := r.db.WithContext(ctx).Create(fromDomainRun(run)).Error; err != nil {
		return exception.NewFlowError(op, fmt.Sprintf("failed to save PipelineRun (ID: %s)", run.ID), err, true)
	}
	return nil
}

func (r *SQLRunRepository) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	const op = "SQLRunRepository.UpdateRun"

	originalVersion := run.Version
	run.Version++
	run.LastUpdated = time.Now()
	entity := fromDomainRun(run)

	result := r.db.WithContext(ctx).
		Model(&PipelineRunEntity{}).
		Where("id = ? AND version = ?", run.ID, originalVersion).
		Select("*").Omit("id").
		Updates(entity)
	if result.Error != nil {
		run.Version = originalVersion
		return exception.NewFlowError(op, fmt.Sprintf("failed to update PipelineRun (ID: %s)", run.ID), result.Error, true)
	}
	if result.RowsAffected == 0 {
		run.Version = originalVersion
		return r.missingOrStale(ctx, &PipelineRunEntity{}, run.ID, originalVersion, repository.ErrRunNotFound)
	}
	return nil
}

func (r *SQLRunRepository) FindRunByID(ctx context.Context, id string) (*model.PipelineRun, error) {
	const op = "SQLRunRepository.FindRunByID"
	var entity PipelineRunEntity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRunNotFound
		}
		return nil, exception.NewFlowError(op, fmt.Sprintf("failed to find PipelineRun (ID: %s)", id), err, true)
	}

	var steps []StepRecordEntity
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).Order("start_time asc").Find(&steps).Error; err != nil {
		return nil, exception.NewFlowError(op, fmt.Sprintf("failed to load steps of PipelineRun (ID: %s)", id), err, true)
	}

	run := toDomainRun(&entity)
	for i := range steps {
		run.Steps = append(run.Steps, toDomainStep(&steps[i]))
	}
	return run, nil
}

func (r *SQLRunRepository) FindRunsByPipeline(ctx context.Context, pipelineName string, limit int) ([]*model.PipelineRun, error) {
	const op = "SQLRunRepository.FindRunsByPipeline"
	var entities []PipelineRunEntity
	q := r.db.WithContext(ctx).Where("pipeline_name = ?", pipelineName).Order("start_time desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, exception.NewFlowError(op, fmt.Sprintf("failed to list runs of '%s'", pipelineName), err, true)
	}
	runs := make([]*model.PipelineRun, 0, len(entities))
	for i := range entities {
		runs = append(runs, toDomainRun(&entities[i]))
	}
	return runs, nil
}

func (r *SQLRunRepository) SaveStepRecord(ctx context.Context, step *model.StepRecord) error {
	const op = "SQLRunRepository.SaveStepRecord"
	if err := r.db.WithContext(ctx).Create(fromDomainStep(step)).Error; err != nil {
		return exception.NewFlowError(op, fmt.Sprintf("failed to save StepRecord (ID: %s)", step.ID), err, true)
	}
	return nil
}

func (r *SQLRunRepository) UpdateStepRecord(ctx context.Context, step *model.StepRecord) error {
	const op = "SQLRunRepository.UpdateStepRecord"

	originalVersion := step.Version
	step.Version++
	step.LastUpdated = time.Now()

	result := r.db.WithContext(ctx).
		Model(&StepRecordEntity{}).
		Where("id = ? AND version = ?", step.ID, originalVersion).
		Select("*").Omit("id").
		Updates(fromDomainStep(step))
	if result.Error != nil {
		step.Version = originalVersion
		return exception.NewFlowError(op, fmt.Sprintf("failed to update StepRecord (ID: %s)", step.ID), result.Error, true)
	}
	if result.RowsAffected == 0 {
		step.Version = originalVersion
		return r.missingOrStale(ctx, &StepRecordEntity{}, step.ID, originalVersion, repository.ErrStepRecordNotFound)
	}
	return nil
}

// missingOrStale tells a vanished row apart from a concurrent update after an UPDATE matched nothing.
func (r *SQLRunRepository) missingOrStale(ctx context.Context, entity interface{}, id string, version int, notFound error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(entity).Where("id = ?", id).Count(&count).Error; err != nil {
		return exception.NewFlowError("SQLRunRepository", fmt.Sprintf("failed to check existence of %s", id), err, true)
	}
	if count == 0 {
		return notFound
	}
	return exception.NewOptimisticLockingFailureException("repository",
		fmt.Sprintf("%s with version %d not found for update", id, version), nil)
}

// Close is a no-op; the connection provider owns the pool.
func (r *SQLRunRepository) Close() error {
	return nil
}

var _ repository.RunRepository = (*SQLRunRepository)(nil)
