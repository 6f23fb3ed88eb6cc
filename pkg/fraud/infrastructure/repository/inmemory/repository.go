// Package inmemory provides a map-backed RunRepository, suitable for tests and
// single-process runs where persistence across restarts is not required.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

const moduleName = "inmemory-repository"

// InMemoryRunRepository stores runs and step records in maps guarded by a RWMutex.
// Stored values are copies, so callers cannot mutate repository state by accident.
type InMemoryRunRepository struct {
	runs  map[string]*model.PipelineRun
	steps map[string]*model.StepRecord
	mu    sync.RWMutex
}

// NewInMemoryRunRepository creates an empty repository.
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs:  make(map[string]*model.PipelineRun),
		steps: make(map[string]*model.StepRecord),
	}
}

func cloneRun(run *model.PipelineRun) *model.PipelineRun {
	c := *run
	c.Context = run.Context.Copy()
	c.Steps = nil
	if run.Error != nil {
		e := *run.Error
		c.Error = &e
	}
	return &c
}

// SaveRun persists a new run.
func (r *InMemoryRunRepository) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("PipelineRun with ID %s already exists", run.ID)
	}
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// UpdateRun replaces a stored run if its version matches.
func (r *InMemoryRunRepository) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.runs[run.ID]
	if !exists {
		return repository.ErrRunNotFound
	}
	if stored.Version != run.Version {
		return exception.NewOptimisticLockingFailureException(moduleName,
			fmt.Sprintf("PipelineRun %s was updated concurrently (stored version %d, given %d)", run.ID, stored.Version, run.Version), nil)
	}
	run.Version++
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// FindRunByID returns a copy of the run with its step records attached.
func (r *InMemoryRunRepository) FindRunByID(ctx context.Context, id string) (*model.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	run := cloneRun(stored)
	for _, sr := range r.steps {
		if sr.RunID == id {
			c := *sr
			run.Steps = append(run.Steps, &c)
		}
	}
	sort.Slice(run.Steps, func(i, j int) bool {
		return run.Steps[i].StartTime.Before(run.Steps[j].StartTime)
	})
	return run, nil
}

// FindRunsByPipeline returns up to limit runs of pipelineName, newest first. A limit <= 0 returns all.
func (r *InMemoryRunRepository) FindRunsByPipeline(ctx context.Context, pipelineName string, limit int) ([]*model.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*model.PipelineRun
	for _, run := range r.runs {
		if run.PipelineName == pipelineName {
			runs = append(runs, cloneRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveStepRecord persists a new step record.
func (r *InMemoryRunRepository) SaveStepRecord(ctx context.Context, step *model.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[step.ID]; exists {
		return fmt.Errorf("StepRecord with ID %s already exists", step.ID)
	}
	c := *step
	r.steps[step.ID] = &c
	return nil
}

// UpdateStepRecord replaces a stored step record if its version matches.
func (r *InMemoryRunRepository) UpdateStepRecord(ctx context.Context, step *model.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.steps[step.ID]
	if !exists {
		return repository.ErrStepRecordNotFound
	}
	if stored.Version != step.Version {
		return exception.NewOptimisticLockingFailureException(moduleName,
			fmt.Sprintf("StepRecord %s was updated concurrently", step.ID), nil)
	}
	step.Version++
	c := *step
	r.steps[step.ID] = &c
	return nil
}

// Close is a no-op.
func (r *InMemoryRunRepository) Close() error {
	return nil
}
