package sql

import "github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"

func fromDomainRun(run *model.PipelineRun) *PipelineRunEntity {
	return &PipelineRunEntity{
		ID:           run.ID,
		PipelineName: run.PipelineName,
		ParentID:     run.ParentID,
		CurrentState: run.CurrentState,
		Status:       run.Status,
		ExitStatus:   run.ExitStatus,
		Context:      run.Context,
		ErrorRecord:  run.Error,
		StartTime:    run.StartTime,
		EndTime:      run.EndTime,
		Version:      run.Version,
		LastUpdated:  run.LastUpdated,
	}
}

func toDomainRun(e *PipelineRunEntity) *model.PipelineRun {
	ctx := e.Context
	if ctx == nil {
		ctx = model.NewRunContext()
	}
	return &model.PipelineRun{
		ID:           e.ID,
		PipelineName: e.PipelineName,
		ParentID:     e.ParentID,
		CurrentState: e.CurrentState,
		Status:       e.Status,
		ExitStatus:   e.ExitStatus,
		Context:      ctx,
		Error:        e.ErrorRecord,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Version:      e.Version,
		LastUpdated:  e.LastUpdated,
	}
}

func fromDomainStep(sr *model.StepRecord) *StepRecordEntity {
	return &StepRecordEntity{
		ID:           sr.ID,
		RunID:        sr.RunID,
		StateName:    sr.StateName,
		Status:       sr.Status,
		ExitStatus:   sr.ExitStatus,
		Attempts:     sr.Attempts,
		ErrorMessage: sr.Error,
		StartTime:    sr.StartTime,
		EndTime:      sr.EndTime,
		Version:      sr.Version,
		LastUpdated:  sr.LastUpdated,
	}
}

func toDomainStep(e *StepRecordEntity) *model.StepRecord {
	return &model.StepRecord{
		ID:          e.ID,
		RunID:       e.RunID,
		StateName:   e.StateName,
		Status:      e.Status,
		ExitStatus:  e.ExitStatus,
		Attempts:    e.Attempts,
		Error:       e.ErrorMessage,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Version:     e.Version,
		LastUpdated: e.LastUpdated,
	}
}
