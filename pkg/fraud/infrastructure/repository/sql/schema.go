package sql

import (
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// PipelineRunEntity is the persisted form of a PipelineRun.
type PipelineRunEntity struct {
	ID           string `gorm:"primaryKey"`
	PipelineName string
	ParentID     string
	CurrentState string
	Status       model.RunStatus
	ExitStatus   model.ExitStatus
	Context      model.RunContext
	ErrorRecord  *model.ErrorRecord
	StartTime    time.Time
	EndTime      *time.Time
	Version      int
	LastUpdated  time.Time
}

func (PipelineRunEntity) TableName() string {
	return "pipeline_runs"
}

// StepRecordEntity is the persisted form of a StepRecord.
type StepRecordEntity struct {
	ID           string `gorm:"primaryKey"`
	RunID        string
	StateName    string
	Status       model.RunStatus
	ExitStatus   model.ExitStatus
	Attempts     int
	ErrorMessage string
	StartTime    time.Time
	EndTime      *time.Time
	Version      int
	LastUpdated  time.Time
}

func (StepRecordEntity) TableName() string {
	return "step_records"
}
