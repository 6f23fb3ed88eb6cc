package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// ErrorRecord describes why a run failed.
type ErrorRecord struct {
	// State is the state whose error ended the run.
	State string `json:"state"`
	// Error is the registered error name, e.g. "States.Timeout".
	Error string `json:"error"`
	// Cause is the error message.
	Cause string `json:"cause"`
	// Caught is false when no catch rule matched and the engine failed the run by default.
	Caught bool `json:"caught"`
}

// NewErrorRecord builds an ErrorRecord for err raised in state.
func NewErrorRecord(state string, err error, caught bool) *ErrorRecord {
	return &ErrorRecord{
		State:  state,
		Error:  exception.ErrorName(err),
		Cause:  err.Error(),
		Caught: caught,
	}
}

// Value implements driver.Valuer.
func (er *ErrorRecord) Value() (driver.Value, error) {
	if er == nil {
		return nil, nil
	}
	data, err := json.Marshal(er)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (er *ErrorRecord) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, er)
	case string:
		return json.Unmarshal([]byte(v), er)
	default:
		return fmt.Errorf("unsupported Scan type for ErrorRecord: %T", value)
	}
}

// StepRecord is the history entry for one state visited by a run.
type StepRecord struct {
	ID          string     `json:"id"`
	RunID       string     `json:"runId"`
	StateName   string     `json:"stateName"`
	Status      RunStatus  `json:"status"`
	ExitStatus  ExitStatus `json:"exitStatus"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Version     int        `json:"version"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// NewStepRecord creates a StepRecord in STARTING state.
func NewStepRecord(run *PipelineRun, stateName string) *StepRecord {
	now := time.Now()
	return &StepRecord{
		ID:          NewID(),
		RunID:       run.ID,
		StateName:   stateName,
		Status:      StatusStarting,
		ExitStatus:  ExitStatusUnknown,
		StartTime:   now,
		LastUpdated: now,
	}
}

// MarkAsStarted updates the step to STARTED.
func (sr *StepRecord) MarkAsStarted() {
	sr.Status = StatusStarted
	sr.LastUpdated = time.Now()
}

// MarkAsCompleted updates the step to COMPLETED.
func (sr *StepRecord) MarkAsCompleted() {
	if sr.Status.IsFinished() {
		logger.Warnf("StepRecord (ID: %s) is already %s; forcing COMPLETED.", sr.ID, sr.Status)
	}
	sr.Status = StatusCompleted
	sr.ExitStatus = ExitStatusCompleted
	now := time.Now()
	sr.EndTime = &now
	sr.LastUpdated = now
}

// MarkAsFailed updates the step to FAILED and records the error message.
func (sr *StepRecord) MarkAsFailed(err error) {
	sr.Status = StatusFailed
	sr.ExitStatus = ExitStatusFailed
	now := time.Now()
	sr.EndTime = &now
	sr.LastUpdated = now
	if err != nil {
		sr.Error = err.Error()
	}
}

// PipelineRun is one execution of a flow definition.
type PipelineRun struct {
	ID           string        `json:"id"`
	PipelineName string        `json:"pipelineName"`
	ParentID     string        `json:"parentId,omitempty"`
	CurrentState string        `json:"currentState"`
	Status       RunStatus     `json:"status"`
	ExitStatus   ExitStatus    `json:"exitStatus"`
	Context      RunContext    `json:"context"`
	Error        *ErrorRecord  `json:"error,omitempty"`
	Steps        []*StepRecord `json:"steps,omitempty"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	Version      int           `json:"version"`
	LastUpdated  time.Time     `json:"lastUpdated"`
}

// NewPipelineRun creates a run in STARTING state. input, when non-nil, is stored under ContextKeyInput.
func NewPipelineRun(pipelineName string, input interface{}) *PipelineRun {
	now := time.Now()
	run := &PipelineRun{
		ID:           NewID(),
		PipelineName: pipelineName,
		Status:       StatusStarting,
		ExitStatus:   ExitStatusUnknown,
		Context:      NewRunContext(),
		StartTime:    now,
		LastUpdated:  now,
	}
	if input != nil {
		run.Context[ContextKeyInput] = input
	}
	return run
}

// NewChildRun creates a run for a parallel branch of parent.
func NewChildRun(parent *PipelineRun, branch int, input interface{}) *PipelineRun {
	run := NewPipelineRun(parent.PipelineName, input)
	run.ID = fmt.Sprintf("%s/branch-%d", parent.ID, branch)
	run.ParentID = parent.ID
	return run
}

// AddStepRecord appends a step history entry.
func (pr *PipelineRun) AddStepRecord(sr *StepRecord) {
	pr.Steps = append(pr.Steps, sr)
}

// MarkAsStarted updates the run to STARTED.
func (pr *PipelineRun) MarkAsStarted() {
	if pr.Status != StatusStarting {
		logger.Warnf("PipelineRun (ID: %s) cannot start from %s; forcing STARTED.", pr.ID, pr.Status)
	}
	pr.Status = StatusStarted
	pr.LastUpdated = time.Now()
}

// MarkAsCompleted updates the run to COMPLETED.
func (pr *PipelineRun) MarkAsCompleted() {
	if pr.Status.IsFinished() {
		logger.Warnf("PipelineRun (ID: %s) is already %s; forcing COMPLETED.", pr.ID, pr.Status)
	}
	pr.Status = StatusCompleted
	pr.ExitStatus = ExitStatusCompleted
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
}

// MarkAsFailed updates the run to FAILED and stores the error record.
func (pr *PipelineRun) MarkAsFailed(record *ErrorRecord) {
	if pr.Status.IsFinished() {
		logger.Warnf("PipelineRun (ID: %s) is already %s; forcing FAILED.", pr.ID, pr.Status)
	}
	pr.Status = StatusFailed
	pr.ExitStatus = ExitStatusFailed
	if record != nil {
		pr.Error = record
	}
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
}

// MarkAsStopped updates the run to STOPPED, used when the process is cancelled.
func (pr *PipelineRun) MarkAsStopped() {
	pr.Status = StatusStopped
	pr.ExitStatus = ExitStatusStopped
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
}

// Duration returns the elapsed run time.
func (pr *PipelineRun) Duration() time.Duration {
	if pr.EndTime == nil {
		return time.Since(pr.StartTime)
	}
	return pr.EndTime.Sub(pr.StartTime)
}
