// Package model defines the domain types shared by the flow engine, the
// repositories and the fraud-detection components.
package model

import "github.com/google/uuid"

// RunStatus represents the state of a pipeline run or of a single step.
type RunStatus string

const (
	StatusStarting  RunStatus = "STARTING"
	StatusStarted   RunStatus = "STARTED"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
	StatusStopped   RunStatus = "STOPPED"
	StatusUnknown   RunStatus = "UNKNOWN"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal.
func (s RunStatus) IsFinished() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// ExitStatus is the outcome of a state, used to select the next transition.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.New().String()
}
