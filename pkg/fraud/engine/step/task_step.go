// Package step implements the task state: one invocation of an external
// operation bounded by a timeout and wrapped in a retry policy.
package step

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/step/retry"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Task is the unit of work behind a task state. It reads what it needs from
// the run context and returns the output to store under the state's output key.
type Task interface {
	Run(ctx context.Context, rc model.RunContext) (interface{}, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, rc model.RunContext) (interface{}, error)

// Run calls f.
func (f TaskFunc) Run(ctx context.Context, rc model.RunContext) (interface{}, error) {
	return f(ctx, rc)
}

// TimeoutFunc computes a timeout from the run context, for states whose bound
// depends on earlier output.
type TimeoutFunc func(rc model.RunContext) (time.Duration, error)

// TaskStep is a task state.
type TaskStep struct {
	id          string
	task        Task
	outputKey   string
	timeout     time.Duration
	timeoutFunc TimeoutFunc
	retryPolicy retry.RetryPolicy
	recorder    metrics.MetricRecorder
}

// Option configures a TaskStep.
type Option func(*TaskStep)

// WithOutputKey stores the task output in the run context under key.
func WithOutputKey(key string) Option {
	return func(s *TaskStep) { s.outputKey = key }
}

// WithTimeout bounds each attempt. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(s *TaskStep) { s.timeout = d }
}

// WithTimeoutFunc bounds each attempt with a timeout derived from the run context.
func WithTimeoutFunc(fn TimeoutFunc) Option {
	return func(s *TaskStep) { s.timeoutFunc = fn }
}

// WithRetryPolicy sets the retry policy. The default never retries.
func WithRetryPolicy(p retry.RetryPolicy) Option {
	return func(s *TaskStep) { s.retryPolicy = p }
}

// WithMetricRecorder records retries on recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) Option {
	return func(s *TaskStep) { s.recorder = recorder }
}

// NewTaskStep creates a TaskStep.
func NewTaskStep(id string, task Task, opts ...Option) *TaskStep {
	s := &TaskStep{
		id:          id,
		task:        task,
		retryPolicy: retry.NoRetry(),
		recorder:    metrics.NewNoOpMetricRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the state name.
func (s *TaskStep) ID() string {
	return s.id
}

// OutputKey returns the context key the output is stored under.
func (s *TaskStep) OutputKey() string {
	return s.outputKey
}

// Execute runs the task with retries. A timed-out attempt fails with
// exception.ErrStepTimeout, which is not retried unless the policy names it.
// On success the output is added to the run context.
func (s *TaskStep) Execute(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) error {
	timeout := s.timeout
	if s.timeoutFunc != nil {
		d, err := s.timeoutFunc(run.Context)
		if err != nil {
			return err
		}
		timeout = d
	}

	var output interface{}
	attempts, err := retry.Execute(ctx, s.retryPolicy, func(ctx context.Context) error {
		out, err := s.attempt(ctx, run.Context, timeout)
		if err == nil {
			output = out
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		reason := exception.ErrorName(err)
		logger.Warnf("State '%s' attempt %d failed (%s), retrying in %s: %v", s.id, attempt, reason, wait, err)
		s.recorder.RecordRetry(ctx, s.id, reason)
	})
	record.Attempts = attempts
	if err != nil {
		return err
	}

	if s.outputKey != "" && output != nil {
		if err := run.Context.Put(s.outputKey, output); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskStep) attempt(ctx context.Context, rc model.RunContext, timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		return s.task.Run(ctx, rc)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.task.Run(attemptCtx, rc)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, exception.NewFlowErrorf(s.id, "state '%s' timed out after %s", s.id, timeout, exception.ErrStepTimeout)
	}
	return out, err
}
