package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/step/retry"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

type MockTask struct {
	mock.Mock
}

func (m *MockTask) Run(ctx context.Context, rc model.RunContext) (interface{}, error) {
	args := m.Called(ctx, rc)
	return args.Get(0), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {}
func (m *MockRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun)   {}
func (m *MockRecorder) RecordStepStart(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
}
func (m *MockRecorder) RecordStepEnd(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
}
func (m *MockRecorder) RecordRetry(ctx context.Context, stateName string, reason string) {
	m.Called(stateName, reason)
}
func (m *MockRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

func newRun() (*model.PipelineRun, *model.StepRecord) {
	run := model.NewPipelineRun("test", nil)
	return run, model.NewStepRecord(run, "State")
}

func TestTaskStep_StoresOutput(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything, mock.Anything).Return(map[string]string{"k": "v"}, nil).Once()

	s := NewTaskStep("State", task, WithOutputKey("stateOutput"))
	run, rec := newRun()
	require.NoError(t, s.Execute(context.Background(), run, rec))

	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, map[string]string{"k": "v"}, run.Context["stateOutput"])
	task.AssertExpectations(t)
}

func TestTaskStep_RetriesTransientErrors(t *testing.T) {
	task := new(MockTask)
	task.On("Run", mock.Anything, mock.Anything).Return(nil, exception.ErrThrottling).Twice()
	task.On("Run", mock.Anything, mock.Anything).Return("ok", nil).Once()

	recorder := new(MockRecorder)
	recorder.On("RecordRetry", "State", exception.ThrottlingException).Twice()

	policy := retry.NewDefaultRetryPolicyFactory().Create(6, 1, 2, 2.0, []string{exception.ThrottlingException})
	s := NewTaskStep("State", task, WithRetryPolicy(policy), WithOutputKey("out"), WithMetricRecorder(recorder))
	run, rec := newRun()
	require.NoError(t, s.Execute(context.Background(), run, rec))

	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, "ok", run.Context["out"])
	recorder.AssertExpectations(t)
}

func TestTaskStep_TimeoutBecomesStatesTimeout(t *testing.T) {
	task := TaskFunc(func(ctx context.Context, rc model.RunContext) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := NewTaskStep("Slow", task, WithTimeout(10*time.Millisecond))
	run, rec := newRun()
	err := s.Execute(context.Background(), run, rec)

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrStepTimeout))
	assert.True(t, exception.IsErrorOfType(err, exception.StatesTimeout))
}

func TestTaskStep_TimeoutFunc(t *testing.T) {
	var seen time.Duration
	task := TaskFunc(func(ctx context.Context, rc model.RunContext) (interface{}, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		seen = time.Until(deadline)
		return nil, nil
	})
	s := NewTaskStep("Train", task, WithTimeoutFunc(func(rc model.RunContext) (time.Duration, error) {
		return time.Hour, nil
	}))
	run, rec := newRun()
	require.NoError(t, s.Execute(context.Background(), run, rec))
	assert.InDelta(t, time.Hour.Seconds(), seen.Seconds(), 5)
}

func TestTaskStep_OutputKeyAlreadyPresent(t *testing.T) {
	s := NewTaskStep("State", TaskFunc(func(ctx context.Context, rc model.RunContext) (interface{}, error) {
		return "second", nil
	}), WithOutputKey("out"))
	run, rec := newRun()
	require.NoError(t, run.Context.Put("out", "first"))

	err := s.Execute(context.Background(), run, rec)
	assert.True(t, errors.Is(err, exception.ErrContextKeyExists))
	assert.Equal(t, "first", run.Context["out"])
}
