package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
	"github.com/tigerroll/fraudflow/pkg/fraud/infrastructure/repository/inmemory"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

type countingScorer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingScorer) Score(ctx context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func newTestOrchestrator(scorer Scorer) (*Orchestrator, *inmemory.InMemoryRunRepository) {
	repo := inmemory.NewInMemoryRunRepository()
	runner := flow.NewRunner(repo, nil, nil)
	o := NewOrchestrator(defaults(), NewGenerator(NewSampler(builtinSample, 7), scorer), runner, metrics.NewNoOpMetricRecorder())
	o.unit = time.Millisecond
	return o, repo
}

func TestOrchestrator_TimeoutStopsGeneration(t *testing.T) {
	scorer := &countingScorer{}
	o, repo := newTestOrchestrator(scorer)

	run, err := o.Run(context.Background(), map[string]interface{}{"duration": float64(300), "concurrent": float64(3), "interval": float64(1)})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, StateStopGeneration, run.CurrentState)
	assert.Nil(t, run.Error)

	ids, ok := run.Context[ContextKeyBranches].([]string)
	require.True(t, ok)
	require.Len(t, ids, 3)
	for _, id := range ids {
		child, err := repo.FindRunByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, child.Status)
		assert.Equal(t, StateStopGeneration, child.CurrentState)
	}
	assert.Equal(t, 3, scorer.calls)
}

func TestOrchestrator_InvalidInputFailsBeforeWork(t *testing.T) {
	scorer := &countingScorer{}
	o, _ := newTestOrchestrator(scorer)

	run, err := o.Run(context.Background(), map[string]interface{}{"concurrent": float64(41)})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, StateFail, run.CurrentState)
	require.NotNil(t, run.Error)
	assert.Equal(t, StatePrepareParameters, run.Error.State)
	assert.Equal(t, exception.ValidationError, run.Error.Error)
	assert.Contains(t, run.Error.Cause, "concurrent must be an integer between 1 and 40")
	assert.Zero(t, scorer.calls)
}

func TestGenerator_CountsFailuresAndEndsWithDeadline(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	scorer := &countingScorer{err: errors.New("endpoint throttled")}
	g := NewGenerator(NewSampler(builtinSample, 1), scorer)
	rc := model.NewRunContext()
	require.NoError(t, rc.Put(model.ContextKeyInput, BranchInput{Duration: 1, Interval: 5}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	out, err := g.Generate(ctx, rc)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	res := out.(*GenerateResult)
	assert.Zero(t, res.Sent)
	assert.Positive(t, res.Failed)
	assert.GreaterOrEqual(t, scorer.calls, res.Failed)
	assert.Contains(t, buf.String(), fmt.Sprintf("Generator stopped (context deadline exceeded): sent 0, failed %d.", res.Failed))
}

func TestRemoteScorer(t *testing.T) {
	var gotName string
	var gotPayload interface{}
	invoker := invokerFunc(func(ctx context.Context, name string, payload interface{}, out interface{}) error {
		gotName, gotPayload = name, payload
		return nil
	})

	tx := model.Transaction{ID: "x"}
	require.NoError(t, RemoteScorer(invoker, "fraud-inference").Score(context.Background(), tx))
	assert.Equal(t, "fraud-inference", gotName)
	assert.Equal(t, tx, gotPayload)
}

type invokerFunc func(ctx context.Context, name string, payload interface{}, out interface{}) error

func (f invokerFunc) Invoke(ctx context.Context, name string, payload interface{}, out interface{}) error {
	return f(ctx, name, payload, out)
}
