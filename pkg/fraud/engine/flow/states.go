package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// SucceedState ends the run successfully.
type SucceedState struct {
	id string
}

// NewSucceedState creates a terminal success state.
func NewSucceedState(id string) *SucceedState {
	return &SucceedState{id: id}
}

func (s *SucceedState) ID() string { return s.id }

// FailState ends the run as failed, carrying the error that led to it.
type FailState struct {
	id string
}

// NewFailState creates a terminal failure state.
func NewFailState(id string) *FailState {
	return &FailState{id: id}
}

func (s *FailState) ID() string { return s.id }

// ChoiceFunc selects an outcome from the run context.
type ChoiceFunc func(ctx context.Context, run *model.PipelineRun) (model.ExitStatus, error)

// ChoiceState branches on a value already in the run context.
type ChoiceState struct {
	id     string
	choose ChoiceFunc
}

// NewChoiceState creates a branching state.
func NewChoiceState(id string, choose ChoiceFunc) *ChoiceState {
	return &ChoiceState{id: id, choose: choose}
}

func (s *ChoiceState) ID() string { return s.id }

// Decide evaluates the choice.
func (s *ChoiceState) Decide(ctx context.Context, run *model.PipelineRun) (model.ExitStatus, error) {
	return s.choose(ctx, run)
}

// ItemsFunc produces one input per parallel branch.
type ItemsFunc func(ctx context.Context, run *model.PipelineRun) ([]interface{}, error)

// MapState runs a branch definition once per item, concurrently, as child runs.
// The state fails if any branch run does not complete.
type MapState struct {
	id             string
	items          ItemsFunc
	branch         *Definition
	runner         *Runner
	maxConcurrency int
	outputKey      string
}

// NewMapState creates a Map state. maxConcurrency <= 0 runs all branches at once.
func NewMapState(id string, items ItemsFunc, branch *Definition, runner *Runner, maxConcurrency int, outputKey string) *MapState {
	return &MapState{
		id:             id,
		items:          items,
		branch:         branch,
		runner:         runner,
		maxConcurrency: maxConcurrency,
		outputKey:      outputKey,
	}
}

func (s *MapState) ID() string { return s.id }

// Execute fans out the branches and waits for all of them.
func (s *MapState) Execute(ctx context.Context, run *model.PipelineRun, record *model.StepRecord) error {
	items, err := s.items(ctx, run)
	if err != nil {
		return err
	}
	logger.Infof("Map '%s' (Run ID: %s): starting %d branches.", s.id, run.ID, len(items))

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	childIDs := make([]string, len(items))
	for i, item := range items {
		g.Go(func() error {
			child := model.NewChildRun(run, i, item)
			childIDs[i] = child.ID
			if err := s.runner.Execute(gctx, s.branch, child); err != nil {
				return err
			}
			if child.Status != model.StatusCompleted {
				cause := string(child.Status)
				if child.Error != nil {
					cause = child.Error.Cause
				}
				return exception.NewFlowErrorf(s.id, "branch %s ended %s: %s", child.ID, child.Status, cause, exception.ErrTaskFailed)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	record.Attempts = 1
	if s.outputKey != "" {
		return run.Context.Put(s.outputKey, childIDs)
	}
	return nil
}

var (
	_ State      = (*SucceedState)(nil)
	_ State      = (*FailState)(nil)
	_ Decider    = (*ChoiceState)(nil)
	_ Executable = (*MapState)(nil)
)

// describe names a state for log lines.
func describe(s State) string {
	switch s.(type) {
	case *SucceedState:
		return fmt.Sprintf("succeed state '%s'", s.ID())
	case *FailState:
		return fmt.Sprintf("fail state '%s'", s.ID())
	case Decider:
		return fmt.Sprintf("choice '%s'", s.ID())
	default:
		return fmt.Sprintf("state '%s'", s.ID())
	}
}
