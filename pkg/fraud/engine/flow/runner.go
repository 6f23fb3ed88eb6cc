package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

const moduleName = "flow_runner"

// Runner executes definitions, persisting the run after every state.
// States run strictly one after another; only a MapState runs work in parallel.
type Runner struct {
	repo          repository.RunRepository
	recorder      metrics.MetricRecorder
	tracer        metrics.Tracer
	runListeners  []RunListener
	stepListeners []StepListener
}

// NewRunner creates a Runner.
func NewRunner(repo repository.RunRepository, recorder metrics.MetricRecorder, tracer metrics.Tracer) *Runner {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Runner{repo: repo, recorder: recorder, tracer: tracer}
}

// AddRunListener registers a run listener.
func (r *Runner) AddRunListener(l RunListener) {
	r.runListeners = append(r.runListeners, l)
}

// AddStepListener registers a step listener.
func (r *Runner) AddStepListener(l StepListener) {
	r.stepListeners = append(r.stepListeners, l)
}

// Start creates a run of def for input and executes it to a terminal state.
// The returned run reflects the final status; err is only set when the run
// could not be driven at all (persistence failure, cancellation).
func (r *Runner) Start(ctx context.Context, def *Definition, input interface{}) (*model.PipelineRun, error) {
	run := model.NewPipelineRun(def.Name, input)
	err := r.Execute(ctx, def, run)
	return run, err
}

// Execute persists run and drives it through def.
func (r *Runner) Execute(ctx context.Context, def *Definition, run *model.PipelineRun) error {
	if err := def.Validate(); err != nil {
		return exception.NewFlowError(moduleName, "invalid flow definition", err, false)
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		return exception.NewFlowError(moduleName, fmt.Sprintf("failed to save run %s", run.ID), err, false)
	}

	logger.Infof("Starting flow '%s' (Run ID: %s).", def.Name, run.ID)
	ctx, finishSpan := r.tracer.StartRunSpan(ctx, run)
	defer finishSpan()

	r.recorder.RecordRunStart(ctx, run)
	for _, l := range r.runListeners {
		l.BeforeRun(ctx, run)
	}
	run.MarkAsStarted()

	defer func() {
		// Persist with a context that survives cancellation so a stopped run is still recorded.
		if err := r.repo.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Errorf("Flow '%s': failed to persist final state of run %s: %v", def.Name, run.ID, err)
		}
		for _, l := range r.runListeners {
			l.AfterRun(ctx, run)
		}
		r.recorder.RecordRunEnd(ctx, run)
		logger.Infof("Flow '%s' (Run ID: %s) finished. Final State: %s, Status: %s", def.Name, run.ID, run.CurrentState, run.Status)
	}()

	current := def.StartState
	var pending *model.ErrorRecord

	for {
		select {
		case <-ctx.Done():
			logger.Warnf("Context cancelled, interrupting flow '%s' at '%s': %v", def.Name, current, ctx.Err())
			run.MarkAsStopped()
			r.tracer.RecordError(ctx, moduleName, ctx.Err())
			return ctx.Err()
		default:
		}

		state, ok := def.States[current]
		if !ok {
			err := exception.NewFlowErrorf(moduleName, "flow state '%s' not found", current)
			run.MarkAsFailed(model.NewErrorRecord(current, err, false))
			return err
		}
		run.CurrentState = current
		logger.Debugf("Flow '%s': entering %s.", def.Name, describe(state))

		var exitStatus model.ExitStatus
		var stateErr error

		switch s := state.(type) {
		case *SucceedState:
			run.MarkAsCompleted()
			return nil

		case *FailState:
			if pending == nil {
				pending = model.NewErrorRecord(current, errors.New("explicit fail state reached"), true)
			}
			logger.Errorf("Flow '%s' (Run ID: %s) failed in '%s': %s: %s", def.Name, run.ID, pending.State, pending.Error, pending.Cause)
			run.MarkAsFailed(pending)
			return nil

		case Decider:
			exitStatus, stateErr = s.Decide(ctx, run)
			if stateErr != nil {
				exitStatus = model.ExitStatusFailed
				logger.Errorf("Flow '%s': choice '%s' failed: %v", def.Name, current, stateErr)
			} else {
				logger.Infof("Flow '%s': choice '%s' selected %s.", def.Name, current, exitStatus)
			}

		case Executable:
			var err error
			exitStatus, stateErr, err = r.executeState(ctx, def, run, s)
			if err != nil {
				return err
			}

		default:
			err := exception.NewFlowErrorf(moduleName, "unknown flow state type: %T (ID: %s)", state, current)
			run.MarkAsFailed(model.NewErrorRecord(current, err, false))
			return err
		}

		if stateErr != nil && errors.Is(stateErr, context.Canceled) && ctx.Err() != nil {
			run.MarkAsStopped()
			return ctx.Err()
		}

		rule, found := def.GetTransitionRule(current, exitStatus, stateErr)
		if !found {
			if stateErr == nil {
				logger.Infof("Flow '%s': no transition from '%s'; completing run.", def.Name, current)
				run.MarkAsCompleted()
			} else {
				if def.HasCatch(current) {
					logger.Errorf("Flow '%s': %s in '%s' matched none of its catch rules; failing run.", def.Name, exception.ErrorName(stateErr), current)
				} else {
					logger.Errorf("Flow '%s': '%s' has no catch rule for %s; failing run.", def.Name, current, exception.ErrorName(stateErr))
				}
				run.MarkAsFailed(model.NewErrorRecord(current, stateErr, false))
				r.tracer.RecordError(ctx, moduleName, stateErr)
			}
			return nil
		}

		if stateErr != nil {
			pending = model.NewErrorRecord(current, stateErr, true)
			r.tracer.RecordError(ctx, moduleName, stateErr)
		}
		if rule.Transition.End {
			run.MarkAsCompleted()
			return nil
		}
		if rule.Transition.Fail {
			if pending == nil {
				pending = model.NewErrorRecord(current, fmt.Errorf("explicit fail transition from %s", current), true)
			}
			run.MarkAsFailed(pending)
			return nil
		}

		current = rule.Transition.To
		if err := r.repo.UpdateRun(ctx, run); err != nil {
			run.MarkAsFailed(model.NewErrorRecord(current, err, false))
			return exception.NewFlowError(moduleName, "failed to persist run after transition", err, false)
		}
	}
}

// executeState runs one Executable and records it. The second return value is the
// state's own error, which feeds transition matching; the third is a fatal runner error.
func (r *Runner) executeState(ctx context.Context, def *Definition, run *model.PipelineRun, s Executable) (model.ExitStatus, error, error) {
	record := model.NewStepRecord(run, s.ID())
	run.AddStepRecord(record)
	if err := r.repo.SaveStepRecord(ctx, record); err != nil {
		run.MarkAsFailed(model.NewErrorRecord(s.ID(), err, false))
		return model.ExitStatusFailed, nil, exception.NewFlowError(moduleName, "failed to save step record", err, false)
	}

	stepCtx, finishSpan := r.tracer.StartStepSpan(ctx, run, record)
	defer finishSpan()

	record.MarkAsStarted()
	r.recorder.RecordStepStart(stepCtx, run, record)
	for _, l := range r.stepListeners {
		l.BeforeStep(stepCtx, run, record)
	}

	stateErr := s.Execute(stepCtx, run, record)
	if stateErr != nil {
		record.MarkAsFailed(stateErr)
		r.tracer.RecordError(stepCtx, s.ID(), stateErr)
	} else {
		record.MarkAsCompleted()
	}

	for _, l := range r.stepListeners {
		l.AfterStep(stepCtx, run, record)
	}
	r.recorder.RecordStepEnd(stepCtx, run, record)

	if err := r.repo.UpdateStepRecord(context.WithoutCancel(ctx), record); err != nil {
		logger.Errorf("Flow '%s': failed to update step record %s: %v", def.Name, record.ID, err)
	}
	return record.ExitStatus, stateErr, nil
}
