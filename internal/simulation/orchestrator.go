package simulation

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/step"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// State names of the simulation flow.
const (
	StatePrepareParameters    = "PrepareParameters"
	StateGenerateTransactions = "GenerateTransactions"
	StateGenerateTask         = "GenerateTask"
	StateStopGeneration       = "StopGeneration"
	StateFail                 = "Fail"
)

// Context keys of the simulation flow.
const (
	ContextKeyParameters = "parameters"
	ContextKeyBranches   = "branches"
	ContextKeyGenerated  = "generated"
)

// Orchestrator builds the simulation flow.
type Orchestrator struct {
	cfg       *config.SimulationConfig
	generator *Generator
	runner    *flow.Runner
	recorder  metrics.MetricRecorder
	// unit is what one unit of the duration parameter lasts.
	unit time.Duration
}

// NewOrchestrator creates an Orchestrator running branches on runner.
func NewOrchestrator(cfg *config.SimulationConfig, generator *Generator, runner *flow.Runner, recorder metrics.MetricRecorder) *Orchestrator {
	return &Orchestrator{cfg: cfg, generator: generator, runner: runner, recorder: recorder, unit: time.Second}
}

func (o *Orchestrator) prepare(ctx context.Context, rc model.RunContext) (interface{}, error) {
	input, _ := rc.Get(model.ContextKeyInput)
	return PrepareParameters(input, o.cfg)
}

func (o *Orchestrator) branchTimeout(rc model.RunContext) (time.Duration, error) {
	var in BranchInput
	if err := rc.Decode(model.ContextKeyInput, &in); err != nil {
		return 0, err
	}
	return time.Duration(in.Duration) * o.unit, nil
}

func branches(ctx context.Context, run *model.PipelineRun) ([]interface{}, error) {
	var p Parameters
	if err := run.Context.Decode(ContextKeyParameters, &p); err != nil {
		return nil, err
	}
	return p.Branches(), nil
}

// BranchDefinition is the flow each generator runs. Reaching the duration is
// the normal way a generator ends.
func (o *Orchestrator) BranchDefinition() (*flow.Definition, error) {
	def := flow.NewDefinition("generate-transactions", StateGenerateTask)
	if err := def.AddState(step.NewTaskStep(StateGenerateTask, step.TaskFunc(o.generator.Generate),
		step.WithOutputKey(ContextKeyGenerated),
		step.WithTimeoutFunc(o.branchTimeout),
		step.WithMetricRecorder(o.recorder),
	)); err != nil {
		return nil, err
	}
	if err := def.AddState(flow.NewSucceedState(StateStopGeneration)); err != nil {
		return nil, err
	}
	def.Next(StateGenerateTask, StateStopGeneration)
	def.Catch(StateGenerateTask, exception.StatesTimeout, StateStopGeneration)
	return def, def.Validate()
}

// Definition is the simulation flow: validate, fan out the generators, stop.
func (o *Orchestrator) Definition() (*flow.Definition, error) {
	branch, err := o.BranchDefinition()
	if err != nil {
		return nil, err
	}

	def := flow.NewDefinition("transaction-simulation", StatePrepareParameters)
	states := []flow.State{
		step.NewTaskStep(StatePrepareParameters, step.TaskFunc(o.prepare),
			step.WithOutputKey(ContextKeyParameters),
			step.WithMetricRecorder(o.recorder),
		),
		flow.NewMapState(StateGenerateTransactions, branches, branch, o.runner, MaxConcurrent, ContextKeyBranches),
		flow.NewSucceedState(StateStopGeneration),
		flow.NewFailState(StateFail),
	}
	for _, s := range states {
		if err := def.AddState(s); err != nil {
			return nil, err
		}
	}
	def.Next(StatePrepareParameters, StateGenerateTransactions)
	def.Next(StateGenerateTransactions, StateStopGeneration)
	def.Catch(StatePrepareParameters, exception.StatesAll, StateFail)
	def.Catch(StateGenerateTransactions, exception.StatesAll, StateFail)
	return def, def.Validate()
}

// Run executes one simulation for input.
func (o *Orchestrator) Run(ctx context.Context, input interface{}) (*model.PipelineRun, error) {
	def, err := o.Definition()
	if err != nil {
		return nil, err
	}
	return o.runner.Start(ctx, def, input)
}
