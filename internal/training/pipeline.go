package training

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/step"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/step/retry"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// State names of the training pipeline.
const (
	StateParametersNormalize  = "ParametersNormalize"
	StateDataIngest           = "DataIngest"
	StateDataCatalogCrawl     = "DataCatalogCrawl"
	StateDataProcess          = "DataProcess"
	StateBuildHyperparameters = "BuildHyperparameters"
	StateTrainModel           = "TrainModel"
	StateLoadGraphData        = "LoadGraphData"
	StateRepackageModel       = "RepackageModel"
	StateCreateModel          = "CreateModel"
	StateCreateEndpointConfig = "CreateEndpointConfig"
	StateCheckEndpoint        = "CheckEndpoint"
	StateEndpointChoice       = "EndpointChoice"
	StateCreateEndpoint       = "CreateEndpoint"
	StateUpdateEndpoint       = "UpdateEndpoint"
	StateFail                 = "Fail"
)

// chooseEndpointPath branches on the existence flag CheckEndpoint stored for
// endpointName. A missing or non-boolean flag fails the choice.
func chooseEndpointPath(endpointName string) flow.ChoiceFunc {
	path := model.ContextKeyCheckEndpointOutput + ".Endpoint." + endpointName
	return func(ctx context.Context, run *model.PipelineRun) (model.ExitStatus, error) {
		v, ok := run.Context.GetNested(path)
		if !ok {
			return model.ExitStatusFailed, exception.NewFlowErrorf("training", "endpoint state '%s' not found in run context", path, exception.ErrTaskFailed)
		}
		exists, ok := v.(bool)
		if !ok {
			return model.ExitStatusFailed, exception.NewFlowErrorf("training", "endpoint state '%s' is %T, not a boolean", path, v, exception.ErrTaskFailed)
		}
		if exists {
			return ExitEndpointExists, nil
		}
		return ExitEndpointMissing, nil
	}
}

// Outcomes of the endpoint choice.
const (
	ExitEndpointExists  model.ExitStatus = "EXISTS"
	ExitEndpointMissing model.ExitStatus = "MISSING"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// NewDefinition builds the training pipeline. Every task state except CreateModel
// catches all errors into Fail; CreateModel is caught only when
// pipeline.catch_create_model is set. Function-style states retry transient errors.
func NewDefinition(cfg *config.PipelineConfig, tasks *Tasks, recorder metrics.MetricRecorder) (*flow.Definition, error) {
	policy := retry.NewDefaultRetryPolicyFactory().FromConfig(cfg.Retry)
	timeouts := cfg.Timeouts

	type stateSpec struct {
		id        string
		task      step.TaskFunc
		outputKey string
		opts      []step.Option
		retried   bool
	}
	specs := []stateSpec{
		{StateParametersNormalize, tasks.NormalizeParameters, model.ContextKeyParameters,
			[]step.Option{step.WithTimeout(seconds(timeouts.ParametersNormalize))}, true},
		{StateDataIngest, tasks.IngestData, model.ContextKeyIngestOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.DataIngest))}, true},
		{StateDataCatalogCrawl, tasks.CrawlCatalog, model.ContextKeyCrawlOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.DataCatalogCrawl))}, true},
		{StateDataProcess, tasks.ProcessData, model.ContextKeyDataProcessOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.DataProcess))}, false},
		{StateBuildHyperparameters, tasks.BuildTrainingParameters, model.ContextKeyTrainingParametersOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.BuildHyperparameters))}, true},
		{StateTrainModel, tasks.TrainModel, model.ContextKeyTrainingJobOutput,
			[]step.Option{step.WithTimeoutFunc(TrainingTimeout)}, false},
		{StateLoadGraphData, tasks.LoadGraphData, model.ContextKeyLoadGraphOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.LoadGraphData))}, false},
		{StateRepackageModel, tasks.RepackageModel, model.ContextKeyModelPackagingOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.RepackageModel))}, true},
		{StateCreateModel, tasks.CreateModel, model.ContextKeyCreateModelOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.Lifecycle))}, false},
		{StateCreateEndpointConfig, tasks.CreateEndpointConfig, model.ContextKeyEndpointConfigOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.Lifecycle))}, false},
		{StateCheckEndpoint, tasks.CheckEndpoint, model.ContextKeyCheckEndpointOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.CheckEndpoint))}, true},
		{StateCreateEndpoint, tasks.CreateEndpoint, model.ContextKeyEndpointOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.Lifecycle))}, false},
		{StateUpdateEndpoint, tasks.UpdateEndpoint, model.ContextKeyEndpointOutput,
			[]step.Option{step.WithTimeout(seconds(timeouts.Lifecycle))}, false},
	}

	def := flow.NewDefinition(cfg.Name, StateParametersNormalize)
	for _, s := range specs {
		opts := append([]step.Option{step.WithOutputKey(s.outputKey), step.WithMetricRecorder(recorder)}, s.opts...)
		if s.retried {
			opts = append(opts, step.WithRetryPolicy(policy))
		}
		if err := def.AddState(step.NewTaskStep(s.id, s.task, opts...)); err != nil {
			return nil, err
		}
		if s.id != StateCreateModel || cfg.CatchCreateModel {
			def.Catch(s.id, exception.StatesAll, StateFail)
		}
	}

	endpointName := cfg.EndpointName
	choice := flow.NewChoiceState(StateEndpointChoice, chooseEndpointPath(endpointName))
	for _, s := range []flow.State{choice, flow.NewFailState(StateFail)} {
		if err := def.AddState(s); err != nil {
			return nil, err
		}
	}

	for i := 0; i+1 < len(specs) && specs[i].id != StateCheckEndpoint; i++ {
		def.Next(specs[i].id, specs[i+1].id)
	}
	def.Next(StateCheckEndpoint, StateEndpointChoice)
	def.AddTransitionRule(StateEndpointChoice, flow.Transition{On: string(ExitEndpointMissing), To: StateCreateEndpoint})
	def.AddTransitionRule(StateEndpointChoice, flow.Transition{On: string(ExitEndpointExists), To: StateUpdateEndpoint})
	def.Catch(StateEndpointChoice, exception.StatesAll, StateFail)
	def.AddTransitionRule(StateCreateEndpoint, flow.Transition{On: string(model.ExitStatusCompleted), End: true})
	def.AddTransitionRule(StateUpdateEndpoint, flow.Transition{On: string(model.ExitStatusCompleted), End: true})

	return def, def.Validate()
}
