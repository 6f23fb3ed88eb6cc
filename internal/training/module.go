package training

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/internal/ingest"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
)

// ServicesParams collects the adapter services behind the pipeline.
type ServicesParams struct {
	fx.In
	Ingest    *ingest.Job
	Glue      *aws.GlueService
	Training  *aws.TrainingService
	Tasks     *aws.TaskService
	Functions *aws.FunctionInvoker
	Hosting   *aws.HostingService
}

// NewServices wires the adapters into Services.
func NewServices(p ServicesParams) Services {
	return Services{
		Ingester:  p.Ingest,
		Crawler:   p.Glue,
		Jobs:      p.Glue,
		Trainer:   p.Training,
		Container: p.Tasks,
		Functions: p.Functions,
		Hosting:   p.Hosting,
	}
}

// Pipeline runs the training pipeline definition.
type Pipeline struct {
	def    *flow.Definition
	runner *flow.Runner
}

// NewPipeline builds the definition from configuration.
func NewPipeline(cfg *config.Config, services Services, runner *flow.Runner, recorder metrics.MetricRecorder) (*Pipeline, error) {
	def, err := NewDefinition(&cfg.Fraudflow.Pipeline, NewTasks(&cfg.Fraudflow, services), recorder)
	if err != nil {
		return nil, err
	}
	return &Pipeline{def: def, runner: runner}, nil
}

// Run executes one pipeline run for input and returns its final record.
func (p *Pipeline) Run(ctx context.Context, input interface{}) (*model.PipelineRun, error) {
	return p.runner.Start(ctx, p.def, input)
}

// Module provides the training Pipeline.
var Module = fx.Options(
	fx.Provide(
		NewServices,
		NewPipeline,
	),
)
