package training

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

const defaultHiddenSize = "16"

// ModelOutput is stored under createModelOutput.
type ModelOutput struct {
	ModelName string `json:"ModelName"`
	ModelArn  string `json:"ModelArn"`
}

// EndpointConfigOutput is stored under endpointConfigOutput.
type EndpointConfigOutput struct {
	EndpointConfigName string `json:"EndpointConfigName"`
	EndpointConfigArn  string `json:"EndpointConfigArn"`
}

// EndpointOutput is stored under endpointOutput.
type EndpointOutput struct {
	EndpointName string `json:"EndpointName"`
	EndpointArn  string `json:"EndpointArn"`
	Created      bool   `json:"Created"`
}

// Tasks holds the pipeline's task implementations.
type Tasks struct {
	cfg      *config.FraudflowConfig
	services Services
}

// NewTasks creates Tasks.
func NewTasks(cfg *config.FraudflowConfig, services Services) *Tasks {
	return &Tasks{cfg: cfg, services: services}
}

// NormalizeParameters reads the run input and produces Parameters.
func (t *Tasks) NormalizeParameters(ctx context.Context, rc model.RunContext) (interface{}, error) {
	input, _ := rc.Get(model.ContextKeyInput)
	params, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	logger.Infof("Normalized the parameters: instance %s x %d, timeout %ds, %d hyperparameters.",
		params.TrainingJob.InstanceType, params.TrainingJob.InstanceCount,
		params.TrainingJob.TimeoutInSeconds, len(params.TrainingJob.Hyperparameters))
	return params, nil
}

// IngestData runs the ingest function when one is named, and the in-process job otherwise.
func (t *Tasks) IngestData(ctx context.Context, rc model.RunContext) (interface{}, error) {
	if name := t.cfg.Services.Functions.DataIngest; name != "" {
		out := map[string]interface{}{}
		if err := t.services.Functions.Invoke(ctx, name, map[string]interface{}{}, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if t.services.Ingester == nil {
		return nil, exception.NewValidationError("ingest", "no ingest function or local ingest job configured", nil)
	}
	return t.services.Ingester.Run(ctx)
}

// CrawlCatalog runs the metadata crawler to completion.
func (t *Tasks) CrawlCatalog(ctx context.Context, rc model.RunContext) (interface{}, error) {
	return t.services.Crawler.Crawl(ctx, t.cfg.Services.Glue.CrawlerName)
}

// ProcessData runs the ETL job to completion.
func (t *Tasks) ProcessData(ctx context.Context, rc model.RunContext) (interface{}, error) {
	return t.services.Jobs.RunJob(ctx, t.cfg.Services.Glue.JobName, map[string]string{
		"--output-prefix": t.cfg.Pipeline.InputDataRoot,
		"--region":        t.cfg.Services.Region,
	})
}

// BuildTrainingParameters merges the ETL output location into the hyperparameters.
func (t *Tasks) BuildTrainingParameters(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var params model.Parameters
	if err := rc.Decode(model.ContextKeyParameters, &params); err != nil {
		return nil, err
	}
	var processed model.DataProcessOutput
	if err := rc.Decode(model.ContextKeyDataProcessOutput, &processed); err != nil {
		return nil, err
	}
	return BuildHyperparameters(&params, &processed, t.cfg.Pipeline.InputDataRoot)
}

// TrainingJobName derives the job name from the ETL completion time.
func TrainingJobName(processed model.DataProcessOutput) string {
	return fmt.Sprintf("fraud-detection-model-%d", processed.CompletedOn)
}

// TrainModel runs the training job to completion.
func (t *Tasks) TrainModel(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var params model.Parameters
	if err := rc.Decode(model.ContextKeyParameters, &params); err != nil {
		return nil, err
	}
	var processed model.DataProcessOutput
	if err := rc.Decode(model.ContextKeyDataProcessOutput, &processed); err != nil {
		return nil, err
	}
	var built model.TrainingParametersOutput
	if err := rc.Decode(model.ContextKeyTrainingParametersOutput, &built); err != nil {
		return nil, err
	}

	return t.services.Trainer.Train(ctx, aws.TrainingRequest{
		JobName:           TrainingJobName(processed),
		Image:             t.cfg.Services.Training.Image,
		RoleArn:           t.cfg.Services.Training.RoleArn,
		Hyperparameters:   built.HyperParameters,
		InputDataURI:      built.InputDataURI,
		OutputPath:        t.cfg.Pipeline.ModelOutputRoot,
		InstanceType:      params.TrainingJob.InstanceType,
		InstanceCount:     params.TrainingJob.InstanceCount,
		VolumeSizeGB:      t.cfg.Services.Training.VolumeSizeGB,
		MaxRuntimeSeconds: params.TrainingJob.TimeoutInSeconds,
	})
}

// TrainingTimeout bounds the training state by the run's own timeout parameter.
func TrainingTimeout(rc model.RunContext) (time.Duration, error) {
	var params model.Parameters
	if err := rc.Decode(model.ContextKeyParameters, &params); err != nil {
		return 0, err
	}
	return time.Duration(params.TrainingJob.TimeoutInSeconds) * time.Second, nil
}

// LoadGraphData runs the bulk-load container against the trained artifacts.
func (t *Tasks) LoadGraphData(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var trained model.TrainingJobOutput
	if err := rc.Decode(model.ContextKeyTrainingJobOutput, &trained); err != nil {
		return nil, err
	}
	lg := t.cfg.Services.LoadGraph
	return t.services.Container.Run(ctx, aws.TaskRequest{
		Cluster:        lg.Cluster,
		TaskDefinition: lg.TaskDefinition,
		ContainerName:  lg.ContainerName,
		Subnets:        lg.Subnets,
		SecurityGroups: lg.SecurityGroups,
		Command: []string{
			"--data_prefix", t.cfg.Pipeline.DataPrefix,
			"--temp_folder", lg.TempFolder,
			"--neptune_endpoint", t.cfg.Graph.Host,
			"--neptune_port", strconv.Itoa(t.cfg.Graph.Port),
			"--region", t.cfg.Services.Region,
			"--neptune_iam_role_arn", lg.NeptuneIAMRoleArn,
		},
		Environment: map[string]string{
			"MODEL_PACKAGE": trained.ModelArtifacts.S3ModelArtifacts,
			"JOB_NAME":      trained.TrainingJobName,
		},
	})
}

// RepackageModel invokes the repackaging function on the trained artifact.
func (t *Tasks) RepackageModel(ctx context.Context, rc model.RunContext) (interface{}, error) {
	name := t.cfg.Services.Functions.RepackageModel
	if name == "" {
		return nil, exception.NewValidationError("repackage", "services.functions.repackage_model is not configured", nil)
	}
	var trained model.TrainingJobOutput
	if err := rc.Decode(model.ContextKeyTrainingJobOutput, &trained); err != nil {
		return nil, err
	}
	var out model.ModelPackagingOutput
	payload := map[string]string{"ModelArtifact": trained.ModelArtifacts.S3ModelArtifacts}
	if err := t.services.Functions.Invoke(ctx, name, payload, &out); err != nil {
		return nil, err
	}
	if out.RepackagedArtifact == "" {
		return nil, exception.NewFlowErrorf("repackage", "function '%s' returned no artifact", name, exception.ErrTaskFailed)
	}
	return &out, nil
}

// ModelName is the model resource name for a training job.
func (t *Tasks) ModelName(trainingJobName string) string {
	return t.cfg.Pipeline.Name + "-" + trainingJobName
}

// CreateModel registers the repackaged artifact as a model.
func (t *Tasks) CreateModel(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var trained model.TrainingJobOutput
	if err := rc.Decode(model.ContextKeyTrainingJobOutput, &trained); err != nil {
		return nil, err
	}
	var packaged model.ModelPackagingOutput
	if err := rc.Decode(model.ContextKeyModelPackagingOutput, &packaged); err != nil {
		return nil, err
	}
	var params model.Parameters
	if err := rc.Decode(model.ContextKeyParameters, &params); err != nil {
		return nil, err
	}
	hidden := params.TrainingJob.Hyperparameters["n-hidden"]
	if hidden == "" {
		hidden = defaultHiddenSize
	}

	hosting := t.cfg.Services.Hosting
	name := t.ModelName(trained.TrainingJobName)
	arn, err := t.services.Hosting.CreateModel(ctx, aws.ModelRequest{
		Name:         name,
		Image:        hosting.Image,
		RoleArn:      hosting.RoleArn,
		ModelDataURL: packaged.RepackagedArtifact,
		Environment: map[string]string{
			"SAGEMAKER_PROGRAM":          hosting.EntryPoint,
			"HIDDEN_SIZE":                hidden,
			"SAGEMAKER_SUBMIT_DIRECTORY": packaged.RepackagedArtifact,
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("Created model '%s'.", name)
	return &ModelOutput{ModelName: name, ModelArn: arn}, nil
}

// CreateEndpointConfig creates the endpoint configuration for the new model.
func (t *Tasks) CreateEndpointConfig(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var m ModelOutput
	if err := rc.Decode(model.ContextKeyCreateModelOutput, &m); err != nil {
		return nil, err
	}
	hosting := t.cfg.Services.Hosting
	req := aws.EndpointConfigRequest{
		Name:          m.ModelName,
		ModelName:     m.ModelName,
		VariantName:   hosting.VariantName,
		InstanceType:  hosting.InstanceType,
		InstanceCount: hosting.InitialInstanceCount,
	}
	if sl := t.cfg.Pipeline.Serverless; sl.Enabled {
		req.Serverless = &aws.ServerlessSettings{MemorySizeInMB: sl.MemorySizeInMB, MaxConcurrency: sl.MaxConcurrency}
	}
	arn, err := t.services.Hosting.CreateEndpointConfig(ctx, req)
	if err != nil {
		return nil, err
	}
	return &EndpointConfigOutput{EndpointConfigName: req.Name, EndpointConfigArn: arn}, nil
}

// CheckEndpoint reads whether the serving endpoint exists.
func (t *Tasks) CheckEndpoint(ctx context.Context, rc model.RunContext) (interface{}, error) {
	name := t.cfg.Pipeline.EndpointName
	exists, err := t.services.Hosting.EndpointExists(ctx, name)
	if err != nil {
		return nil, err
	}
	return &model.EndpointState{Endpoint: map[string]bool{name: exists}}, nil
}

// CreateEndpoint creates the serving endpoint.
func (t *Tasks) CreateEndpoint(ctx context.Context, rc model.RunContext) (interface{}, error) {
	return t.deploy(ctx, rc, false)
}

// UpdateEndpoint moves the existing endpoint to the new configuration.
func (t *Tasks) UpdateEndpoint(ctx context.Context, rc model.RunContext) (interface{}, error) {
	return t.deploy(ctx, rc, true)
}

func (t *Tasks) deploy(ctx context.Context, rc model.RunContext, update bool) (interface{}, error) {
	var ec EndpointConfigOutput
	if err := rc.Decode(model.ContextKeyEndpointConfigOutput, &ec); err != nil {
		return nil, err
	}
	name := t.cfg.Pipeline.EndpointName
	var arn string
	var err error
	if update {
		arn, err = t.services.Hosting.UpdateEndpoint(ctx, name, ec.EndpointConfigName)
	} else {
		arn, err = t.services.Hosting.CreateEndpoint(ctx, name, ec.EndpointConfigName)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("Endpoint '%s' now serves '%s' (created: %t).", name, ec.EndpointConfigName, !update)
	return &EndpointOutput{EndpointName: name, EndpointArn: arn, Created: !update}, nil
}
