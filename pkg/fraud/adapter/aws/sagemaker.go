package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// endpointNotFound is the ValidationException text DescribeEndpoint uses for a missing endpoint.
const endpointNotFound = "Could not find endpoint"

// TrainingRequest describes one managed training job.
type TrainingRequest struct {
	JobName           string
	Image             string
	RoleArn           string
	Hyperparameters   map[string]string
	InputDataURI      string
	OutputPath        string
	InstanceType      string
	InstanceCount     int
	VolumeSizeGB      int
	MaxRuntimeSeconds int
}

// TrainingService runs training jobs synchronously.
type TrainingService struct {
	api          SageMakerAPI
	pollInterval time.Duration
}

// NewTrainingService creates a TrainingService.
func NewTrainingService(api SageMakerAPI, pollInterval time.Duration) *TrainingService {
	return &TrainingService{api: api, pollInterval: pollInterval}
}

// Train creates the job and waits until it is Completed, Failed or Stopped.
// Job-level failures are terminal; only the SDK retries transport errors.
func (s *TrainingService) Train(ctx context.Context, req TrainingRequest) (*model.TrainingJobOutput, error) {
	_, err := s.api.CreateTrainingJob(ctx, &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(req.JobName),
		RoleArn:         aws.String(req.RoleArn),
		AlgorithmSpecification: &smtypes.AlgorithmSpecification{
			TrainingImage:     aws.String(req.Image),
			TrainingInputMode: smtypes.TrainingInputModeFile,
		},
		HyperParameters: req.Hyperparameters,
		InputDataConfig: []smtypes.Channel{{
			ChannelName: aws.String("train"),
			DataSource: &smtypes.DataSource{
				S3DataSource: &smtypes.S3DataSource{
					S3DataType:             smtypes.S3DataTypeS3Prefix,
					S3Uri:                  aws.String(req.InputDataURI),
					S3DataDistributionType: smtypes.S3DataDistributionFullyReplicated,
				},
			},
		}},
		OutputDataConfig: &smtypes.OutputDataConfig{S3OutputPath: aws.String(req.OutputPath)},
		ResourceConfig: &smtypes.ResourceConfig{
			InstanceType:   smtypes.TrainingInstanceType(req.InstanceType),
			InstanceCount:  aws.Int32(int32(req.InstanceCount)),
			VolumeSizeInGB: aws.Int32(int32(req.VolumeSizeGB)),
		},
		StoppingCondition: &smtypes.StoppingCondition{MaxRuntimeInSeconds: aws.Int32(int32(req.MaxRuntimeSeconds))},
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("sagemaker", "failed to create training job '%s'", req.JobName, Classify(err))
	}
	logger.Infof("Created training job '%s' (%d x %s).", req.JobName, req.InstanceCount, req.InstanceType)

	return awaitTerminal(ctx, s.pollInterval, func(ctx context.Context) (*model.TrainingJobOutput, bool, error) {
		out, err := s.api.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{TrainingJobName: aws.String(req.JobName)})
		if err != nil {
			return nil, false, exception.NewFlowErrorf("sagemaker", "failed to describe training job '%s'", req.JobName, Classify(err))
		}
		switch out.TrainingJobStatus {
		case smtypes.TrainingJobStatusCompleted:
			result := &model.TrainingJobOutput{TrainingJobName: req.JobName}
			if out.ModelArtifacts != nil {
				result.ModelArtifacts.S3ModelArtifacts = aws.ToString(out.ModelArtifacts.S3ModelArtifacts)
			}
			return result, true, nil
		case smtypes.TrainingJobStatusFailed, smtypes.TrainingJobStatusStopped:
			return nil, false, exception.NewFlowErrorf("sagemaker", "training job '%s' ended %s: %s",
				req.JobName, out.TrainingJobStatus, aws.ToString(out.FailureReason), exception.ErrTaskFailed)
		default:
			return nil, false, nil
		}
	})
}

// ModelRequest binds a serving image to a model artifact.
type ModelRequest struct {
	Name         string
	Image        string
	RoleArn      string
	ModelDataURL string
	Environment  map[string]string
}

// EndpointConfigRequest describes one production variant.
type EndpointConfigRequest struct {
	Name          string
	ModelName     string
	VariantName   string
	InstanceType  string
	InstanceCount int
	// Serverless replaces the instance settings when non-nil.
	Serverless *ServerlessSettings
}

// ServerlessSettings sizes a serverless variant.
type ServerlessSettings struct {
	MemorySizeInMB int
	MaxConcurrency int
}

// HostingService manages models, endpoint configurations and endpoints.
type HostingService struct {
	api SageMakerAPI
}

// NewHostingService creates a HostingService.
func NewHostingService(api SageMakerAPI) *HostingService {
	return &HostingService{api: api}
}

// CreateModel creates a model resource and returns its ARN.
func (s *HostingService) CreateModel(ctx context.Context, req ModelRequest) (string, error) {
	out, err := s.api.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(req.Name),
		ExecutionRoleArn: aws.String(req.RoleArn),
		PrimaryContainer: &smtypes.ContainerDefinition{
			Image:        aws.String(req.Image),
			ModelDataUrl: aws.String(req.ModelDataURL),
			Environment:  req.Environment,
		},
	})
	if err != nil {
		return "", exception.NewFlowErrorf("sagemaker", "failed to create model '%s'", req.Name, Classify(err))
	}
	return aws.ToString(out.ModelArn), nil
}

// CreateEndpointConfig creates an endpoint configuration and returns its ARN.
func (s *HostingService) CreateEndpointConfig(ctx context.Context, req EndpointConfigRequest) (string, error) {
	variant := smtypes.ProductionVariant{
		VariantName: aws.String(req.VariantName),
		ModelName:   aws.String(req.ModelName),
	}
	if req.Serverless != nil {
		variant.ServerlessConfig = &smtypes.ProductionVariantServerlessConfig{
			MemorySizeInMB: aws.Int32(int32(req.Serverless.MemorySizeInMB)),
			MaxConcurrency: aws.Int32(int32(req.Serverless.MaxConcurrency)),
		}
	} else {
		variant.InstanceType = smtypes.ProductionVariantInstanceType(req.InstanceType)
		variant.InitialInstanceCount = aws.Int32(int32(req.InstanceCount))
	}

	out, err := s.api.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(req.Name),
		ProductionVariants: []smtypes.ProductionVariant{variant},
	})
	if err != nil {
		return "", exception.NewFlowErrorf("sagemaker", "failed to create endpoint config '%s'", req.Name, Classify(err))
	}
	return aws.ToString(out.EndpointConfigArn), nil
}

// EndpointExists reads the endpoint's existence afresh on every call.
func (s *HostingService) EndpointExists(ctx context.Context, name string) (bool, error) {
	_, err := s.api.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(name)})
	if err == nil {
		return true, nil
	}
	if IsValidationMessage(err, endpointNotFound) {
		logger.Infof("Endpoint with name '%s' does not exist.", name)
		return false, nil
	}
	return false, exception.NewFlowErrorf("sagemaker", "failed to describe endpoint '%s'", name, Classify(err))
}

// CreateEndpoint creates an endpoint bound to configName.
func (s *HostingService) CreateEndpoint(ctx context.Context, name, configName string) (string, error) {
	out, err := s.api.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return "", exception.NewFlowErrorf("sagemaker", "failed to create endpoint '%s'", name, Classify(err))
	}
	return aws.ToString(out.EndpointArn), nil
}

// UpdateEndpoint points an existing endpoint at configName.
func (s *HostingService) UpdateEndpoint(ctx context.Context, name, configName string) (string, error) {
	out, err := s.api.UpdateEndpoint(ctx, &sagemaker.UpdateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return "", exception.NewFlowErrorf("sagemaker", "failed to update endpoint '%s'", name, Classify(err))
	}
	return aws.ToString(out.EndpointArn), nil
}
