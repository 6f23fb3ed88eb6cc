package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

type MockGlue struct {
	mock.Mock
}

func (m *MockGlue) StartCrawler(ctx context.Context, in *glue.StartCrawlerInput, _ ...func(*glue.Options)) (*glue.StartCrawlerOutput, error) {
	args := m.Called(in)
	return &glue.StartCrawlerOutput{}, args.Error(0)
}

func (m *MockGlue) GetCrawlerMetrics(ctx context.Context, in *glue.GetCrawlerMetricsInput, _ ...func(*glue.Options)) (*glue.GetCrawlerMetricsOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*glue.GetCrawlerMetricsOutput), args.Error(1)
}

func (m *MockGlue) StartJobRun(ctx context.Context, in *glue.StartJobRunInput, _ ...func(*glue.Options)) (*glue.StartJobRunOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*glue.StartJobRunOutput), args.Error(1)
}

func (m *MockGlue) GetJobRun(ctx context.Context, in *glue.GetJobRunInput, _ ...func(*glue.Options)) (*glue.GetJobRunOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*glue.GetJobRunOutput), args.Error(1)
}

func metrics(estimating bool, left float64) *glue.GetCrawlerMetricsOutput {
	return &glue.GetCrawlerMetricsOutput{CrawlerMetricsList: []gluetypes.CrawlerMetrics{{
		CrawlerName:     aws.String("crawler"),
		StillEstimating: estimating,
		TimeLeftSeconds: left,
		TablesCreated:   2,
	}}}
}

func TestGlueService_CrawlPollsUntilDone(t *testing.T) {
	api := new(MockGlue)
	api.On("StartCrawler", mock.Anything).Return(nil).Once()
	api.On("GetCrawlerMetrics", mock.Anything).Return(metrics(true, 0), nil).Once()
	api.On("GetCrawlerMetrics", mock.Anything).Return(metrics(false, 12), nil).Once()
	api.On("GetCrawlerMetrics", mock.Anything).Return(metrics(false, 0), nil).Once()

	svc := NewGlueService(api, time.Millisecond, time.Millisecond)
	res, err := svc.Crawl(context.Background(), "crawler")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TablesCreated)
	api.AssertNumberOfCalls(t, "GetCrawlerMetrics", 3)
}

func TestGlueService_CrawlBoundedByContext(t *testing.T) {
	api := new(MockGlue)
	api.On("StartCrawler", mock.Anything).Return(nil)
	api.On("GetCrawlerMetrics", mock.Anything).Return(metrics(true, 0), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewGlueService(api, time.Millisecond, time.Millisecond).Crawl(ctx, "crawler")
	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestGlueService_RunJob(t *testing.T) {
	completed := time.UnixMilli(1700000000000)

	t.Run("succeeded", func(t *testing.T) {
		api := new(MockGlue)
		api.On("StartJobRun", mock.Anything).Return(&glue.StartJobRunOutput{JobRunId: aws.String("jr_1")}, nil)
		api.On("GetJobRun", mock.Anything).Return(&glue.GetJobRunOutput{JobRun: &gluetypes.JobRun{JobRunState: gluetypes.JobRunStateRunning}}, nil).Once()
		api.On("GetJobRun", mock.Anything).Return(&glue.GetJobRunOutput{JobRun: &gluetypes.JobRun{
			JobRunState: gluetypes.JobRunStateSucceeded,
			CompletedOn: &completed,
		}}, nil).Once()

		out, err := NewGlueService(api, time.Millisecond, time.Millisecond).RunJob(context.Background(), "etl", map[string]string{"--region": "us-east-1"})
		require.NoError(t, err)
		assert.Equal(t, "jr_1", out.ID)
		assert.EqualValues(t, 1700000000000, out.CompletedOn)
	})

	t.Run("failed", func(t *testing.T) {
		api := new(MockGlue)
		api.On("StartJobRun", mock.Anything).Return(&glue.StartJobRunOutput{JobRunId: aws.String("jr_2")}, nil)
		api.On("GetJobRun", mock.Anything).Return(&glue.GetJobRunOutput{JobRun: &gluetypes.JobRun{
			JobRunState:  gluetypes.JobRunStateFailed,
			ErrorMessage: aws.String("out of memory"),
		}}, nil)

		_, err := NewGlueService(api, time.Millisecond, time.Millisecond).RunJob(context.Background(), "etl", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrTaskFailed)
		assert.Contains(t, err.Error(), "out of memory")
	})
}

type MockSageMaker struct {
	mock.Mock
	SageMakerAPI
}

func (m *MockSageMaker) DescribeEndpoint(ctx context.Context, in *sagemaker.DescribeEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error) {
	args := m.Called(aws.ToString(in.EndpointName))
	return &sagemaker.DescribeEndpointOutput{}, args.Error(0)
}

func (m *MockSageMaker) CreateTrainingJob(ctx context.Context, in *sagemaker.CreateTrainingJobInput, _ ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error) {
	args := m.Called(in)
	return &sagemaker.CreateTrainingJobOutput{}, args.Error(0)
}

func (m *MockSageMaker) DescribeTrainingJob(ctx context.Context, in *sagemaker.DescribeTrainingJobInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*sagemaker.DescribeTrainingJobOutput), args.Error(1)
}

func TestHostingService_EndpointExists(t *testing.T) {
	api := new(MockSageMaker)
	api.On("DescribeEndpoint", "present").Return(nil)
	api.On("DescribeEndpoint", "absent").Return(&smithy.GenericAPIError{Code: "ValidationException", Message: "Could not find endpoint \"absent\"."})
	api.On("DescribeEndpoint", "denied").Return(&smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"})

	svc := NewHostingService(api)
	ok, err := svc.EndpointExists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.EndpointExists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.EndpointExists(context.Background(), "denied")
	assert.Error(t, err)
}

func TestTrainingService_Train(t *testing.T) {
	api := new(MockSageMaker)
	api.On("CreateTrainingJob", mock.MatchedBy(func(in *sagemaker.CreateTrainingJobInput) bool {
		return aws.ToString(in.TrainingJobName) == "fraud-detection-model-1" &&
			aws.ToInt32(in.ResourceConfig.InstanceCount) == 2 &&
			aws.ToInt32(in.StoppingCondition.MaxRuntimeInSeconds) == 5400 &&
			aws.ToString(in.InputDataConfig[0].DataSource.S3DataSource.S3Uri) == "s3://b/processed/jr_1"
	})).Return(nil)
	api.On("DescribeTrainingJob", mock.Anything).Return(&sagemaker.DescribeTrainingJobOutput{TrainingJobStatus: smtypes.TrainingJobStatusInProgress}, nil).Once()
	api.On("DescribeTrainingJob", mock.Anything).Return(&sagemaker.DescribeTrainingJobOutput{
		TrainingJobStatus: smtypes.TrainingJobStatusCompleted,
		ModelArtifacts:    &smtypes.ModelArtifacts{S3ModelArtifacts: aws.String("s3://b/model.tar.gz")},
	}, nil).Once()

	out, err := NewTrainingService(api, time.Millisecond).Train(context.Background(), TrainingRequest{
		JobName:           "fraud-detection-model-1",
		InstanceType:      "ml.c5.4xlarge",
		InstanceCount:     2,
		MaxRuntimeSeconds: 5400,
		InputDataURI:      "s3://b/processed/jr_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://b/model.tar.gz", out.ModelArtifacts.S3ModelArtifacts)
	api.AssertExpectations(t)
}

func TestTrainingService_TrainFailed(t *testing.T) {
	api := new(MockSageMaker)
	api.On("CreateTrainingJob", mock.Anything).Return(nil)
	api.On("DescribeTrainingJob", mock.Anything).Return(&sagemaker.DescribeTrainingJobOutput{
		TrainingJobStatus: smtypes.TrainingJobStatusFailed,
		FailureReason:     aws.String("AlgorithmError"),
	}, nil)

	_, err := NewTrainingService(api, time.Millisecond).Train(context.Background(), TrainingRequest{JobName: "j", InstanceCount: 1})
	assert.ErrorIs(t, err, exception.ErrTaskFailed)
}

type MockECS struct {
	mock.Mock
}

func (m *MockECS) RunTask(ctx context.Context, in *ecs.RunTaskInput, _ ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*ecs.RunTaskOutput), args.Error(1)
}

func (m *MockECS) DescribeTasks(ctx context.Context, in *ecs.DescribeTasksInput, _ ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	args := m.Called(in)
	return args.Get(0).(*ecs.DescribeTasksOutput), args.Error(1)
}

func stoppedTask(exitCode int32) *ecs.DescribeTasksOutput {
	return &ecs.DescribeTasksOutput{Tasks: []ecstypes.Task{{
		LastStatus: aws.String("STOPPED"),
		Containers: []ecstypes.Container{{Name: aws.String("container"), ExitCode: aws.Int32(exitCode)}},
	}}}
}

func TestTaskService_Run(t *testing.T) {
	req := TaskRequest{Cluster: "c", TaskDefinition: "td", ContainerName: "container", Environment: map[string]string{"JOB_NAME": "j"}}
	started := &ecs.RunTaskOutput{Tasks: []ecstypes.Task{{TaskArn: aws.String("arn:task/1")}}}

	t.Run("exit zero", func(t *testing.T) {
		api := new(MockECS)
		api.On("RunTask", mock.Anything).Return(started, nil)
		api.On("DescribeTasks", mock.Anything).Return(&ecs.DescribeTasksOutput{Tasks: []ecstypes.Task{{LastStatus: aws.String("RUNNING")}}}, nil).Once()
		api.On("DescribeTasks", mock.Anything).Return(stoppedTask(0), nil).Once()

		res, err := NewTaskService(api, time.Millisecond).Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "arn:task/1", res.TaskArn)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		api := new(MockECS)
		api.On("RunTask", mock.Anything).Return(started, nil)
		api.On("DescribeTasks", mock.Anything).Return(stoppedTask(3), nil)

		_, err := NewTaskService(api, time.Millisecond).Run(context.Background(), req)
		assert.ErrorIs(t, err, exception.ErrTaskFailed)
	})
}

type MockLambda struct {
	mock.Mock
}

func (m *MockLambda) Invoke(ctx context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	args := m.Called(aws.ToString(in.FunctionName))
	out, _ := args.Get(0).(*lambda.InvokeOutput)
	return out, args.Error(1)
}

func TestFunctionInvoker_Invoke(t *testing.T) {
	api := new(MockLambda)
	api.On("Invoke", "ok").Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"RepackagedArtifact":"s3://b/model-repackaged.tar.gz"}`)}, nil)
	api.On("Invoke", "raises").Return(&lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorType":"TooManyRequestsException","errorMessage":"slow down"}`),
	}, nil)
	api.On("Invoke", "fails").Return(&lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorType":"CalledProcessError","errorMessage":"exit 1"}`),
	}, nil)
	api.On("Invoke", "throttled").Return(nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate"})

	inv := NewFunctionInvoker(api)
	var out struct{ RepackagedArtifact string }
	require.NoError(t, inv.Invoke(context.Background(), "ok", map[string]string{"ModelArtifact": "x"}, &out))
	assert.Equal(t, "s3://b/model-repackaged.tar.gz", out.RepackagedArtifact)

	assert.ErrorIs(t, inv.Invoke(context.Background(), "raises", nil, nil), exception.ErrTooManyRequests)
	assert.ErrorIs(t, inv.Invoke(context.Background(), "fails", nil, nil), exception.ErrTaskFailed)
	assert.ErrorIs(t, inv.Invoke(context.Background(), "throttled", nil, nil), exception.ErrThrottling)
}

func TestFunctionInvoker_InvokeUndecodableFunctionError(t *testing.T) {
	api := new(MockLambda)
	api.On("Invoke", "crashed").Return(&lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`RequestId: 1f2e Process exited before completing request`),
	}, nil)

	err := NewFunctionInvoker(api).Invoke(context.Background(), "crashed", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrTaskFailed)
	assert.Contains(t, err.Error(), "Process exited before completing request")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.ErrorIs(t, Classify(&smithy.GenericAPIError{Code: "ServiceUnavailable"}), exception.ErrServiceUnavailable)
	assert.ErrorIs(t, Classify(&smithy.GenericAPIError{Code: "ServiceException"}), exception.ErrService)
	assert.ErrorIs(t, Classify(timeoutErr{}), exception.ErrClientTransport)

	plain := errors.New("boom")
	assert.Same(t, plain, Classify(plain))
	assert.Equal(t, exception.ServiceUnavailable, exception.ErrorName(Classify(&smithy.GenericAPIError{Code: "ServiceUnavailable"})))
}
