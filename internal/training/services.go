package training

import (
	"context"

	"github.com/tigerroll/fraudflow/internal/ingest"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// Each interface invokes one kind of external job and waits for its terminal state.

type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

type Crawler interface {
	Crawl(ctx context.Context, crawlerName string) (*aws.CrawlResult, error)
}

type JobRunner interface {
	RunJob(ctx context.Context, jobName string, arguments map[string]string) (*model.DataProcessOutput, error)
}

type Trainer interface {
	Train(ctx context.Context, req aws.TrainingRequest) (*model.TrainingJobOutput, error)
}

type ContainerRunner interface {
	Run(ctx context.Context, req aws.TaskRequest) (*aws.TaskResult, error)
}

type FunctionInvoker interface {
	Invoke(ctx context.Context, functionName string, payload interface{}, out interface{}) error
}

type Hosting interface {
	CreateModel(ctx context.Context, req aws.ModelRequest) (string, error)
	CreateEndpointConfig(ctx context.Context, req aws.EndpointConfigRequest) (string, error)
	EndpointExists(ctx context.Context, name string) (bool, error)
	CreateEndpoint(ctx context.Context, name, configName string) (string, error)
	UpdateEndpoint(ctx context.Context, name, configName string) (string, error)
}

// Services bundles the external operations the pipeline drives.
type Services struct {
	Ingester  Ingester
	Crawler   Crawler
	Jobs      JobRunner
	Trainer   Trainer
	Container ContainerRunner
	Functions FunctionInvoker
	Hosting   Hosting
}
