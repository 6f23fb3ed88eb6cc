package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// Module provides the SDK configuration, the service clients and the
// services built on them.
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.ServicesConfig) (aws.Config, error) {
			return LoadConfig(context.Background(), cfg)
		},
		NewClients,
		func(c *Clients, cfg *config.PipelineConfig) *GlueService {
			return NewGlueService(c.Glue,
				time.Duration(cfg.CrawlPollIntervalSeconds)*time.Second,
				time.Duration(cfg.JobPollIntervalSeconds)*time.Second)
		},
		func(c *Clients, cfg *config.PipelineConfig) *TrainingService {
			return NewTrainingService(c.SageMaker, time.Duration(cfg.JobPollIntervalSeconds)*time.Second)
		},
		func(c *Clients) *HostingService { return NewHostingService(c.SageMaker) },
		func(c *Clients, cfg *config.PipelineConfig) *TaskService {
			return NewTaskService(c.ECS, time.Duration(cfg.JobPollIntervalSeconds)*time.Second)
		},
		func(c *Clients) *FunctionInvoker { return NewFunctionInvoker(c.Lambda) },
		func(c *Clients, cfg *config.QueueConfig) *Queue { return NewQueue(c.SQS, cfg) },
		func(c *Clients, cfg *config.InferenceConfig) *EndpointInvoker {
			return NewEndpointInvoker(c.Runtime, cfg.ContentType)
		},
		func(c *Clients) *SecretReader { return NewSecretReader(c.Secrets) },
	),
)
