package config

import "go.uber.org/fx"

// Module provides *Config and the sub-configurations components depend on.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(
		func(cfg *Config) *LoggingConfig { return &cfg.Fraudflow.System.Logging },
		func(cfg *Config) *PipelineConfig { return &cfg.Fraudflow.Pipeline },
		func(cfg *Config) *ServicesConfig { return &cfg.Fraudflow.Services },
		func(cfg *Config) *GraphConfig { return &cfg.Fraudflow.Graph },
		func(cfg *Config) *QueueConfig { return &cfg.Fraudflow.Queue },
		func(cfg *Config) *DocumentDBConfig { return &cfg.Fraudflow.DocumentDB },
		func(cfg *Config) *DashboardConfig { return &cfg.Fraudflow.Dashboard },
		func(cfg *Config) *InferenceConfig { return &cfg.Fraudflow.Inference },
		func(cfg *Config) *SimulationConfig { return &cfg.Fraudflow.Simulation },
		func(cfg *Config) *IngestConfig { return &cfg.Fraudflow.Ingest },
		func(cfg *Config) *InfrastructureConfig { return &cfg.Fraudflow.Infrastructure },
	),
)
