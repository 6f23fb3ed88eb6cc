package simulation

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/internal/inference"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// NewScorer scores through the named inference function when one is
// configured, and through the in-process handler otherwise.
func NewScorer(cfg *config.ServicesConfig, functions *aws.FunctionInvoker, handler *inference.Handler) Scorer {
	if name := cfg.Functions.Inference; name != "" {
		return RemoteScorer(functions, name)
	}
	return ScorerFunc(func(ctx context.Context, tx model.Transaction) error {
		_, err := handler.Handle(ctx, tx)
		return err
	})
}

// NewModuleSampler loads the dataset once at construction.
func NewModuleSampler(provider *storage.Provider, cfg *config.SimulationConfig) (*Sampler, error) {
	dataset, err := LoadDataset(context.Background(), provider, cfg)
	if err != nil {
		return nil, err
	}
	return NewSampler(dataset, time.Now().UnixNano()), nil
}

// Module provides the simulation Orchestrator.
var Module = fx.Options(
	fx.Provide(
		NewScorer,
		NewModuleSampler,
		NewGenerator,
		NewOrchestrator,
	),
)
