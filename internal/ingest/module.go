package ingest

import (
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// Module provides the ingest Job over the configured storage connections.
var Module = fx.Options(
	fx.Provide(func(p *storage.Provider, cfg *config.IngestConfig) *Job {
		return NewJob(p, cfg)
	}),
)
