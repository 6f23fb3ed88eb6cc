// Package provider wires the storage connection provider with every backend registered.
package provider

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/gcs"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/local"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// NewProvider creates the storage provider and closes its connections on shutdown.
func NewProvider(lc fx.Lifecycle, cfg *config.Config) *storage.Provider {
	p := storage.NewProvider(cfg)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return p.CloseAll() }})
	return p
}

// Module provides *storage.Provider.
var Module = fx.Options(
	fx.Provide(NewProvider),
)
