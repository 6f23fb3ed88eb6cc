// Package database wires the GORM connection provider and registers every supported dialect.
package database

import (
	"context"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm/sqlite"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// NewProvider creates the connection provider and closes its connections on shutdown.
func NewProvider(lc fx.Lifecycle, cfg *config.Config) *gormadapter.Provider {
	p := gormadapter.NewProvider(cfg)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return p.CloseAll() }})
	return p
}

// Module provides the *gorm.Provider.
var Module = fx.Options(
	fx.Provide(NewProvider),
)
