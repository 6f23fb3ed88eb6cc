// Package repository selects the RunRepository implementation named by
// infrastructure.run_repository.type.
package repository

import (
	"fmt"

	gormadapter "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/fraudflow/pkg/fraud/infrastructure/repository/sql"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"

	"go.uber.org/fx"
)

// NewRunRepository returns the in-memory repository or a migrated SQL repository
// on the configured database connection.
func NewRunRepository(cfg *config.InfrastructureConfig, provider *gormadapter.Provider) (repository.RunRepository, error) {
	switch cfg.RunRepository.Type {
	case "", "inmemory":
		logger.Infof("Run repository: in-memory.")
		return inmemory.NewInMemoryRunRepository(), nil
	case "sql":
		conn, err := provider.GetConnection(cfg.RunRepository.DBRef)
		if err != nil {
			return nil, err
		}
		if err := sqlrepo.Migrate(conn.DB, conn.Type()); err != nil {
			return nil, err
		}
		logger.Infof("Run repository: SQL on '%s' (%s).", conn.Name, conn.Type())
		return sqlrepo.NewSQLRunRepository(conn.DB), nil
	default:
		return nil, fmt.Errorf("unsupported run repository type: %s", cfg.RunRepository.Type)
	}
}

// Module provides repository.RunRepository.
var Module = fx.Options(
	fx.Provide(NewRunRepository),
)
