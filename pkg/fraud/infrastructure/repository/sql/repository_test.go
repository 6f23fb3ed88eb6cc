package sql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/config"
	gormadapter "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/database/gorm/sqlite"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

func newSQLiteRepository(t *testing.T) *SQLRunRepository {
	db, err := gormadapter.Open(dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "runs.db"),
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(db, "sqlite"))
	// A second run is a no-op.
	require.NoError(t, Migrate(db, "sqlite"))
	return NewSQLRunRepository(db)
}

func TestSQLRunRepository_RoundTrip(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	run := model.NewPipelineRun("fraud-detection", map[string]interface{}{"trainingJob": map[string]interface{}{"instanceType": "ml.p3.2xlarge"}})
	require.NoError(t, repo.SaveRun(ctx, run))

	step := model.NewStepRecord(run, "ParametersNormalize")
	require.NoError(t, repo.SaveStepRecord(ctx, step))
	step.Attempts = 2
	step.MarkAsCompleted()
	require.NoError(t, repo.UpdateStepRecord(ctx, step))
	assert.Equal(t, 1, step.Version)

	run.MarkAsStarted()
	run.CurrentState = "DataIngest"
	require.NoError(t, run.Context.Put(model.ContextKeyParameters, map[string]interface{}{"k": "v"}))
	run.MarkAsFailed(model.NewErrorRecord("DataIngest", exception.ErrStepTimeout, true))
	require.NoError(t, repo.UpdateRun(ctx, run))
	assert.Equal(t, 1, run.Version)

	found, err := repo.FindRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, found.Status)
	assert.Equal(t, "DataIngest", found.CurrentState)
	assert.Equal(t, 1, found.Version)
	require.NotNil(t, found.Error)
	assert.Equal(t, exception.StatesTimeout, found.Error.Error)
	assert.True(t, found.Error.Caught)
	assert.True(t, found.Context.Has(model.ContextKeyParameters))
	require.Len(t, found.Steps, 1)
	assert.Equal(t, 2, found.Steps[0].Attempts)
	assert.Equal(t, model.StatusCompleted, found.Steps[0].Status)
}

func TestSQLRunRepository_OptimisticLock(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	run := model.NewPipelineRun("fraud-detection", nil)
	require.NoError(t, repo.SaveRun(ctx, run))

	stale := *run
	require.NoError(t, repo.UpdateRun(ctx, run))

	err := repo.UpdateRun(ctx, &stale)
	require.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.Equal(t, 0, stale.Version)

	ghost := model.NewPipelineRun("fraud-detection", nil)
	assert.ErrorIs(t, repo.UpdateRun(ctx, ghost), repository.ErrRunNotFound)

	_, err = repo.FindRunByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestSQLRunRepository_FindRunsByPipeline(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := model.NewPipelineRun("fraud-detection", nil)
		run.StartTime = base.Add(time.Duration(i) * time.Minute)
		run.CurrentState = string(rune('A' + i))
		require.NoError(t, repo.SaveRun(ctx, run))
	}
	require.NoError(t, repo.SaveRun(ctx, model.NewPipelineRun("other", nil)))

	runs, err := repo.FindRunsByPipeline(ctx, "fraud-detection", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "C", runs[0].CurrentState)
	assert.Equal(t, "B", runs[1].CurrentState)
}

func TestSQLRunRepository_StaleUpdateWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	repo := NewSQLRunRepository(db)

	mock.ExpectExec("UPDATE `pipeline_runs` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `pipeline_runs` WHERE id = \\?").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	run := model.NewPipelineRun("fraud-detection", nil)
	run.ID = "run-1"
	run.Version = 3

	err = repo.UpdateRun(context.Background(), run)
	require.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.Equal(t, 3, run.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
