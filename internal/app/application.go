// Package app builds and runs the fx application for each fraudflow mode.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/database"
	storageProvider "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/provider"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/engine/flow"
	infraMetrics "github.com/tigerroll/fraudflow/pkg/fraud/infrastructure/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/infrastructure/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/listener"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Options carries the command-line arguments of one invocation.
type Options struct {
	Mode string
	// Input is the raw JSON execution input for pipeline and simulate.
	Input []byte
	// IndexRequestType and IndexRequest drive the indexes mode.
	IndexRequestType string
	IndexRequest     []byte
	// RunID and PipelineName select runs in the runs mode.
	RunID        string
	PipelineName string
	Limit        int
}

// RunApplication builds the fx application for opts.Mode and blocks until it stops.
// A failed mode exits the process with a non-zero code.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, opts Options) error {
	modeOptions, err := optionsForMode(opts)
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			opts,
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		config.Module,
		infraMetrics.Module,
		database.Module,
		repository.Module,
		listener.Module,
		flow.Module,
		aws.Module,
		storageProvider.Module,
		modeOptions,
	)

	app.Run()

	if app.Err() != nil {
		return fmt.Errorf("application run failed: %w", app.Err())
	}
	return nil
}

// runTask runs work in the background once the application has started and
// shuts the application down when it returns.
func runTask(lc fx.Lifecycle, shutdowner fx.Shutdowner, appCtx context.Context, name string, work func(ctx context.Context) error) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in %s: %v", name, r)
						code = 1
					}
					logger.Infof("Requesting application shutdown after %s.", name)
					if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				logger.Infof("Starting %s...", name)
				if err := work(appCtx); err != nil {
					logger.Errorf("%s failed: %v", name, err)
					code = 1
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
