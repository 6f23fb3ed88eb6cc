package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/internal/dashboard"
	"github.com/tigerroll/fraudflow/internal/inference"
	"github.com/tigerroll/fraudflow/internal/ingest"
	"github.com/tigerroll/fraudflow/internal/simulation"
	"github.com/tigerroll/fraudflow/internal/training"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/docdb"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/graph"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
)

// Modes.
const (
	ModePipeline = "pipeline"
	ModeSimulate = "simulate"
	ModeConsumer = "consumer"
	ModeServe    = "serve"
	ModeIngest   = "ingest"
	ModeIndexes  = "indexes"
	ModeRuns     = "runs"
)

// Modes lists every supported mode.
var Modes = []string{ModePipeline, ModeSimulate, ModeConsumer, ModeServe, ModeIngest, ModeIndexes, ModeRuns}

// output receives the JSON results printed by the one-shot modes.
var output io.Writer = os.Stdout

func optionsForMode(opts Options) (fx.Option, error) {
	switch opts.Mode {
	case ModePipeline:
		return fx.Options(
			ingest.Module,
			training.Module,
			invokeTask("training pipeline", func(ctx context.Context, p *training.Pipeline, opts Options) error {
				input, err := DecodeInput(opts.Input)
				if err != nil {
					return err
				}
				return reportRun(p.Run(ctx, input))
			}),
		), nil
	case ModeSimulate:
		return fx.Options(
			graph.Module,
			inference.Module,
			simulation.Module,
			invokeTask("simulation", func(ctx context.Context, o *simulation.Orchestrator, opts Options) error {
				input, err := DecodeInput(opts.Input)
				if err != nil {
					return err
				}
				return reportRun(o.Run(ctx, input))
			}),
		), nil
	case ModeConsumer:
		return fx.Options(
			docdb.Module,
			dashboard.Module,
			invokeTask("transaction consumer", func(ctx context.Context, c *dashboard.Consumer, _ Options) error {
				return c.Run(ctx)
			}),
		), nil
	case ModeServe:
		return fx.Options(
			graph.Module,
			inference.Module,
			docdb.Module,
			dashboard.Module,
			dashboard.ServerModule,
		), nil
	case ModeIngest:
		return fx.Options(
			ingest.Module,
			invokeTask("ingest", func(ctx context.Context, j *ingest.Job, _ Options) error {
				res, err := j.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(res)
			}),
		), nil
	case ModeIndexes:
		return fx.Options(
			docdb.Module,
			dashboard.Module,
			invokeTask("index update", func(ctx context.Context, m *dashboard.IndexManager, opts Options) error {
				request := opts.IndexRequest
				if len(request) == 0 {
					request = []byte(dashboard.DefaultIndexRequest)
				}
				names, err := m.Apply(ctx, opts.IndexRequestType, request)
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"indexes": names})
			}),
		), nil
	case ModeRuns:
		return fx.Options(
			fx.Invoke(fx.Annotate(
				func(lc fx.Lifecycle, shutdowner fx.Shutdowner, appCtx context.Context, repo repository.RunRepository, cfg *config.PipelineConfig, opts Options) {
					runTask(lc, shutdowner, appCtx, "run inspection", func(ctx context.Context) error {
						return inspectRuns(ctx, repo, cfg, opts)
					})
				},
				fx.ParamTags("", "", `name:"appCtx"`),
			)),
		), nil
	default:
		return nil, fmt.Errorf("unknown mode '%s' (expected one of %v)", opts.Mode, Modes)
	}
}

// invokeTask registers work on the component C as the application's one-shot task.
func invokeTask[C any](name string, work func(ctx context.Context, component C, opts Options) error) fx.Option {
	return fx.Invoke(fx.Annotate(
		func(lc fx.Lifecycle, shutdowner fx.Shutdowner, appCtx context.Context, component C, opts Options) {
			runTask(lc, shutdowner, appCtx, name, func(ctx context.Context) error {
				return work(ctx, component, opts)
			})
		},
		fx.ParamTags("", "", `name:"appCtx"`),
	))
}

// DecodeInput parses the JSON execution input. Empty input is an empty object.
func DecodeInput(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("execution input is not valid JSON: %w", err)
	}
	return input, nil
}

// StepSummary is the printed form of one step record.
type StepSummary struct {
	State    string          `json:"state"`
	Status   model.RunStatus `json:"status"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
}

// RunSummary is the printed form of a run record.
type RunSummary struct {
	ID          string             `json:"id"`
	Pipeline    string             `json:"pipeline"`
	State       string             `json:"state"`
	Status      model.RunStatus    `json:"status"`
	Error       *model.ErrorRecord `json:"error,omitempty"`
	ContextKeys []string           `json:"contextKeys"`
	Steps       []StepSummary      `json:"steps"`
}

// NewRunSummary summarizes run.
func NewRunSummary(run *model.PipelineRun) RunSummary {
	s := RunSummary{
		ID:          run.ID,
		Pipeline:    run.PipelineName,
		State:       run.CurrentState,
		Status:      run.Status,
		Error:       run.Error,
		ContextKeys: run.Context.Keys(),
		Steps:       make([]StepSummary, 0, len(run.Steps)),
	}
	for _, sr := range run.Steps {
		s.Steps = append(s.Steps, StepSummary{
			State:    sr.StateName,
			Status:   sr.Status,
			Attempts: sr.Attempts,
			Error:    sr.Error,
		})
	}
	return s
}

// reportRun prints the run record and fails unless the run completed.
func reportRun(run *model.PipelineRun, err error) error {
	if err != nil {
		return err
	}
	if err := printJSON(NewRunSummary(run)); err != nil {
		return err
	}
	if run.Status != model.StatusCompleted {
		return fmt.Errorf("run %s ended %s in state %s", run.ID, run.Status, run.CurrentState)
	}
	return nil
}

func inspectRuns(ctx context.Context, repo repository.RunRepository, cfg *config.PipelineConfig, opts Options) error {
	if opts.RunID != "" {
		run, err := repo.FindRunByID(ctx, opts.RunID)
		if err != nil {
			return err
		}
		return printJSON(NewRunSummary(run))
	}

	name := opts.PipelineName
	if name == "" {
		name = cfg.Name
	}
	runs, err := repo.FindRunsByPipeline(ctx, name, opts.Limit)
	if err != nil {
		return err
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, NewRunSummary(run))
	}
	return printJSON(summaries)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
