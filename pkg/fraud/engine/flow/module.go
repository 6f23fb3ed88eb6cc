package flow

import (
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/repository"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
)

// RunnerParams collects the runner's dependencies and every listener contributed to the
// "runListeners" and "stepListeners" groups.
type RunnerParams struct {
	fx.In
	Repo          repository.RunRepository
	Recorder      metrics.MetricRecorder
	Tracer        metrics.Tracer
	RunListeners  []RunListener  `group:"runListeners"`
	StepListeners []StepListener `group:"stepListeners"`
}

// NewRunnerFromParams builds a Runner with all grouped listeners attached.
func NewRunnerFromParams(p RunnerParams) *Runner {
	r := NewRunner(p.Repo, p.Recorder, p.Tracer)
	for _, l := range p.RunListeners {
		r.AddRunListener(l)
	}
	for _, l := range p.StepListeners {
		r.AddStepListener(l)
	}
	return r
}

// Module provides the flow Runner.
var Module = fx.Options(
	fx.Provide(NewRunnerFromParams),
)
