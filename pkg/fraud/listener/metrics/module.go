package metrics

import "go.uber.org/fx"

// Module contributes the metrics listener to the runner's step listener group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewMetricsStepListener, fx.ResultTags(`group:"stepListeners"`))),
)
