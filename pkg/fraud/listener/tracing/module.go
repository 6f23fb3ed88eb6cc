package tracing

import "go.uber.org/fx"

// Module contributes the tracing listener. The Tracer itself comes from the infrastructure layer.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewTracingStepListener, fx.ResultTags(`group:"stepListeners"`))),
)
