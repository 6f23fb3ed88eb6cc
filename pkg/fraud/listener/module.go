package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/listener/logging"
	"github.com/tigerroll/fraudflow/pkg/fraud/listener/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/listener/tracing"
)

// Module aggregates all listener modules.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
)
