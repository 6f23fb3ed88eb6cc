package inference

import (
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/graph"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

// Module provides the inference Handler over the graph client, the endpoint
// invoker and the transaction queue.
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config, g *graph.Client, scorer *aws.EndpointInvoker, queue *aws.Queue) *Handler {
			return NewHandler(&cfg.Fraudflow, g, scorer, queue)
		},
	),
)
