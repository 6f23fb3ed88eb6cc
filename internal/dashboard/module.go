package dashboard

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/internal/inference"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/docdb"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

// Module provides the query handler, consumer and index manager over the transaction store.
var Module = fx.Options(
	fx.Provide(
		func(store *docdb.TransactionStore, cfg *config.DashboardConfig) *QueryHandler {
			return NewQueryHandler(store, cfg)
		},
		func(queue *aws.Queue, store *docdb.TransactionStore) *Consumer {
			return NewConsumer(queue, store)
		},
		func(store *docdb.TransactionStore) *IndexManager {
			return NewIndexManager(store)
		},
	),
)

// ServerModule provides the HTTP server and ties it to the application lifecycle.
var ServerModule = fx.Options(
	fx.Provide(
		func(q *QueryHandler, h *inference.Handler, registry *prometheus.Registry) http.Handler {
			scorer := ScorerFunc(func(ctx context.Context, tx model.Transaction) (interface{}, error) {
				return h.Handle(ctx, tx)
			})
			return NewRouter(q, scorer, registry)
		},
		func(cfg *config.DashboardConfig, handler http.Handler) *Server {
			return NewServer(cfg.ListenAddress, handler)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
	}),
)
