// Package dashboard serves the transaction dashboard: the stats and fraud
// queries, the queue consumer feeding the store and its index management.
package dashboard

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

const moduleName = "dashboard"

// Query fields.
const (
	FieldGetStats             = "getStats"
	FieldGetFraudTransactions = "getFraudTransactions"
)

// TransactionReader reads the transaction store.
type TransactionReader interface {
	Sum(ctx context.Context, r model.TimeRange, fraudOnly bool) (int64, float64, error)
	FindFraud(ctx context.Context, r model.TimeRange, limit int64) ([]model.Transaction, error)
}

// QueryData is the range and optional limit of a query.
type QueryData struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Limit int64 `json:"limit,omitempty"`
}

// Query is a dashboard request.
type Query struct {
	Field string    `json:"field"`
	Data  QueryData `json:"data"`
}

// QueryHandler answers dashboard queries.
type QueryHandler struct {
	store        TransactionReader
	defaultLimit int64
}

// NewQueryHandler creates a QueryHandler. A non-positive defaultLimit falls back to 10.
func NewQueryHandler(store TransactionReader, cfg *config.DashboardConfig) *QueryHandler {
	limit := int64(cfg.DefaultLimit)
	if limit <= 0 {
		limit = 10
	}
	return &QueryHandler{store: store, defaultLimit: limit}
}

// Handle dispatches q on its field.
func (h *QueryHandler) Handle(ctx context.Context, q Query) (interface{}, error) {
	r := model.TimeRange{Start: q.Data.Start, End: q.Data.End}
	if r.Start > r.End {
		return nil, exception.NewValidationError(moduleName, fmt.Sprintf("range start %d is after end %d", r.Start, r.End), nil)
	}
	switch q.Field {
	case FieldGetStats:
		return h.GetStats(ctx, r)
	case FieldGetFraudTransactions:
		return h.GetFraudTransactions(ctx, r, q.Data.Limit)
	default:
		return nil, exception.NewValidationError(moduleName, fmt.Sprintf("Unrecognized request field '%s'", q.Field), nil)
	}
}

// GetStats aggregates all and fraudulent transactions in r concurrently.
func (h *QueryHandler) GetStats(ctx context.Context, r model.TimeRange) (*model.TransactionStats, error) {
	stats := &model.TransactionStats{Range: r}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalCount, stats.TotalAmount, err = h.store.Sum(gctx, r, false)
		return err
	})
	g.Go(func() error {
		var err error
		stats.FraudCount, stats.TotalFraudAmount, err = h.store.Sum(gctx, r, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetFraudTransactions returns the newest fraudulent transactions in r, at most
// limit of them. A non-positive limit uses the default.
func (h *QueryHandler) GetFraudTransactions(ctx context.Context, r model.TimeRange, limit int64) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = h.defaultLimit
	}
	txs, err := h.store.FindFraud(ctx, r, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp > txs[j].Timestamp })
	if int64(len(txs)) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
