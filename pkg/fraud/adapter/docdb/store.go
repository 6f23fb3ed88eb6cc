package docdb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

const duplicateKeyCode = 11000

// CollectionFunc resolves the transaction collection.
type CollectionFunc func(ctx context.Context) (*mongo.Collection, error)

// TransactionStore is the insert-only transaction collection.
type TransactionStore struct {
	collection CollectionFunc
}

// NewTransactionStore creates a store over the handle's collection.
func NewTransactionStore(h *Handle) *TransactionStore {
	return &TransactionStore{collection: h.Collection}
}

// NewTransactionStoreFunc creates a store over an arbitrary collection source.
func NewTransactionStoreFunc(fn CollectionFunc) *TransactionStore {
	return &TransactionStore{collection: fn}
}

func transportError(err error) error {
	return fmt.Errorf("%w: %w", exception.ErrClientTransport, err)
}

// InsertMany inserts txs unordered. Documents rejected only because their id
// already exists count as persisted.
func (s *TransactionStore) InsertMany(ctx context.Context, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	docs := make([]interface{}, len(txs))
	for i := range txs {
		docs[i] = txs[i]
	}

	_, err = coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}
	if onlyDuplicates(err) {
		logger.Debugf("Skipped already persisted transactions: %v", err)
		return nil
	}
	return exception.NewFlowErrorf("docdb", "failed to insert %d transactions", len(txs), transportError(err))
}

func onlyDuplicates(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func rangeFilter(r model.TimeRange, fraudOnly bool) bson.D {
	filter := bson.D{}
	if fraudOnly {
		filter = append(filter, bson.E{Key: "isFraud", Value: true})
	}
	return append(filter, bson.E{Key: "timestamp", Value: bson.D{
		{Key: "$gte", Value: r.Start},
		{Key: "$lte", Value: r.End},
	}})
}

// Sum aggregates the count and amount of the transactions in r. An empty range yields zeros.
func (s *TransactionStore) Sum(ctx context.Context, r model.TimeRange, fraudOnly bool) (int64, float64, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return 0, 0, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: rangeFilter(r, fraudOnly)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "amount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, exception.NewFlowErrorf("docdb", "failed to aggregate transactions", transportError(err))
	}
	var rows []struct {
		Count  int64   `bson:"count"`
		Amount float64 `bson:"amount"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, exception.NewFlowErrorf("docdb", "failed to read aggregation", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Count, rows[0].Amount, nil
}

// FindFraud returns up to limit fraudulent transactions in r, newest first.
func (s *TransactionStore) FindFraud(ctx context.Context, r model.TimeRange, limit int64) ([]model.Transaction, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cur, err := coll.Find(ctx, rangeFilter(r, true), opts)
	if err != nil {
		return nil, exception.NewFlowErrorf("docdb", "failed to query fraud transactions", transportError(err))
	}
	txs := []model.Transaction{}
	if err := cur.All(ctx, &txs); err != nil {
		return nil, exception.NewFlowErrorf("docdb", "failed to decode fraud transactions", err)
	}
	return txs, nil
}

// IndexKey is one index: field names with integer directions, in order.
type IndexKey bson.D

// CreateIndexes creates the indexes and returns their names.
func (s *TransactionStore) CreateIndexes(ctx context.Context, keys []IndexKey) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]mongo.IndexModel, len(keys))
	for i, k := range keys {
		models[i] = mongo.IndexModel{Keys: bson.D(k)}
	}
	names, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return nil, exception.NewFlowErrorf("docdb", "failed to create %d indexes", len(keys), transportError(err))
	}
	return names, nil
}
