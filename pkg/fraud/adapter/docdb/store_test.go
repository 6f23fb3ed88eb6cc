package docdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
)

func storeFor(mt *mtest.T) *TransactionStore {
	return NewTransactionStoreFunc(func(ctx context.Context) (*mongo.Collection, error) {
		return mt.Coll, nil
	})
}

func TestTransactionStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db.transaction"
	r := model.TimeRange{Start: 100, End: 200}

	mt.Run("insert many", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := storeFor(mt).InsertMany(context.Background(), []model.Transaction{
			{ID: "1", Amount: 10, Timestamp: 150},
			{ID: "2", Amount: 20, Timestamp: 160, IsFraud: true},
		})
		assert.NoError(t, err)
	})

	mt.Run("duplicates are persisted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: duplicateKeyCode, Message: "E11000 duplicate key error",
		}))
		err := storeFor(mt).InsertMany(context.Background(), []model.Transaction{{ID: "1"}, {ID: "3"}})
		assert.NoError(t, err)
	})

	mt.Run("other write errors fail", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 121, Message: "Document failed validation",
		}))
		err := storeFor(mt).InsertMany(context.Background(), []model.Transaction{{ID: "1"}})
		assert.Error(t, err)
	})

	mt.Run("sum", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: int32(3)},
			{Key: "amount", Value: 42.5},
		}))
		count, amount, err := storeFor(mt).Sum(context.Background(), r, false)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
		assert.InDelta(t, 42.5, amount, 1e-9)
	})

	mt.Run("sum over empty range", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		count, amount, err := storeFor(mt).Sum(context.Background(), r, true)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Zero(t, amount)
	})

	mt.Run("find fraud", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "9"}, {Key: "amount", Value: 5.0}, {Key: "timestamp", Value: int64(190)}, {Key: "isFraud", Value: true}},
			bson.D{{Key: "_id", Value: "8"}, {Key: "amount", Value: 7.0}, {Key: "timestamp", Value: int64(120)}, {Key: "isFraud", Value: true}},
		))
		txs, err := storeFor(mt).FindFraud(context.Background(), r, 10)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "9", txs[0].ID)
		assert.True(t, txs[1].IsFraud)
	})

	mt.Run("create indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		names, err := storeFor(mt).CreateIndexes(context.Background(), []IndexKey{
			{{Key: "isFraud", Value: 1}, {Key: "timestamp", Value: -1}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"isFraud_1_timestamp_-1"}, names)
	})
}
