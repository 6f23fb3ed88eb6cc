package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

type MockReader struct{ mock.Mock }

func (m *MockReader) Sum(ctx context.Context, r model.TimeRange, fraudOnly bool) (int64, float64, error) {
	args := m.Called(ctx, r, fraudOnly)
	return args.Get(0).(int64), args.Get(1).(float64), args.Error(2)
}

func (m *MockReader) FindFraud(ctx context.Context, r model.TimeRange, limit int64) ([]model.Transaction, error) {
	args := m.Called(ctx, r, limit)
	txs, _ := args.Get(0).([]model.Transaction)
	return txs, args.Error(1)
}

func newQueryHandler(store TransactionReader) *QueryHandler {
	return NewQueryHandler(store, &config.NewConfig().Fraudflow.Dashboard)
}

func TestGetStats(t *testing.T) {
	store := &MockReader{}
	r := model.TimeRange{Start: 100, End: 200}
	store.On("Sum", mock.Anything, r, false).Return(int64(12), 530.5, nil)
	store.On("Sum", mock.Anything, r, true).Return(int64(2), 99.0, nil)

	out, err := newQueryHandler(store).Handle(context.Background(), Query{Field: FieldGetStats, Data: QueryData{Start: 100, End: 200}})
	require.NoError(t, err)
	assert.Equal(t, &model.TransactionStats{
		TotalCount: 12, TotalAmount: 530.5, FraudCount: 2, TotalFraudAmount: 99, Range: r,
	}, out)
}

func TestGetStats_EmptyRangeIsZero(t *testing.T) {
	store := &MockReader{}
	store.On("Sum", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), 0.0, nil)

	stats, err := newQueryHandler(store).GetStats(context.Background(), model.TimeRange{Start: 1, End: 2})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
	assert.Zero(t, stats.TotalAmount)
	assert.Zero(t, stats.FraudCount)
	assert.Zero(t, stats.TotalFraudAmount)
	assert.Equal(t, model.TimeRange{Start: 1, End: 2}, stats.Range)
}

func TestGetStats_PropagatesError(t *testing.T) {
	store := &MockReader{}
	store.On("Sum", mock.Anything, mock.Anything, false).Return(int64(1), 1.0, nil)
	store.On("Sum", mock.Anything, mock.Anything, true).Return(int64(0), 0.0, errors.New("connection reset"))

	_, err := newQueryHandler(store).GetStats(context.Background(), model.TimeRange{})
	assert.EqualError(t, err, "connection reset")
}

func TestGetFraudTransactions_SortedAndCapped(t *testing.T) {
	store := &MockReader{}
	r := model.TimeRange{Start: 0, End: 1000}
	store.On("FindFraud", mock.Anything, r, int64(2)).Return([]model.Transaction{
		{ID: "a", Timestamp: 10, IsFraud: true},
		{ID: "b", Timestamp: 30, IsFraud: true},
		{ID: "c", Timestamp: 20, IsFraud: true},
	}, nil)

	txs, err := newQueryHandler(store).GetFraudTransactions(context.Background(), r, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "b", txs[0].ID)
	assert.Equal(t, "c", txs[1].ID)
}

func TestGetFraudTransactions_DefaultLimit(t *testing.T) {
	for _, limit := range []int64{0, -5} {
		store := &MockReader{}
		store.On("FindFraud", mock.Anything, mock.Anything, int64(10)).Return([]model.Transaction{}, nil)

		out, err := newQueryHandler(store).Handle(context.Background(), Query{
			Field: FieldGetFraudTransactions,
			Data:  QueryData{Start: 1, End: 2, Limit: limit},
		})
		require.NoError(t, err)
		assert.Empty(t, out)
		store.AssertExpectations(t)
	}
}

func TestHandle_Rejects(t *testing.T) {
	h := newQueryHandler(&MockReader{})

	_, err := h.Handle(context.Background(), Query{Field: "getEverything"})
	require.ErrorIs(t, err, exception.ErrValidation)
	assert.Equal(t, "Unrecognized request field 'getEverything'", exception.ExtractErrorMessage(err))

	_, err = h.Handle(context.Background(), Query{Field: FieldGetStats, Data: QueryData{Start: 5, End: 1}})
	assert.ErrorIs(t, err, exception.ErrValidation)
}
