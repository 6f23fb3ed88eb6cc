package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/docdb"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

type MockIndexCreator struct{ mock.Mock }

func (m *MockIndexCreator) CreateIndexes(ctx context.Context, keys []docdb.IndexKey) ([]string, error) {
	args := m.Called(ctx, keys)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func TestConvertIndexes(t *testing.T) {
	keys, err := ConvertIndexes([]byte(DefaultIndexRequest))
	require.NoError(t, err)
	assert.Equal(t, []docdb.IndexKey{
		{{Key: "isFraud", Value: 1}, {Key: "timestamp", Value: -1}},
	}, keys)
}

func TestConvertIndexes_KeepsFieldOrder(t *testing.T) {
	keys, err := ConvertIndexes([]byte(`[{"key":{"timestamp":-1,"isFraud":"1"}},{"key":{"amount":1}}]`))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, docdb.IndexKey{{Key: "timestamp", Value: -1}, {Key: "isFraud", Value: 1}}, keys[0])
	assert.Equal(t, docdb.IndexKey{{Key: "amount", Value: 1}}, keys[1])
}

func TestConvertIndexes_Invalid(t *testing.T) {
	for _, raw := range []string{
		`{"key":{"a":"1"}}`,
		`[{"key":{"a":"up"}}]`,
		`[{"key":{"a":"2"}}]`,
		`[{"key":{}}]`,
		`[{"key":{"a":true}}]`,
	} {
		_, err := ConvertIndexes([]byte(raw))
		assert.ErrorIs(t, err, exception.ErrValidation, raw)
	}
}

func TestIndexManager_Apply(t *testing.T) {
	store := &MockIndexCreator{}
	want := []docdb.IndexKey{{{Key: "isFraud", Value: 1}, {Key: "timestamp", Value: -1}}}
	store.On("CreateIndexes", mock.Anything, want).Return([]string{"isFraud_1_timestamp_-1"}, nil).Twice()
	m := NewIndexManager(store)

	for _, rt := range []string{RequestCreate, RequestUpdate} {
		names, err := m.Apply(context.Background(), rt, []byte(DefaultIndexRequest))
		require.NoError(t, err)
		assert.Equal(t, []string{"isFraud_1_timestamp_-1"}, names)
	}

	names, err := m.Apply(context.Background(), RequestDelete, []byte(DefaultIndexRequest))
	require.NoError(t, err)
	assert.Nil(t, names)

	_, err = m.Apply(context.Background(), "Drop", nil)
	assert.ErrorIs(t, err, exception.ErrValidation)
	store.AssertExpectations(t)
}

func TestIndexKey_IsOrderedDocument(t *testing.T) {
	keys, err := ConvertIndexes([]byte(DefaultIndexRequest))
	require.NoError(t, err)
	assert.Equal(t, "isFraud", bson.D(keys[0])[0].Key)
}
