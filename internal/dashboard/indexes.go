package dashboard

import (
	"context"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/docdb"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// DefaultIndexRequest indexes fraud lookups by recency.
const DefaultIndexRequest = `[{"key":{"isFraud":"1","timestamp":"-1"}}]`

// Index request types.
const (
	RequestCreate = "Create"
	RequestUpdate = "Update"
	RequestDelete = "Delete"
)

// IndexCreator creates indexes on the transaction collection.
type IndexCreator interface {
	CreateIndexes(ctx context.Context, keys []docdb.IndexKey) ([]string, error)
}

// ConvertIndexes parses a JSON list of {"key": {field: direction}} into index
// keys with integer directions. Field order is kept as written. Directions may
// be numbers or numeric strings.
func ConvertIndexes(raw []byte) ([]docdb.IndexKey, error) {
	var req struct {
		Indexes []struct {
			Key bson.D `bson:"key"`
		} `bson:"indexes"`
	}
	wrapped := append(append([]byte(`{"indexes":`), raw...), '}')
	if err := bson.UnmarshalExtJSON(wrapped, false, &req); err != nil {
		return nil, exception.NewValidationError(moduleName, "malformed index request", err)
	}

	keys := make([]docdb.IndexKey, 0, len(req.Indexes))
	for i, idx := range req.Indexes {
		if len(idx.Key) == 0 {
			return nil, exception.NewValidationError(moduleName, fmt.Sprintf("index %d has no key", i), nil)
		}
		key := make(docdb.IndexKey, 0, len(idx.Key))
		for _, e := range idx.Key {
			dir, err := direction(e.Value)
			if err != nil {
				return nil, exception.NewValidationError(moduleName, fmt.Sprintf("index %d field '%s'", i, e.Key), err)
			}
			key = append(key, bson.E{Key: e.Key, Value: dir})
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func direction(v interface{}) (int, error) {
	var n int
	switch d := v.(type) {
	case string:
		parsed, err := strconv.Atoi(d)
		if err != nil {
			return 0, err
		}
		n = parsed
	case int32:
		n = int(d)
	case int64:
		n = int(d)
	case float64:
		n = int(d)
		if float64(n) != d {
			return 0, fmt.Errorf("direction %v is not an integer", d)
		}
	default:
		return 0, fmt.Errorf("unsupported direction %v (%T)", v, v)
	}
	if n != 1 && n != -1 {
		return 0, fmt.Errorf("direction must be 1 or -1, got %d", n)
	}
	return n, nil
}

// IndexManager applies index requests to the transaction collection.
type IndexManager struct {
	store IndexCreator
}

// NewIndexManager creates an IndexManager.
func NewIndexManager(store IndexCreator) *IndexManager {
	return &IndexManager{store: store}
}

// Apply creates the requested indexes on Create and Update. Delete leaves them in place.
func (m *IndexManager) Apply(ctx context.Context, requestType string, raw []byte) ([]string, error) {
	switch requestType {
	case RequestCreate, RequestUpdate:
		// Update re-applies the definitions; creating an existing index with
		// the same keys is a no-op in the store, and nothing is dropped.
	case RequestDelete:
		logger.Infof("Index request %s: nothing to do.", requestType)
		return nil, nil
	default:
		return nil, exception.NewValidationError(moduleName, fmt.Sprintf("unknown index request type '%s'", requestType), nil)
	}

	keys, err := ConvertIndexes(raw)
	if err != nil {
		return nil, err
	}
	names, err := m.store.CreateIndexes(ctx, keys)
	if err != nil {
		return nil, err
	}
	logger.Infof("Index request %s: created %v.", requestType, names)
	return names, nil
}
