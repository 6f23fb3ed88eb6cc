package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

// RunContext accumulates step outputs across a run. Keys are write-once:
// a key set by an earlier step is never replaced by a later one.
type RunContext map[string]interface{}

// NewRunContext creates an empty RunContext.
func NewRunContext() RunContext {
	return make(RunContext)
}

// Put stores value under key. It fails with exception.ErrContextKeyExists if key is already present.
func (rc RunContext) Put(key string, value interface{}) error {
	if _, exists := rc[key]; exists {
		return exception.NewFlowErrorf("context", "context key '%s' is already set", key, exception.ErrContextKeyExists)
	}
	rc[key] = value
	return nil
}

// Get returns the raw value stored under key.
func (rc RunContext) Get(key string) (interface{}, bool) {
	v, ok := rc[key]
	return v, ok
}

// Has reports whether key is set.
func (rc RunContext) Has(key string) bool {
	_, ok := rc[key]
	return ok
}

// Keys returns the context keys in sorted order.
func (rc RunContext) Keys() []string {
	keys := make([]string, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode converts the value under key into target. Values may be the typed
// structs a step stored or the generic maps produced when a run was reloaded
// from storage; both go through their JSON form.
func (rc RunContext) Decode(key string, target interface{}) error {
	v, ok := rc[key]
	if !ok {
		return exception.NewFlowErrorf("context", "required context key '%s' is missing", key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return exception.NewFlowErrorf("context", "failed to encode context key '%s'", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return exception.NewFlowErrorf("context", "failed to decode context key '%s'", key, err)
	}
	return nil
}

// GetNested resolves a dot-separated path such as "checkEndpointOutput.Endpoint.frauddetection".
func (rc RunContext) GetNested(path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	root, ok := rc[parts[0]]
	if !ok {
		return nil, false
	}
	current, err := toGeneric(root)
	if err != nil {
		return nil, false
	}
	for _, part := range parts[1:] {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Copy returns a shallow copy of the context.
func (rc RunContext) Copy() RunContext {
	out := make(RunContext, len(rc))
	for k, v := range rc {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer, storing the context as JSON.
func (rc RunContext) Value() (driver.Value, error) {
	if rc == nil {
		return "{}", nil
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (rc *RunContext) Scan(value interface{}) error {
	if value == nil {
		*rc = make(RunContext)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for RunContext: %T", value)
	}
	if len(b) == 0 {
		*rc = make(RunContext)
		return nil
	}
	if err := json.Unmarshal(b, rc); err != nil {
		return fmt.Errorf("failed to unmarshal RunContext JSON: %w", err)
	}
	return nil
}

func toGeneric(v interface{}) (interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
