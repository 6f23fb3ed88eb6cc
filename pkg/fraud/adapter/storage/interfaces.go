// Package storage defines the object storage port used by the ingest job and
// the transaction simulator, plus a registry through which backends
// (local file system, GCS) make themselves available by type.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageconfig "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/configbinder"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Connection is an open storage backend.
type Connection interface {
	// Name returns the configured connection name.
	Name() string
	// Type returns the backend type, e.g. "local".
	Type() string
	// Close releases the backend's resources.
	Close() error

	// Upload writes data to bucket/objectName. An empty bucket uses the configured default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// Factory opens a Connection from its configuration.
type Factory func(ctx context.Context, cfg storageconfig.StorageConfig, name string) (Connection, error)

var (
	factories  = make(map[string]Factory)
	factoryMux sync.RWMutex
)

// RegisterFactory registers the backend for storageType.
func RegisterFactory(storageType string, f Factory) {
	factoryMux.Lock()
	defer factoryMux.Unlock()
	if _, exists := factories[storageType]; exists {
		logger.Warnf("Storage factory for type '%s' already registered. Overwriting.", storageType)
	}
	factories[storageType] = f
}

func getFactory(storageType string) (Factory, error) {
	factoryMux.RLock()
	defer factoryMux.RUnlock()
	f, ok := factories[storageType]
	if !ok {
		return nil, fmt.Errorf("no storage adapter registered for type '%s'", storageType)
	}
	return f, nil
}

// Provider opens named connections from adapter.storage lazily and caches them.
type Provider struct {
	configs     map[string]interface{}
	connections map[string]Connection
	mu          sync.RWMutex
}

// NewProvider creates a Provider over the adapter.storage section.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		configs:     cfg.Fraudflow.Adapter.Storage,
		connections: make(map[string]Connection),
	}
}

// GetConnection returns the named connection, opening it on first use.
func (p *Provider) GetConnection(ctx context.Context, name string) (Connection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok = p.connections[name]; ok {
		return conn, nil
	}

	raw, ok := p.configs[name]
	if !ok {
		return nil, fmt.Errorf("storage configuration '%s' not found in adapter.storage configs", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("storage configuration '%s' is not a mapping", name)
	}
	var storageCfg storageconfig.StorageConfig
	if err := configbinder.BindProperties(props, &storageCfg); err != nil {
		return nil, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}

	factory, err := getFactory(storageCfg.Type)
	if err != nil {
		return nil, err
	}
	conn, err = factory(ctx, storageCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage connection '%s': %w", name, err)
	}
	p.connections[name] = conn
	logger.Debugf("Created new %s storage connection '%s'.", storageCfg.Type, name)
	return conn, nil
}

// CloseAll closes every open connection and reports all failures together.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result
}
