// Package graph talks to the property graph store over the Gremlin protocol.
package graph

import (
	"context"
	"fmt"
	"sync"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Handle owns the remote connection. It is opened on first use and closed on Close.
type Handle struct {
	cfg  *config.GraphConfig
	mu   sync.Mutex
	conn *gremlingo.DriverRemoteConnection
	g    *gremlingo.GraphTraversalSource
}

// NewHandle creates a Handle without connecting.
func NewHandle(cfg *config.GraphConfig) *Handle {
	return &Handle{cfg: cfg}
}

// URL returns the Gremlin endpoint, e.g. wss://host:8182/gremlin.
func (h *Handle) URL() string {
	protocol := h.cfg.Protocol
	if protocol == "" {
		protocol = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/gremlin", protocol, h.cfg.Host, h.cfg.Port)
}

// Traversal returns the traversal source, connecting if needed.
func (h *Handle) Traversal() (*gremlingo.GraphTraversalSource, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.g != nil {
		return h.g, nil
	}
	if h.cfg.Host == "" {
		return nil, exception.NewValidationError("graph", "graph host is not configured", nil)
	}
	conn, err := gremlingo.NewDriverRemoteConnection(h.URL(), func(settings *gremlingo.DriverRemoteConnectionSettings) {
		settings.TraversalSource = "g"
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("graph", "failed to connect to %s", h.URL(), transportError(err))
	}
	logger.Infof("Connected to graph store at %s.", h.URL())
	h.conn = conn
	h.g = gremlingo.Traversal_().WithRemote(conn)
	return h.g, nil
}

// Close closes the connection if one was opened.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
		h.g = nil
	}
}

// transportError tags a driver error as retryable transport failure.
func transportError(err error) error {
	return fmt.Errorf("%w: %w", exception.ErrClientTransport, err)
}

// NewModuleHandle creates a Handle closed when the application stops.
func NewModuleHandle(lc fx.Lifecycle, cfg *config.GraphConfig) *Handle {
	h := NewHandle(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			h.Close()
			return nil
		},
	})
	return h
}

// Module provides the graph Handle and Client.
var Module = fx.Options(
	fx.Provide(NewModuleHandle, NewClient),
)
