package docdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// SecretGetter reads a secret string.
type SecretGetter interface {
	GetSecretString(ctx context.Context, secretID string) (string, error)
}

// Handle owns the database client. It connects on first use and disconnects on Close.
type Handle struct {
	cfg     *config.DocumentDBConfig
	secrets SecretGetter

	mu     sync.Mutex
	client *mongo.Client
}

// NewHandle creates a Handle without connecting.
func NewHandle(cfg *config.DocumentDBConfig, secrets SecretGetter) *Handle {
	return &Handle{cfg: cfg, secrets: secrets}
}

// NewHandleWithClient wraps an already connected client.
func NewHandleWithClient(cfg *config.DocumentDBConfig, client *mongo.Client) *Handle {
	return &Handle{cfg: cfg, client: client}
}

// Collection returns the transaction collection, connecting if needed.
func (h *Handle) Collection(ctx context.Context) (*mongo.Collection, error) {
	client, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(h.cfg.Database).Collection(h.cfg.Collection), nil
}

func (h *Handle) connect(ctx context.Context) (*mongo.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}

	uri := h.cfg.URI
	if uri == "" {
		if h.cfg.SecretID == "" || h.secrets == nil {
			return nil, exception.NewValidationError("docdb", "neither document_db.uri nor document_db.secret_id is configured", nil)
		}
		secret, err := h.secrets.GetSecretString(ctx, h.cfg.SecretID)
		if err != nil {
			return nil, err
		}
		if uri, err = BuildURI(secret, h.cfg); err != nil {
			return nil, err
		}
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(time.Duration(h.cfg.ConnectTimeoutSeconds) * time.Second)
	if h.cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(h.cfg.MaxPoolSize))
	}
	if h.cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(uint64(h.cfg.MinPoolSize))
	}
	if h.cfg.CAFile != "" {
		pem, err := os.ReadFile(h.cfg.CAFile)
		if err != nil {
			return nil, exception.NewValidationError("docdb", "failed to read CA file", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, exception.NewValidationError("docdb", "CA file contains no certificates", nil)
		}
		opts.SetTLSConfig(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, exception.NewFlowErrorf("docdb", "failed to connect to document database", transportError(err))
	}
	logger.Infof("Connected to document database '%s'.", h.cfg.Database)
	h.client = client
	return client, nil
}

// Close disconnects the client if one was opened.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Disconnect(ctx)
	h.client = nil
	return err
}

// NewModuleHandle creates a Handle disconnected when the application stops.
func NewModuleHandle(lc fx.Lifecycle, cfg *config.DocumentDBConfig, secrets SecretGetter) *Handle {
	h := NewHandle(cfg, secrets)
	lc.Append(fx.Hook{OnStop: h.Close})
	return h
}
