package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	_ "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/local"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

func TestProvider_GetConnection(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Fraudflow.Adapter.Storage = map[string]interface{}{
		"raw":   map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"bogus": map[string]interface{}{"type": "ftp"},
	}
	p := storage.NewProvider(cfg)

	conn, err := p.GetConnection(context.Background(), "raw")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Type())

	again, err := p.GetConnection(context.Background(), "raw")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = p.GetConnection(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = p.GetConnection(context.Background(), "bogus")
	assert.ErrorContains(t, err, "no storage adapter registered")

	assert.NoError(t, p.CloseAll())
}
