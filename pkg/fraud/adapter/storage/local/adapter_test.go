package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageconfig "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/config"
)

func TestAdapter_UploadDownloadListDelete(t *testing.T) {
	ctx := context.Background()
	a, err := NewAdapter(storageconfig.StorageConfig{Type: ProviderType, BaseDir: t.TempDir(), BucketName: "raw"}, "raw")
	require.NoError(t, err)

	require.NoError(t, a.Upload(ctx, "", "transactions/0.parquet", strings.NewReader("a"), "application/octet-stream"))
	require.NoError(t, a.Upload(ctx, "", "identity/0.parquet", strings.NewReader("b"), "application/octet-stream"))

	rc, err := a.Download(ctx, "", "transactions/0.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a", string(data))

	var names []string
	require.NoError(t, a.ListObjects(ctx, "", "transactions/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	assert.Equal(t, []string{"transactions/0.parquet"}, names)

	require.NoError(t, a.DeleteObject(ctx, "", "transactions/0.parquet"))
	require.NoError(t, a.DeleteObject(ctx, "", "transactions/0.parquet"))
	_, err = a.Download(ctx, "", "transactions/0.parquet")
	assert.Error(t, err)
}

func TestAdapter_RejectsEscapingPaths(t *testing.T) {
	a, err := NewAdapter(storageconfig.StorageConfig{BaseDir: t.TempDir()}, "raw")
	require.NoError(t, err)

	err = a.Upload(context.Background(), "", "../outside.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorContains(t, err, "outside of base_dir")
}

func TestNewAdapter_RequiresBaseDir(t *testing.T) {
	_, err := NewAdapter(storageconfig.StorageConfig{}, "raw")
	assert.Error(t, err)
}
