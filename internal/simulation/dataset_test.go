package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	storageconfig "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/local"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/parquet"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
)

type staticResolver map[string]storage.Connection

func (r staticResolver) GetConnection(ctx context.Context, name string) (storage.Connection, error) {
	return r[name], nil
}

var datasetHeader = []string{
	"TransactionID", "TransactionAmt", "ProductCD", "card1", "card2", "card3", "card4", "card5", "card6",
	"addr1", "addr2", "dist1", "dist2", "P_emaildomain", "R_emaildomain",
}

func TestLoadDataset_Builtin(t *testing.T) {
	txs, err := LoadDataset(context.Background(), staticResolver{}, &config.SimulationConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, txs)
}

func TestLoadDataset_Parquet(t *testing.T) {
	ctx := context.Background()
	conn, err := local.NewAdapter(storageconfig.StorageConfig{Type: local.ProviderType, BaseDir: t.TempDir(), BucketName: "data"}, "dataset")
	require.NoError(t, err)
	require.NoError(t, parquet.Upload(ctx, conn, "", "transactions/0.parquet", datasetHeader, [][]string{
		{"1", "25.5", "W", "1001", "", "", "visa", "", "debit", "300", "87", "12", "", "gmail.com", ""},
		{"", "3", "W", "", "", "", "", "", "", "", "", "", "", "", ""},
	}, "SNAPPY"))

	txs, err := LoadDataset(ctx, staticResolver{"dataset": conn}, &config.SimulationConfig{
		StorageRef:    "dataset",
		DatasetObject: "transactions/0.parquet",
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "1", tx.ID)
	assert.Equal(t, 25.5, tx.Amount)
	assert.Equal(t, "1001", tx.Card1)
	assert.Equal(t, "visa", tx.Card4)
	require.NotNil(t, tx.Dist1)
	assert.Equal(t, 12.0, *tx.Dist1)
	assert.Nil(t, tx.Dist2)
	assert.Equal(t, "gmail.com", tx.PEmailDomain)
}

func TestSampler_FreshIDs(t *testing.T) {
	s := NewSampler(builtinSample, 1)
	a, b := s.Next(), s.Next()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.Card1)
	assert.Equal(t, "3663549", builtinSample[0].ID)
}
