package parquet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go/parquet"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	storageconfig "github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/local"
)

type row struct {
	TransactionID *string `parquet:"name=TransactionID, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card1         *string `parquet:"name=card1, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func newConn(t *testing.T) storage.Connection {
	conn, err := local.NewAdapter(storageconfig.StorageConfig{BaseDir: t.TempDir()}, "processed")
	require.NoError(t, err)
	return conn
}

func TestUploadAndReadAll(t *testing.T) {
	ctx := context.Background()
	conn := newConn(t)

	header := []string{"TransactionID", "TransactionAmt", "card1"}
	rows := [][]string{
		{"1", "10.5", "1234"},
		{"2", "3.0", ""},
		{"3", "7.25", "99"},
	}
	require.NoError(t, Upload(ctx, conn, "", "transactions/0.parquet", header, rows, "SNAPPY"))

	got, err := ReadAll[row](ctx, conn, "", "transactions/0.parquet", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", *got[0].TransactionID)
	assert.Equal(t, "1234", *got[0].Card1)
	assert.Nil(t, got[1].Card1)

	limited, err := ReadAll[row](ctx, conn, "", "transactions/0.parquet", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEncodeStrings_RejectsRaggedRows(t *testing.T) {
	_, err := EncodeStrings([]string{"a", "b"}, [][]string{{"1"}}, "NONE")
	assert.ErrorContains(t, err, "row 0 has 1 columns")
}

func TestCompressionCodec(t *testing.T) {
	c, err := CompressionCodec("")
	require.NoError(t, err)
	assert.Equal(t, parquet.CompressionCodec_SNAPPY, c)

	c, err = CompressionCodec("gzip")
	require.NoError(t, err)
	assert.Equal(t, parquet.CompressionCodec_GZIP, c)

	_, err = CompressionCodec("LZ4")
	assert.Error(t, err)
}
