// Package parquet converts between row data and parquet files held in object storage.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// ContentType is used for uploaded parquet objects.
const ContentType = "application/octet-stream"

// CompressionCodec maps a configured name to a parquet codec. Empty means SNAPPY.
func CompressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "", "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return parquet.CompressionCodec_UNCOMPRESSED, fmt.Errorf("unsupported compression type: %s", name)
	}
}

// StringSchema returns CSV writer metadata declaring every column as an optional UTF8 string.
func StringSchema(header []string) []string {
	md := make([]string, len(header))
	for i, col := range header {
		md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", col)
	}
	return md
}

// EncodeStrings writes rows as one parquet file with the string schema of header.
// Empty cells become nulls.
func EncodeStrings(header []string, rows [][]string, compression string) (*bytes.Buffer, error) {
	codec, err := CompressionCodec(compression)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewCSVWriterFromWriter(StringSchema(header), buf, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	var result error
	for i, row := range rows {
		if len(row) != len(header) {
			result = multierror.Append(result, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), len(header)))
			continue
		}
		rec := make([]*string, len(row))
		for j := range row {
			if row[j] != "" {
				v := row[j]
				rec[j] = &v
			}
		}
		if err := pw.WriteString(rec); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to write row %d: %w", i, err))
		}
	}
	if err := pw.WriteStop(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to finalize parquet file: %w", err))
	}
	if result != nil {
		return nil, result
	}
	return buf, nil
}

// Upload encodes rows and stores them at bucket/objectName.
func Upload(ctx context.Context, conn storage.Connection, bucket, objectName string, header []string, rows [][]string, compression string) error {
	buf, err := EncodeStrings(header, rows, compression)
	if err != nil {
		return err
	}
	size := buf.Len()
	if err := conn.Upload(ctx, bucket, objectName, buf, ContentType); err != nil {
		return fmt.Errorf("failed to upload '%s': %w", objectName, err)
	}
	logger.Debugf("Uploaded %d rows (%d bytes) to '%s' on '%s'.", len(rows), size, objectName, conn.Name())
	return nil
}

// ReadAll downloads bucket/objectName and decodes up to limit rows into T,
// whose parquet tags name the columns to read. limit <= 0 reads every row.
func ReadAll[T any](ctx context.Context, conn storage.Connection, bucket, objectName string, limit int) ([]T, error) {
	path, err := download(ctx, conn, bucket, objectName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file '%s': %w", objectName, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet footer of '%s': %w", objectName, err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if limit > 0 && limit < n {
		n = limit
	}
	rows := make([]T, n)
	if n == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read rows of '%s': %w", objectName, err)
	}
	return rows, nil
}

// download copies an object into a temporary file, as the parquet reader needs random access.
func download(ctx context.Context, conn storage.Connection, bucket, objectName string) (string, error) {
	rc, err := conn.Download(ctx, bucket, objectName)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "fraudflow-*.parquet")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to download '%s': %w", objectName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
