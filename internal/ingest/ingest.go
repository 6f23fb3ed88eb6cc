// Package ingest converts the raw transaction and identity CSV exports into
// chunked parquet files for the ETL job.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/parquet"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// ConnectionResolver returns a named storage connection.
type ConnectionResolver interface {
	GetConnection(ctx context.Context, name string) (storage.Connection, error)
}

// Result counts the chunks written per dataset.
type Result struct {
	TransactionChunks int `json:"transactionChunks"`
	IdentityChunks    int `json:"identityChunks"`
}

// Job is the ingest job.
type Job struct {
	resolver ConnectionResolver
	cfg      *config.IngestConfig
}

// NewJob creates a Job.
func NewJob(resolver ConnectionResolver, cfg *config.IngestConfig) *Job {
	return &Job{resolver: resolver, cfg: cfg}
}

// Run ingests the transactions file, then the identity file.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if j.cfg.ChunkSize <= 0 {
		return nil, exception.NewValidationError("ingest", fmt.Sprintf("chunk size must be positive, got %d", j.cfg.ChunkSize), nil)
	}
	src, err := j.resolver.GetConnection(ctx, j.cfg.SourceStorageRef)
	if err != nil {
		return nil, err
	}
	dst, err := j.resolver.GetConnection(ctx, j.cfg.TargetStorageRef)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	logger.Infof("Ingest transactions from '%s'.", j.cfg.TransactionsObject)
	if result.TransactionChunks, err = j.convert(ctx, src, dst, j.cfg.TransactionsObject, j.cfg.TransactionPrefix); err != nil {
		return nil, err
	}
	logger.Infof("Ingest identities from '%s'.", j.cfg.IdentityObject)
	if result.IdentityChunks, err = j.convert(ctx, src, dst, j.cfg.IdentityObject, j.cfg.IdentityPrefix); err != nil {
		return nil, err
	}
	return result, nil
}

// convert streams objectName and writes every ChunkSize rows to <prefix>/<i>.parquet.
func (j *Job) convert(ctx context.Context, src, dst storage.Connection, objectName, prefix string) (int, error) {
	rc, err := src.Download(ctx, "", objectName)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return 0, exception.NewValidationError("ingest", fmt.Sprintf("failed to read header of '%s'", objectName), err)
	}

	chunks := 0
	rows := make([][]string, 0, j.cfg.ChunkSize)
	flush := func() error {
		target := path.Join(prefix, fmt.Sprintf("%d.parquet", chunks))
		logger.Infof("Dumping %d records to %s.", len(rows), target)
		if err := parquet.Upload(ctx, dst, "", target, header, rows, j.cfg.Compression); err != nil {
			return err
		}
		chunks++
		rows = rows[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return chunks, exception.NewValidationError("ingest", fmt.Sprintf("malformed CSV in '%s'", objectName), err)
		}
		rows = append(rows, record)
		if len(rows) == j.cfg.ChunkSize {
			if err := flush(); err != nil {
				return chunks, err
			}
		}
	}
	if len(rows) > 0 {
		if err := flush(); err != nil {
			return chunks, err
		}
	}
	return chunks, nil
}
