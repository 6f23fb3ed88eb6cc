package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// MessageSource is the transaction queue.
type MessageSource interface {
	Receive(ctx context.Context) ([]aws.Message, error)
	Delete(ctx context.Context, msgs []aws.Message) error
}

// TransactionWriter persists transactions.
type TransactionWriter interface {
	InsertMany(ctx context.Context, txs []model.Transaction) error
}

// Consumer moves scored transactions from the queue into the store.
type Consumer struct {
	queue MessageSource
	store TransactionWriter
}

// NewConsumer creates a Consumer.
func NewConsumer(queue MessageSource, store TransactionWriter) *Consumer {
	return &Consumer{queue: queue, store: store}
}

// PollOnce receives one batch, stores it and deletes the stored messages.
// Messages that do not decode are deleted without being stored. It returns the
// number of transactions written.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	msgs, err := c.queue.Receive(ctx)
	if err != nil || len(msgs) == 0 {
		return 0, err
	}

	txs := make([]model.Transaction, 0, len(msgs))
	for _, m := range msgs {
		var tx model.Transaction
		if err := json.Unmarshal([]byte(m.Body), &tx); err != nil {
			logger.Warnf("Dropping undecodable message %s: %v", m.ID, err)
			continue
		}
		if tx.ID == "" {
			logger.Warnf("Dropping message %s: transaction has no id", m.ID)
			continue
		}
		txs = append(txs, tx)
	}

	if err := c.store.InsertMany(ctx, txs); err != nil {
		return 0, err
	}
	if err := c.queue.Delete(ctx, msgs); err != nil {
		return 0, err
	}
	logger.Debugf("Persisted %d of %d received transactions.", len(txs), len(msgs))
	return len(txs), nil
}

// Run polls until ctx is done. Failed batches are left on the queue for
// redelivery and polling backs off until a batch succeeds.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = time.Minute
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, err := c.PollOnce(ctx)
		if err == nil {
			b.Reset()
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		wait := b.NextBackOff()
		logger.Errorf("Transaction consumer batch failed, retrying in %s: %v", wait, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
