package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Message is a received queue message.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
}

// Queue sends and receives transaction messages.
type Queue struct {
	api SQSAPI
	cfg *config.QueueConfig
}

// NewQueue creates a Queue over cfg.URL.
func NewQueue(api SQSAPI, cfg *config.QueueConfig) *Queue {
	return &Queue{api: api, cfg: cfg}
}

func (q *Queue) fifo() bool {
	return strings.HasSuffix(q.cfg.URL, ".fifo")
}

// Send enqueues body. On a FIFO queue the message goes to the configured
// group and dedupID suppresses duplicates.
func (q *Queue) Send(ctx context.Context, body string, dedupID string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.cfg.URL),
		MessageBody: aws.String(body),
	}
	if q.fifo() {
		input.MessageGroupId = aws.String(q.cfg.MessageGroupID)
		input.MessageDeduplicationId = aws.String(dedupID)
	}
	out, err := q.api.SendMessage(ctx, input)
	if err != nil {
		return "", exception.NewFlowErrorf("sqs", "failed to send message", Classify(err))
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for up to MaxMessages messages.
func (q *Queue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.cfg.URL),
		MaxNumberOfMessages: int32(q.cfg.MaxMessages),
		WaitTimeSeconds:     int32(q.cfg.WaitTimeSeconds),
		VisibilityTimeout:   int32(q.cfg.VisibilityTimeout),
	})
	if err != nil {
		return nil, exception.NewFlowErrorf("sqs", "failed to receive messages", Classify(err))
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		})
	}
	return msgs, nil
}

// Delete removes msgs in one batch. Entries the service rejects are logged
// and left for redelivery.
func (q *Queue) Delete(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
			Id:            aws.String(m.ID),
			ReceiptHandle: aws.String(m.ReceiptHandle),
		})
	}
	out, err := q.api.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(q.cfg.URL),
		Entries:  entries,
	})
	if err != nil {
		return exception.NewFlowErrorf("sqs", "failed to delete %d messages", len(msgs), Classify(err))
	}
	for _, f := range out.Failed {
		logger.Warnf("Failed to delete message %s: %s %s", aws.ToString(f.Id), aws.ToString(f.Code), aws.ToString(f.Message))
	}
	return nil
}
