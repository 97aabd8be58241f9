package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/logger"
)

// CompletionEvent is the payload delivered to the completion queue.
// Its signature matches spec.md §6: (user_id, check_type, batch_id, title).
type CompletionEvent struct {
	UserID    string           `json:"user_id"`
	CheckType domain.CheckType `json:"check_type"`
	BatchID   int64            `json:"batch_id"`
	Title     string           `json:"title"`
	FiredAt   time.Time        `json:"fired_at"`
}

// Publisher is the SQS-backed completion notifier.
type Publisher struct {
	client   *sqs.Client
	queueURL string
}

// NewPublisher creates a Publisher against the given SQS queue.
func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// NotifyCompletion enqueues a CompletionEvent. Delivery failures are
// logged and never revert the batch's completion (spec.md §4.7).
func (p *Publisher) NotifyCompletion(ctx context.Context, userID string, checkType domain.CheckType, batchID int64, title string) error {
	body, err := json.Marshal(CompletionEvent{
		UserID: userID, CheckType: checkType, BatchID: batchID, Title: title, FiredAt: time.Now(),
	})
	if err != nil {
		logger.Error("notify marshal completion event failed", "batch_id", batchID, "error", err)
		return nil
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(sendCtx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("notify publish completion failed", "batch_id", batchID, "error", err)
		}
	}()

	return nil
}
