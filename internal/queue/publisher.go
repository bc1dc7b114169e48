// Package queue publishes computed advisories to SQS for downstream
// consumers such as notification fan-out.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"farmadvisory/internal/config"
	"farmadvisory/internal/types"
)

// maxBatchEntries is the SQS limit for SendMessageBatch.
const maxBatchEntries = 10

// SQSClient abstracts the SQS operations used by the publisher.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Publisher sends AdvisoryMessages somewhere.
type Publisher interface {
	Publish(ctx context.Context, msg *types.AdvisoryMessage, reason string) error
	PublishBatch(ctx context.Context, msgs []*types.AdvisoryMessage, reason string) error
}

var (
	_ Publisher = (*AdvisoryPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)

// AdvisoryPublisher serializes AdvisoryMessages to JSON and sends them to
// the advisory queue.
type AdvisoryPublisher struct {
	client   SQSClient
	queueURL string
	logger   *slog.Logger
}

// NewAdvisoryPublisher creates a publisher for the queue in awsCfg.
func NewAdvisoryPublisher(client SQSClient, awsCfg config.AWSConfig, logger *slog.Logger) *AdvisoryPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryPublisher{
		client:   client,
		queueURL: awsCfg.AdvisoryQueueURL,
		logger:   logger,
	}
}

// Publish sends one message. A missing MessageID is filled in.
func (p *AdvisoryPublisher) Publish(ctx context.Context, msg *types.AdvisoryMessage, reason string) error {
	ensureID(msg)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal AdvisoryMessage: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes(msg, reason),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send AdvisoryMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "advisory message sent",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"farm_id", msg.FarmID,
		"risk_bucket", string(msg.Advisory.FloodRisk.Bucket),
		"reason", reason,
	)
	return nil
}

// BatchError reports a PublishBatch call that did not deliver every message.
// Sent counts the messages SQS accepted before or despite the failure.
type BatchError struct {
	Sent     int
	Total    int
	Rejected []string // message IDs rejected by SQS
	Err      error    // error that stopped the batch early, if any
}

func (e *BatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue: advisory batch stopped after %d of %d messages: %v", e.Sent, e.Total, e.Err)
	}
	return fmt.Sprintf("queue: %d of %d advisory messages rejected: %v", len(e.Rejected), e.Total, e.Rejected)
}

func (e *BatchError) Unwrap() error { return e.Err }

// PublishBatch sends messages in groups of ten. Entries rejected by SQS, or
// a failure part way through, are reported as a *BatchError; accepted
// entries stay sent.
func (p *AdvisoryPublisher) PublishBatch(ctx context.Context, msgs []*types.AdvisoryMessage, reason string) error {
	batchErr := &BatchError{Total: len(msgs)}

	for start := 0; start < len(msgs); start += maxBatchEntries {
		end := min(start+maxBatchEntries, len(msgs))
		entries := make([]sqsTypes.SendMessageBatchRequestEntry, 0, end-start)
		for i, msg := range msgs[start:end] {
			ensureID(msg)
			body, err := json.Marshal(msg)
			if err != nil {
				batchErr.Err = fmt.Errorf("marshal AdvisoryMessage %s: %w", msg.MessageID, err)
				return batchErr
			}
			entries = append(entries, sqsTypes.SendMessageBatchRequestEntry{
				Id:                aws.String(strconv.Itoa(start + i)),
				MessageBody:       aws.String(string(body)),
				MessageAttributes: attributes(msg, reason),
			})
		}

		out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			batchErr.Err = fmt.Errorf("send to %s: %w", p.queueURL, err)
			return batchErr
		}
		batchErr.Sent += len(entries) - len(out.Failed)
		for _, f := range out.Failed {
			idx, _ := strconv.Atoi(aws.ToString(f.Id))
			batchErr.Rejected = append(batchErr.Rejected, msgs[idx].MessageID)
			p.logger.WarnContext(ctx, "advisory message rejected",
				"message_id", msgs[idx].MessageID,
				"code", aws.ToString(f.Code),
				"error", aws.ToString(f.Message),
			)
		}
	}

	p.logger.InfoContext(ctx, "advisory batch sent",
		"queue_url", p.queueURL,
		"messages", len(msgs),
		"failed", len(batchErr.Rejected),
		"reason", reason,
	)
	if len(batchErr.Rejected) > 0 {
		return batchErr
	}
	return nil
}

// Name implements core.HealthProbe.
func (p *AdvisoryPublisher) Name() string { return "sqs_advisory_queue" }

// Check implements core.HealthProbe by reading the queue depth.
func (p *AdvisoryPublisher) Check(ctx context.Context) error {
	_, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []sqsTypes.QueueAttributeName{sqsTypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("queue: get attributes: %w", err)
	}
	return nil
}

func ensureID(msg *types.AdvisoryMessage) {
	if msg.MessageID == "" {
		msg.MessageID = "adv_" + uuid.NewString()
	}
}

func attributes(msg *types.AdvisoryMessage, reason string) map[string]sqsTypes.MessageAttributeValue {
	attrs := map[string]sqsTypes.MessageAttributeValue{
		"reason": {
			DataType:    aws.String("String"),
			StringValue: aws.String(reason),
		},
		"risk_bucket": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(msg.Advisory.FloodRisk.Bucket)),
		},
	}
	if msg.FarmID != "" {
		attrs["farm_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(msg.FarmID),
		}
	}
	return attrs
}

// LogPublisher logs messages instead of sending them. It is used when no
// advisory queue is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(ctx context.Context, msg *types.AdvisoryMessage, reason string) error {
	ensureID(msg)
	l.logger.InfoContext(ctx, "advisory computed",
		"message_id", msg.MessageID,
		"farm_id", msg.FarmID,
		"flood_risk", msg.Advisory.FloodRisk.Value,
		"risk_bucket", string(msg.Advisory.FloodRisk.Bucket),
		"season", string(msg.Advisory.Season),
		"reason", reason,
	)
	return nil
}

func (l *LogPublisher) PublishBatch(ctx context.Context, msgs []*types.AdvisoryMessage, reason string) error {
	for _, m := range msgs {
		if err := l.Publish(ctx, m, reason); err != nil {
			return err
		}
	}
	return nil
}
