package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmadvisory/internal/config"
	"farmadvisory/internal/types"
)

const testQueueURL = "https://sqs.af-south-1.amazonaws.com/123456789/farm-advisories"

// mockSQSClient captures calls for test assertions.
type mockSQSClient struct {
	sent      []*sqs.SendMessageInput
	batches   []*sqs.SendMessageBatchInput
	attrCalls int

	err      error
	failIDs  map[string]bool
	attrsErr error
}

func (m *mockSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, nil
}

func (m *mockSQSClient) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	m.batches = append(m.batches, params)
	if m.err != nil {
		return nil, m.err
	}
	out := &sqs.SendMessageBatchOutput{}
	for _, e := range params.Entries {
		if m.failIDs[aws.ToString(e.Id)] {
			out.Failed = append(out.Failed, sqsTypes.BatchResultErrorEntry{
				Id:      e.Id,
				Code:    aws.String("InvalidParameterValue"),
				Message: aws.String("rejected"),
			})
			continue
		}
		out.Successful = append(out.Successful, sqsTypes.SendMessageBatchResultEntry{Id: e.Id})
	}
	return out, nil
}

func (m *mockSQSClient) GetQueueAttributes(_ context.Context, params *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	m.attrCalls++
	if m.attrsErr != nil {
		return nil, m.attrsErr
	}
	return &sqs.GetQueueAttributesOutput{}, nil
}

func newTestPublisher(mock *mockSQSClient) *AdvisoryPublisher {
	return NewAdvisoryPublisher(mock, config.AWSConfig{AdvisoryQueueURL: testQueueURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleMessage(farmID string) *types.AdvisoryMessage {
	return &types.AdvisoryMessage{
		FarmID:   farmID,
		Location: types.Location{Lat: -0.367, Lon: 35.2831},
		Source:   "simulated",
		Advisory: types.AdvisoryResult{
			Season:    types.SeasonLongRains,
			FloodRisk: types.FloodRisk{Value: 64, Bucket: types.RiskHigh},
		},
	}
}

func TestPublish(t *testing.T) {
	mock := &mockSQSClient{}
	pub := newTestPublisher(mock)
	msg := sampleMessage("farm_1")

	require.NoError(t, pub.Publish(context.Background(), msg, "scheduled"))
	require.Len(t, mock.sent, 1)

	in := mock.sent[0]
	assert.Equal(t, testQueueURL, aws.ToString(in.QueueUrl))
	assert.True(t, strings.HasPrefix(msg.MessageID, "adv_"))

	var decoded types.AdvisoryMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &decoded))
	assert.Equal(t, msg.MessageID, decoded.MessageID)
	assert.Equal(t, "farm_1", decoded.FarmID)
	assert.Equal(t, 64, decoded.Advisory.FloodRisk.Value)

	assert.Equal(t, "scheduled", aws.ToString(in.MessageAttributes["reason"].StringValue))
	assert.Equal(t, "High", aws.ToString(in.MessageAttributes["risk_bucket"].StringValue))
	assert.Equal(t, "farm_1", aws.ToString(in.MessageAttributes["farm_id"].StringValue))
}

func TestPublish_KeepsExistingIDAndOmitsEmptyFarm(t *testing.T) {
	mock := &mockSQSClient{}
	msg := sampleMessage("")
	msg.MessageID = "adv_fixed"

	require.NoError(t, newTestPublisher(mock).Publish(context.Background(), msg, "manual"))
	assert.Equal(t, "adv_fixed", msg.MessageID)
	_, hasFarm := mock.sent[0].MessageAttributes["farm_id"]
	assert.False(t, hasFarm)
}

func TestPublish_SendError(t *testing.T) {
	mock := &mockSQSClient{err: errors.New("AccessDenied")}
	err := newTestPublisher(mock).Publish(context.Background(), sampleMessage("farm_1"), "scheduled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestPublishBatch_ChunksByTen(t *testing.T) {
	mock := &mockSQSClient{}
	msgs := make([]*types.AdvisoryMessage, 23)
	for i := range msgs {
		msgs[i] = sampleMessage("farm")
	}

	require.NoError(t, newTestPublisher(mock).PublishBatch(context.Background(), msgs, "scheduled"))
	require.Len(t, mock.batches, 3)
	assert.Len(t, mock.batches[0].Entries, 10)
	assert.Len(t, mock.batches[1].Entries, 10)
	assert.Len(t, mock.batches[2].Entries, 3)
	assert.Equal(t, "22", aws.ToString(mock.batches[2].Entries[2].Id))
	for _, m := range msgs {
		assert.NotEmpty(t, m.MessageID)
	}
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	mock := &mockSQSClient{failIDs: map[string]bool{"1": true}}
	msgs := []*types.AdvisoryMessage{sampleMessage("a"), sampleMessage("b"), sampleMessage("c")}

	err := newTestPublisher(mock).PublishBatch(context.Background(), msgs, "scheduled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Contains(t, err.Error(), msgs[1].MessageID)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Sent)
	assert.Equal(t, 3, batchErr.Total)
	assert.Equal(t, []string{msgs[1].MessageID}, batchErr.Rejected)
}

func TestPublishBatch_SendErrorReportsEarlierChunks(t *testing.T) {
	mock := &failingAfterSQSClient{okCalls: 1}
	msgs := make([]*types.AdvisoryMessage, 15)
	for i := range msgs {
		msgs[i] = sampleMessage("farm")
	}

	pub := NewAdvisoryPublisher(mock, config.AWSConfig{AdvisoryQueueURL: testQueueURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := pub.PublishBatch(context.Background(), msgs, "scheduled")
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 10, batchErr.Sent)
	assert.Equal(t, 15, batchErr.Total)
	assert.Empty(t, batchErr.Rejected)
	assert.Contains(t, err.Error(), "ServiceUnavailable")
}

// failingAfterSQSClient accepts the first okCalls batches and then errors.
type failingAfterSQSClient struct {
	mockSQSClient
	okCalls int
}

func (m *failingAfterSQSClient) SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	if len(m.batches) >= m.okCalls {
		m.batches = append(m.batches, params)
		return nil, errors.New("ServiceUnavailable")
	}
	return m.mockSQSClient.SendMessageBatch(ctx, params, optFns...)
}

func TestPublishBatch_Empty(t *testing.T) {
	mock := &mockSQSClient{}
	require.NoError(t, newTestPublisher(mock).PublishBatch(context.Background(), nil, "scheduled"))
	assert.Empty(t, mock.batches)
}

func TestCheck(t *testing.T) {
	mock := &mockSQSClient{}
	pub := newTestPublisher(mock)
	assert.Equal(t, "sqs_advisory_queue", pub.Name())
	assert.NoError(t, pub.Check(context.Background()))

	mock.attrsErr = errors.New("NonExistentQueue")
	assert.Error(t, pub.Check(context.Background()))
	assert.Equal(t, 2, mock.attrCalls)
}

func TestLogPublisher(t *testing.T) {
	pub := NewLogPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	msgs := []*types.AdvisoryMessage{sampleMessage("a"), sampleMessage("")}
	require.NoError(t, pub.PublishBatch(context.Background(), msgs, "manual"))
	assert.NotEmpty(t, msgs[0].MessageID)
	assert.NotEmpty(t, msgs[1].MessageID)
}
