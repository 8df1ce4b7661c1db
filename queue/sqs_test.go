package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/coocood/freecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infigaming-com/go-sqs-transport/cache"
)

type mockSQSAPI struct {
	getQueueURLCalls int
	getQueueURLFunc  func(ctx context.Context, params *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error)
	purgeFunc        func(ctx context.Context, params *sqs.PurgeQueueInput) (*sqs.PurgeQueueOutput, error)
	receiveFunc      func(ctx context.Context, params *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	deleteInputs     []*sqs.DeleteMessageInput
	visibilityInputs []*sqs.ChangeMessageVisibilityInput
	setAttrInputs    []*sqs.SetQueueAttributesInput
	createInputs     []*sqs.CreateQueueInput
}

func (m *mockSQSAPI) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	m.getQueueURLCalls++
	if m.getQueueURLFunc != nil {
		return m.getQueueURLFunc(ctx, params)
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/000/" + aws.ToString(params.QueueName))}, nil
}

func (m *mockSQSAPI) PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, _ ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error) {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, params)
	}
	return &sqs.PurgeQueueOutput{}, nil
}

func (m *mockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if m.receiveFunc != nil {
		return m.receiveFunc(ctx, params)
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSAPI) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.deleteInputs = append(m.deleteInputs, params)
	return &sqs.DeleteMessageOutput{}, nil
}

func (m *mockSQSAPI) ChangeMessageVisibility(_ context.Context, params *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	m.visibilityInputs = append(m.visibilityInputs, params)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (m *mockSQSAPI) SendMessage(_ context.Context, _ *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{MessageId: aws.String("sent-1")}, nil
}

func (m *mockSQSAPI) CreateQueue(_ context.Context, params *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	m.createInputs = append(m.createInputs, params)
	return &sqs.CreateQueueOutput{QueueUrl: aws.String("https://sqs.local/000/" + aws.ToString(params.QueueName))}, nil
}

func (m *mockSQSAPI) SetQueueAttributes(_ context.Context, params *sqs.SetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	m.setAttrInputs = append(m.setAttrInputs, params)
	return &sqs.SetQueueAttributesOutput{}, nil
}

func TestReceiveMessages(t *testing.T) {
	ctx := context.Background()
	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		max       int
		wait      time.Duration
		output    *sqs.ReceiveMessageOutput
		wantMax   int32
		wantWait  int32
		wantCount int
		wantSent  time.Time
	}{
		{
			name: "maps messages and sent timestamp",
			max:  5,
			wait: 20 * time.Second,
			output: &sqs.ReceiveMessageOutput{Messages: []types.Message{
				{
					MessageId:     aws.String("m-1"),
					ReceiptHandle: aws.String("rh-1"),
					Body:          aws.String("{}"),
					Attributes:    map[string]string{"SentTimestamp": "1772366400000"},
				},
			}},
			wantMax:   5,
			wantWait:  20,
			wantCount: 1,
			wantSent:  sent,
		},
		{
			name: "clamps batch size and wait time",
			max:  50,
			wait: time.Minute,
			output: &sqs.ReceiveMessageOutput{Messages: []types.Message{
				{MessageId: aws.String("m-1"), ReceiptHandle: aws.String("rh-1"), Body: aws.String("{}")},
			}},
			wantMax:   10,
			wantWait:  20,
			wantCount: 1,
		},
		{
			name: "skips incomplete messages",
			max:  0,
			output: &sqs.ReceiveMessageOutput{Messages: []types.Message{
				{MessageId: aws.String("m-1")},
				{ReceiptHandle: aws.String("rh-2")},
			}},
			wantMax:   1,
			wantWait:  0,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *sqs.ReceiveMessageInput
			api := &mockSQSAPI{receiveFunc: func(_ context.Context, params *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
				got = params
				return tt.output, nil
			}}
			c := NewFromAPI(api)

			msgs, err := c.ReceiveMessages(ctx, "url", tt.max, tt.wait)
			require.NoError(t, err)
			require.Len(t, msgs, tt.wantCount)
			assert.Equal(t, tt.wantMax, got.MaxNumberOfMessages)
			assert.Equal(t, tt.wantWait, got.WaitTimeSeconds)
			assert.Contains(t, got.MessageSystemAttributeNames, types.MessageSystemAttributeNameSentTimestamp)
			if tt.wantCount > 0 {
				assert.Equal(t, "m-1", msgs[0].MessageID)
				assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
				assert.True(t, tt.wantSent.Equal(msgs[0].SentTimestamp))
			}
		})
	}
}

func TestPurgeQueue_ClassifiesInProgress(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "typed error",
			err:  &types.PurgeQueueInProgress{Message: aws.String("only one purge per 60s")},
			want: ErrPurgeInProgress,
		},
		{
			name: "legacy error code",
			err:  &smithy.GenericAPIError{Code: purgeInProgressCode, Message: "busy"},
			want: ErrPurgeInProgress,
		},
		{
			name: "missing queue",
			err:  &types.QueueDoesNotExist{Message: aws.String("nope")},
			want: ErrQueueNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSQSAPI{purgeFunc: func(context.Context, *sqs.PurgeQueueInput) (*sqs.PurgeQueueOutput, error) {
				return nil, tt.err
			}}
			err := NewFromAPI(api).PurgeQueue(context.Background(), "url")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPurgeQueue_OtherErrorsPassThrough(t *testing.T) {
	boom := errors.New("access denied")
	api := &mockSQSAPI{purgeFunc: func(context.Context, *sqs.PurgeQueueInput) (*sqs.PurgeQueueOutput, error) {
		return nil, boom
	}}

	err := NewFromAPI(api).PurgeQueue(context.Background(), "url")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPurgeInProgress)
}

func TestGetQueueURL_Cache(t *testing.T) {
	ctx := context.Background()
	api := &mockSQSAPI{}
	c := NewFromAPI(api, WithURLCache(cache.NewFreeCache(freecache.NewCache(1024*1024)), time.Minute))

	url, err := c.GetQueueURL(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.local/000/orders", url)

	url, err = c.GetQueueURL(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.local/000/orders", url)
	assert.Equal(t, 1, api.getQueueURLCalls)
}

func TestGetQueueURL_NotFound(t *testing.T) {
	api := &mockSQSAPI{getQueueURLFunc: func(context.Context, *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error) {
		return nil, &types.QueueDoesNotExist{Message: aws.String("missing")}
	}}

	_, err := NewFromAPI(api).GetQueueURL(context.Background(), "orders")
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestDeleteAndChangeVisibility(t *testing.T) {
	ctx := context.Background()
	api := &mockSQSAPI{}
	c := NewFromAPI(api)

	require.NoError(t, c.DeleteMessage(ctx, "url", "rh-1"))
	require.NoError(t, c.ChangeMessageVisibility(ctx, "url", "rh-2", 0))

	require.Len(t, api.deleteInputs, 1)
	assert.Equal(t, "rh-1", aws.ToString(api.deleteInputs[0].ReceiptHandle))
	require.Len(t, api.visibilityInputs, 1)
	assert.Equal(t, "rh-2", aws.ToString(api.visibilityInputs[0].ReceiptHandle))
	assert.Equal(t, int32(0), api.visibilityInputs[0].VisibilityTimeout)
}

func TestCreateQueueAndAttributes(t *testing.T) {
	ctx := context.Background()
	api := &mockSQSAPI{}
	c := NewFromAPI(api)

	url, err := c.CreateQueue(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, c.SetQueueAttributes(ctx, url, map[string]string{AttributeMessageRetentionPeriod: "345600"}))

	require.Len(t, api.setAttrInputs, 1)
	assert.Equal(t, "345600", api.setAttrInputs[0].Attributes[AttributeMessageRetentionPeriod])
}
