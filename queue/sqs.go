package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/cache"
)

const (
	urlCacheKeyPrefix    = "sqs:queue-url:"
	nonExistentQueueCode = "AWS.SimpleQueueService.NonExistentQueue"
	purgeInProgressCode  = "AWS.SimpleQueueService.PurgeQueueInProgress"
)

// sqsAPI is the subset of the SQS client used by SQSClient.
type sqsAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
}

var _ Client = (*SQSClient)(nil)

type SQSClient struct {
	api  sqsAPI
	opts options
}

func New(cfg aws.Config, opts ...Option) *SQSClient {
	return NewFromAPI(sqs.NewFromConfig(cfg), opts...)
}

// NewWithEndpoint builds a client against a custom endpoint such as
// LocalStack or ElasticMQ.
func NewWithEndpoint(cfg aws.Config, endpoint string, opts ...Option) *SQSClient {
	return NewFromAPI(sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), opts...)
}

func NewFromAPI(api sqsAPI, opts ...Option) *SQSClient {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQSClient{api: api, opts: o}
}

func (c *SQSClient) GetQueueURL(ctx context.Context, name string) (string, error) {
	if c.opts.urlCache != nil {
		url, err := c.opts.urlCache.Get(ctx, urlCacheKeyPrefix+name)
		if err == nil && url != "" {
			return url, nil
		}
		if err != nil && !errors.Is(err, cache.ErrKeyNotFound) {
			c.opts.logger.Warn("queue url cache lookup failed", zap.String("queue", name), zap.Error(err))
		}
	}

	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue %s: %w", name, classify(err))
	}
	url := aws.ToString(out.QueueUrl)

	if c.opts.urlCache != nil {
		if err := c.opts.urlCache.Set(ctx, urlCacheKeyPrefix+name, url, c.opts.urlTTL); err != nil {
			c.opts.logger.Warn("failed to cache queue url", zap.String("queue", name), zap.Error(err))
		}
	}
	return url, nil
}

func (c *SQSClient) PurgeQueue(ctx context.Context, queueURL string) error {
	_, err := c.api.PurgeQueue(ctx, &sqs.PurgeQueueInput{QueueUrl: aws.String(queueURL)})
	if err != nil {
		return fmt.Errorf("failed to purge queue %s: %w", queueURL, classify(err))
	}
	return nil
}

// ReceiveMessages long-polls for up to maxMessages messages. maxMessages is
// clamped to 1..MaxBatchSize and waitTime to MaxWaitTime.
func (c *SQSClient) ReceiveMessages(ctx context.Context, queueURL string, maxMessages int, waitTime time.Duration) ([]Message, error) {
	maxMessages = lo.Clamp(maxMessages, 1, MaxBatchSize)
	waitTime = lo.Clamp(waitTime, 0, MaxWaitTime)

	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(queueURL),
		MaxNumberOfMessages:         int32(maxMessages),
		WaitTimeSeconds:             int32(waitTime / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameSentTimestamp},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", classify(err))
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		if m.MessageId == nil || m.ReceiptHandle == nil {
			continue
		}
		messages = append(messages, Message{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			SentTimestamp: parseSentTimestamp(m.Attributes[AttributeSentTimestamp]),
			Attributes:    m.Attributes,
		})
	}
	if len(messages) > 0 {
		c.opts.logger.Debug("received messages", zap.String("queue_url", queueURL), zap.Int("count", len(messages)))
	}
	return messages, nil
}

func (c *SQSClient) DeleteMessage(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", classify(err))
	}
	return nil
}

func (c *SQSClient) ChangeMessageVisibility(ctx context.Context, queueURL, receiptHandle string, timeout time.Duration) error {
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout / time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to change message visibility: %w", classify(err))
	}
	return nil
}

func (c *SQSClient) SendMessage(ctx context.Context, queueURL, body string) (string, error) {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", classify(err))
	}
	return aws.ToString(out.MessageId), nil
}

// CreateQueue creates the queue or returns the URL of an existing queue with
// the same name.
func (c *SQSClient) CreateQueue(ctx context.Context, name string) (string, error) {
	out, err := c.api.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to create queue %s: %w", name, classify(err))
	}
	return aws.ToString(out.QueueUrl), nil
}

func (c *SQSClient) SetQueueAttributes(ctx context.Context, queueURL string, attributes map[string]string) error {
	_, err := c.api.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(queueURL),
		Attributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to set attributes on %s: %w", queueURL, classify(err))
	}
	return nil
}

// classify maps provider errors onto package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	var purge *types.PurgeQueueInProgress
	if errors.As(err, &purge) {
		return fmt.Errorf("%w: %w", ErrPurgeInProgress, err)
	}
	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return fmt.Errorf("%w: %w", ErrQueueNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case purgeInProgressCode:
			return fmt.Errorf("%w: %w", ErrPurgeInProgress, err)
		case nonExistentQueueCode:
			return fmt.Errorf("%w: %w", ErrQueueNotFound, err)
		}
	}
	return err
}

func parseSentTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
