// Package queue wraps the SQS operations used by the message pump and by
// queue provisioning.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPurgeInProgress  = errors.New("queue: purge already in progress")
	ErrQueueNotFound    = errors.New("queue: queue does not exist")
	ErrInvalidQueueName = errors.New("queue: invalid queue name")
)

const (
	AttributeSentTimestamp          = "SentTimestamp"
	AttributeMessageRetentionPeriod = "MessageRetentionPeriod"

	// MaxBatchSize is the largest batch a single receive may return.
	MaxBatchSize = 10
	// MaxWaitTime is the longest server side long-poll wait.
	MaxWaitTime = 20 * time.Second
)

// Message is a received queue message. SentTimestamp is zero when the
// attribute was not returned.
type Message struct {
	MessageID     string
	ReceiptHandle string
	Body          string
	SentTimestamp time.Time
	Attributes    map[string]string
}

type Client interface {
	GetQueueURL(ctx context.Context, name string) (string, error)
	PurgeQueue(ctx context.Context, queueURL string) error
	ReceiveMessages(ctx context.Context, queueURL string, maxMessages int, waitTime time.Duration) ([]Message, error)
	DeleteMessage(ctx context.Context, queueURL, receiptHandle string) error
	ChangeMessageVisibility(ctx context.Context, queueURL, receiptHandle string, timeout time.Duration) error
	SendMessage(ctx context.Context, queueURL, body string) (string, error)
	CreateQueue(ctx context.Context, name string) (string, error)
	SetQueueAttributes(ctx context.Context, queueURL string, attributes map[string]string) error
}
