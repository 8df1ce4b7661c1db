package provision

import (
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/locker"
)

const (
	defaultMaxTTLDays      = 4
	defaultConflictRetry   = 5
	lifecycleRuleID        = "sqs-transport.delete-message-bodies"
	provisionLockKeyPrefix = "provision:"
)

type Option func(*options)

type options struct {
	logger          *zap.Logger
	queueNamePrefix string
	bucket          string
	keyPrefix       string
	region          string
	maxTTLDays      int
	locker          locker.Locker
	conflictRetries int
	conflictInitial time.Duration
	conflictMax     time.Duration
}

func defaultOptions() options {
	return options{
		logger:          zap.NewNop(),
		maxTTLDays:      defaultMaxTTLDays,
		conflictRetries: defaultConflictRetry,
		conflictInitial: 500 * time.Millisecond,
		conflictMax:     10 * time.Second,
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueNamePrefix is prepended to every address before it is sanitized.
func WithQueueNamePrefix(prefix string) Option {
	return func(o *options) {
		o.queueNamePrefix = prefix
	}
}

// WithBucket enables large-message provisioning: the bucket is created when
// missing and objects under keyPrefix expire after MaxTTLDays.
func WithBucket(bucket, keyPrefix string) Option {
	return func(o *options) {
		o.bucket = bucket
		o.keyPrefix = keyPrefix
	}
}

// WithRegion sets the location constraint for new buckets. us-east-1 takes
// none.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

func WithMaxTTLDays(days int) Option {
	return func(o *options) {
		if days > 0 {
			o.maxTTLDays = days
		}
	}
}

// WithLocker serializes provisioning of a queue name across processes.
func WithLocker(l locker.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithConflictRetry bounds the retries of S3 writes rejected with a conflict.
func WithConflictRetry(retries int, initial, max time.Duration) Option {
	return func(o *options) {
		if retries > 0 {
			o.conflictRetries = retries
		}
		if initial > 0 {
			o.conflictInitial = initial
		}
		if max > 0 {
			o.conflictMax = max
		}
	}
}
