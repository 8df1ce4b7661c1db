// Package provision creates the queues, bucket and lifecycle rule an endpoint
// needs before its pump starts.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/infigaming-com/go-sqs-transport/internal/backoff"
	"github.com/infigaming-com/go-sqs-transport/queue"
)

// BucketAPI is the subset of the S3 client used for bucket setup.
type BucketAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
}

// Bindings are the logical addresses an endpoint sends to and receives from.
type Bindings struct {
	Sending   []string
	Receiving []string
}

type Creator struct {
	queue   queue.Client
	buckets BucketAPI
	opts    options
	logger  *zap.Logger
}

// New returns a Creator. buckets may be nil when no large-message bucket is
// configured.
func New(q queue.Client, buckets BucketAPI, opts ...Option) *Creator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Creator{
		queue:   q,
		buckets: buckets,
		opts:    o,
		logger:  o.logger.With(zap.String("component", "sqs-queue-creator")),
	}
}

// CreateQueues provisions every bound address concurrently. An address bound
// both ways is provisioned once.
func (c *Creator) CreateQueues(ctx context.Context, b Bindings) error {
	addresses := lo.Uniq(append(append([]string{}, b.Sending...), b.Receiving...))

	g, gctx := errgroup.WithContext(ctx)
	for _, address := range addresses {
		g.Go(func() error {
			return c.CreateQueueIfNecessary(gctx, address)
		})
	}
	return g.Wait()
}

// CreateQueueIfNecessary creates the queue for address, applies the retention
// period and, when a bucket is configured, makes sure the bucket and its
// lifecycle rule exist. All steps are idempotent.
func (c *Creator) CreateQueueIfNecessary(ctx context.Context, address string) error {
	if err := c.createQueue(ctx, address); err != nil {
		c.logger.Error("failed to provision queue", zap.String("address", address), zap.Error(err))
		return err
	}
	return nil
}

func (c *Creator) createQueue(ctx context.Context, address string) error {
	name, err := queue.QueueName(c.opts.queueNamePrefix, address)
	if err != nil {
		return err
	}

	if c.opts.locker != nil {
		unlock, err := c.opts.locker.Lock(ctx, provisionLockKeyPrefix+name)
		if err != nil {
			return fmt.Errorf("failed to lock provisioning of %s: %w", name, err)
		}
		defer func() {
			_ = unlock(context.WithoutCancel(ctx))
		}()
	}

	c.logger.Info("creating queue", zap.String("queue", name), zap.String("address", address))
	url, err := c.queue.CreateQueue(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create queue %s: %w", name, err)
	}

	// CreateQueue rejects an existing queue whose attributes differ, so the
	// retention period is applied separately
	retention := c.opts.maxTTLDays * int((24 * time.Hour).Seconds())
	if err := c.queue.SetQueueAttributes(ctx, url, map[string]string{
		queue.AttributeMessageRetentionPeriod: strconv.Itoa(retention),
	}); err != nil {
		return fmt.Errorf("failed to set retention on %s: %w", name, err)
	}

	if c.opts.bucket == "" {
		return nil
	}
	return c.ensureBucket(ctx)
}

func (c *Creator) ensureBucket(ctx context.Context) error {
	if c.buckets == nil {
		return fmt.Errorf("bucket %s configured without an S3 client", c.opts.bucket)
	}
	bucket := c.opts.bucket

	out, err := c.buckets.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return fmt.Errorf("failed to list buckets: %w", err)
	}
	exists := lo.ContainsBy(out.Buckets, func(b types.Bucket) bool {
		return strings.EqualFold(aws.ToString(b.Name), bucket)
	})

	if !exists {
		input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
		if c.opts.region != "" && c.opts.region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(c.opts.region),
			}
		}
		err := c.retryConflicts(ctx, "creating S3 bucket", func() error {
			_, err := c.buckets.CreateBucket(ctx, input)
			var owned *types.BucketAlreadyOwnedByYou
			if errors.As(err, &owned) {
				return nil
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	err = c.retryConflicts(ctx, "setting S3 lifecycle configuration", func() error {
		_, err := c.buckets.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
			Bucket: aws.String(bucket),
			LifecycleConfiguration: &types.BucketLifecycleConfiguration{
				Rules: []types.LifecycleRule{{
					ID:     aws.String(lifecycleRuleID),
					Status: types.ExpirationStatusEnabled,
					Filter: &types.LifecycleRuleFilter{Prefix: aws.String(c.opts.keyPrefix)},
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(int32(c.opts.maxTTLDays)),
					},
				}},
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set lifecycle on bucket %s: %w", bucket, err)
	}
	return nil
}

// retryConflicts runs fn until it succeeds, fails with anything but a
// conflict, or the retries are spent.
func (c *Creator) retryConflicts(ctx context.Context, action string, fn func() error) error {
	bo := backoff.New(backoff.Config{
		Initial: c.opts.conflictInitial,
		Max:     c.opts.conflictMax,
		Jitter:  0.2,
	})

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isConflict(err) || attempt >= c.opts.conflictRetries {
			return err
		}

		delay := bo.Next()
		c.logger.Warn("conflict when "+action+", retrying",
			zap.Duration("after", delay), zap.Int("attempt", attempt+1), zap.Error(err))

		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return ctx.Err()
		case <-tmr.C:
		}
	}
}

func isConflict(err error) bool {
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) && status.HTTPStatusCode() == http.StatusConflict {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "OperationAborted", "Conflict":
			return true
		}
	}
	return false
}
