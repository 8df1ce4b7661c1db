// Package config holds the settings of an SQS endpoint: AWS access, queue
// naming, large-message storage and pump tuning.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const envPrefix = "SQS_"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Region          string `mapstructure:"REGION"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY"`
	SQSEndpoint     string `mapstructure:"ENDPOINT"`
	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`

	InputQueue               string `mapstructure:"INPUT_QUEUE"`
	QueueNamePrefix          string `mapstructure:"QUEUE_NAME_PREFIX"`
	S3BucketForLargeMessages string `mapstructure:"S3_BUCKET_FOR_LARGE_MESSAGES"`
	S3KeyPrefix              string `mapstructure:"S3_KEY_PREFIX"`
	MaxTTLDays               int    `mapstructure:"MAX_TTL_DAYS"`

	MaxReceiveMessageBatchSize int   `mapstructure:"MAX_RECEIVE_MESSAGE_BATCH_SIZE"`
	MaxConcurrency             int   `mapstructure:"MAX_CONCURRENCY"`
	PurgeOnStartup             bool  `mapstructure:"PURGE_ON_STARTUP"`
	Transactional              *bool `mapstructure:"TRANSACTIONAL"`

	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	OTLPEndpoint     string `mapstructure:"OTLP_ENDPOINT"`
	OTLPGRPCEndpoint string `mapstructure:"OTLP_GRPC_ENDPOINT"`
}

func Default() Config {
	transactional := true
	return Config{
		Region:                     "us-east-1",
		MaxTTLDays:                 4,
		MaxReceiveMessageBatchSize: 10,
		MaxConcurrency:             1,
		Transactional:              &transactional,
	}
}

// Load reads SQS_* variables over the defaults, e.g. SQS_MAX_TTL_DAYS.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(dst *string, key string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(dst *int, key string) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string) *bool {
		v, ok := lookup(envPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return nil
		}
		return &b
	}

	str(&cfg.Region, "REGION")
	str(&cfg.AccessKeyID, "ACCESS_KEY_ID")
	str(&cfg.SecretAccessKey, "SECRET_ACCESS_KEY")
	str(&cfg.SQSEndpoint, "ENDPOINT")
	str(&cfg.S3Endpoint, "S3_ENDPOINT")
	str(&cfg.InputQueue, "INPUT_QUEUE")
	str(&cfg.QueueNamePrefix, "QUEUE_NAME_PREFIX")
	str(&cfg.S3BucketForLargeMessages, "S3_BUCKET_FOR_LARGE_MESSAGES")
	str(&cfg.S3KeyPrefix, "S3_KEY_PREFIX")
	num(&cfg.MaxTTLDays, "MAX_TTL_DAYS")
	num(&cfg.MaxReceiveMessageBatchSize, "MAX_RECEIVE_MESSAGE_BATCH_SIZE")
	num(&cfg.MaxConcurrency, "MAX_CONCURRENCY")
	if b := flag("PURGE_ON_STARTUP"); b != nil {
		cfg.PurgeOnStartup = *b
	}
	if b := flag("TRANSACTIONAL"); b != nil {
		cfg.Transactional = b
	}
	str(&cfg.RedisAddr, "REDIS_ADDR")
	str(&cfg.OTLPEndpoint, "OTLP_ENDPOINT")
	str(&cfg.OTLPGRPCEndpoint, "OTLP_GRPC_ENDPOINT")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxTTLDays < 1 || c.MaxTTLDays > 14 {
		errs = append(errs, fmt.Errorf("MaxTTLDays must be between 1 and 14, got %d", c.MaxTTLDays))
	}
	if c.MaxReceiveMessageBatchSize < 1 || c.MaxReceiveMessageBatchSize > 10 {
		errs = append(errs, fmt.Errorf("MaxReceiveMessageBatchSize must be between 1 and 10, got %d", c.MaxReceiveMessageBatchSize))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MaxConcurrency must be positive, got %d", c.MaxConcurrency))
	}
	if c.S3BucketForLargeMessages != "" && c.S3KeyPrefix == "" {
		errs = append(errs, errors.New("S3KeyPrefix is required when S3BucketForLargeMessages is set"))
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, errors.New("AccessKeyID and SecretAccessKey must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// IsTransactional reports the effective transactional mode, true when unset.
func (c Config) IsTransactional() bool {
	return c.Transactional == nil || *c.Transactional
}

// AWS loads the shared AWS configuration. Static keys, when present, take
// precedence over the default credential chain.
func (c Config) AWS(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}
