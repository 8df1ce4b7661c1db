package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 4, cfg.MaxTTLDays)
	assert.Equal(t, 10, cfg.MaxReceiveMessageBatchSize)
	assert.Equal(t, 1, cfg.MaxConcurrency)
	assert.False(t, cfg.PurgeOnStartup)
	assert.True(t, cfg.IsTransactional())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{
		"SQS_REGION":                         "eu-west-1",
		"SQS_ENDPOINT":                       "http://localhost:4566",
		"SQS_INPUT_QUEUE":                    "orders",
		"SQS_QUEUE_NAME_PREFIX":              "dev-",
		"SQS_S3_BUCKET_FOR_LARGE_MESSAGES":   "bodies",
		"SQS_S3_KEY_PREFIX":                  "large/",
		"SQS_MAX_TTL_DAYS":                   " 7 ",
		"SQS_MAX_RECEIVE_MESSAGE_BATCH_SIZE": "5",
		"SQS_MAX_CONCURRENCY":                "8",
		"SQS_PURGE_ON_STARTUP":               "true",
		"SQS_TRANSACTIONAL":                  "false",
		"SQS_REDIS_ADDR":                     "localhost:6379",
	}))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "http://localhost:4566", cfg.SQSEndpoint)
	assert.Equal(t, "orders", cfg.InputQueue)
	assert.Equal(t, "dev-", cfg.QueueNamePrefix)
	assert.Equal(t, "bodies", cfg.S3BucketForLargeMessages)
	assert.Equal(t, "large/", cfg.S3KeyPrefix)
	assert.Equal(t, 7, cfg.MaxTTLDays)
	assert.Equal(t, 5, cfg.MaxReceiveMessageBatchSize)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.True(t, cfg.PurgeOnStartup)
	assert.False(t, cfg.IsTransactional())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_ParseErrors(t *testing.T) {
	_, err := load(lookupFrom(map[string]string{
		"SQS_MAX_TTL_DAYS":  "four",
		"SQS_TRANSACTIONAL": "maybe",
	}))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SQS_MAX_TTL_DAYS")
	assert.Contains(t, err.Error(), "SQS_TRANSACTIONAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "ttl too small", mutate: func(c *Config) { c.MaxTTLDays = 0 }, wantErr: "MaxTTLDays"},
		{name: "ttl too large", mutate: func(c *Config) { c.MaxTTLDays = 15 }, wantErr: "MaxTTLDays"},
		{name: "batch too large", mutate: func(c *Config) { c.MaxReceiveMessageBatchSize = 11 }, wantErr: "MaxReceiveMessageBatchSize"},
		{name: "no concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }, wantErr: "MaxConcurrency"},
		{name: "bucket without prefix", mutate: func(c *Config) { c.S3BucketForLargeMessages = "b" }, wantErr: "S3KeyPrefix"},
		{name: "half credentials", mutate: func(c *Config) { c.AccessKeyID = "AKIA" }, wantErr: "SecretAccessKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsTransactional(t *testing.T) {
	off := false
	assert.True(t, Config{}.IsTransactional())
	assert.False(t, Config{Transactional: &off}.IsTransactional())
}

func TestAWS_StaticCredentials(t *testing.T) {
	cfg := Default()
	cfg.Region = "eu-central-1"
	cfg.AccessKeyID = "AKIDEXAMPLE"
	cfg.SecretAccessKey = "secret"

	awsCfg, err := cfg.AWS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
