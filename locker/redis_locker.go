package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "sqs-transport:locker:"

type RedisLockerConfig struct {
	Addr           string `mapstructure:"ADDR"`
	DB             int64  `mapstructure:"DB"`
	ConnectTimeout int64  `mapstructure:"CONNECT_TIMEOUT"`
}

// NewRedisClient connects and pings redis. ConnectTimeout is in seconds,
// 5 when unset.
func NewRedisClient(ctx context.Context, cfg *RedisLockerConfig) (*goredislib.Client, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr: cfg.Addr,
		DB:   int(cfg.DB),
	})

	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type redisLocker struct {
	lg      *zap.Logger
	rs      *redsync.Redsync
	options *LockerOptions
}

func getDefaultOptions() *LockerOptions {
	return &LockerOptions{
		timeout:    30 * time.Second,
		retryDelay: 200 * time.Millisecond,
		retries:    10,
	}
}

func NewRedisLocker(lg *zap.Logger, client *goredislib.Client) Locker {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &redisLocker{
		lg:      lg,
		rs:      redsync.New(goredis.NewPool(client)),
		options: getDefaultOptions(),
	}
}

func createUnlocker(mutex *redsync.Mutex, lg *zap.Logger, key string) Unlocker {
	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			// an expired lock is released already
			if errors.Is(err, redsync.ErrLockAlreadyExpired) {
				lg.Debug("lock already expired", zap.String("key", key))
				return nil
			}
			lg.Error("failed to unlock", zap.String("key", key), zap.Error(err))
			return err
		}
		if !ok {
			lg.Debug("lock already released", zap.String("key", key))
			return nil
		}
		lg.Debug("lock released", zap.String("key", key))
		return nil
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error) {
	options := *l.options
	for _, opt := range opts {
		opt(&options)
	}
	return l.acquire(ctx, key,
		redsync.WithExpiry(options.timeout),
		redsync.WithRetryDelay(options.retryDelay),
		redsync.WithTries(options.retries),
	)
}

// TryLock makes a single attempt.
func (l *redisLocker) TryLock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error) {
	options := *l.options
	for _, opt := range opts {
		opt(&options)
	}
	return l.acquire(ctx, key,
		redsync.WithExpiry(options.timeout),
		redsync.WithTries(1),
	)
}

func (l *redisLocker) acquire(ctx context.Context, key string, opts ...redsync.Option) (Unlocker, error) {
	if key == "" {
		return nil, ErrInvalidLockerKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mutex := l.rs.NewMutex(keyPrefix+key, opts...)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			l.lg.Debug("failed to acquire lock", zap.String("key", key), zap.Error(err))
			return nil, ErrLockNotAcquired
		}
		l.lg.Error("error acquiring lock", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	l.lg.Debug("lock acquired", zap.String("key", key))
	return createUnlocker(mutex, l.lg, key), nil
}
