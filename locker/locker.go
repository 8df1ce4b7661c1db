package locker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLockerKey = errors.New("locker: invalid key")
	ErrLockNotAcquired  = errors.New("locker: lock not acquired")
)

type Unlocker func(ctx context.Context) error

// Locker serializes work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error)
	TryLock(ctx context.Context, key string, opts ...LockerOption) (Unlocker, error)
}

type LockerOptions struct {
	timeout    time.Duration
	retryDelay time.Duration
	retries    int
}

type LockerOption func(*LockerOptions)

// WithTimeout sets how long the lock is held before it expires on its own.
func WithTimeout(timeout time.Duration) LockerOption {
	return func(o *LockerOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithRetryDelay(retryDelay time.Duration) LockerOption {
	return func(o *LockerOptions) {
		if retryDelay > 0 {
			o.retryDelay = retryDelay
		}
	}
}

func WithRetries(retries int) LockerOption {
	return func(o *LockerOptions) {
		if retries > 0 {
			o.retries = retries
		}
	}
}
