package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), &RedisLockerConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &RedisLockerConfig{Addr: "127.0.0.1:1", ConnectTimeout: 1})
	assert.Error(t, err)
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLocker(zap.NewNop(), client)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"orders"))

	_, err = l.TryLock(ctx, "orders")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(keyPrefix+"orders"))

	unlock, err = l.TryLock(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_LockRetriesUntilReleased(t *testing.T) {
	_, client := setupTestRedis(t)
	l := NewRedisLocker(nil, client)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "orders")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = unlock(context.Background())
	}()

	second, err := l.Lock(ctx, "orders", WithRetryDelay(20*time.Millisecond), WithRetries(50))
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestRedisLocker_LockGivesUp(t *testing.T) {
	_, client := setupTestRedis(t)
	l := NewRedisLocker(nil, client)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "orders")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	_, err = l.Lock(ctx, "orders", WithRetryDelay(5*time.Millisecond), WithRetries(3))
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestRedisLocker_InvalidInput(t *testing.T) {
	_, client := setupTestRedis(t)
	l := NewRedisLocker(nil, client)

	_, err := l.Lock(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidLockerKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.TryLock(ctx, "orders")
	assert.ErrorIs(t, err, context.Canceled)
}
