package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsJobs(t *testing.T) {
	p := New(2, 10, nil)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {
			count.Add(1)
		}))
	}
	p.Close()
	p.Wait()

	assert.Equal(t, int32(10), count.Load())
}

func TestPool_TrySubmitQueueFull(t *testing.T) {
	p := New(1, 1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {}))

	err := p.TrySubmit(context.Background(), func(context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	p.Close()
	p.Wait()
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(1, 1, nil)
	p.Close()
	p.Close()

	err := p.TrySubmit(context.Background(), func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_RecoversPanics(t *testing.T) {
	recovered := make(chan any, 1)
	p := New(1, 2, func(r any) { recovered <- r })

	require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {
		panic("boom")
	}))

	var ran atomic.Bool
	require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {
		ran.Store(true)
	}))
	p.Close()
	p.Wait()

	assert.Equal(t, "boom", <-recovered)
	assert.True(t, ran.Load())
}

func TestPool_WaitContext(t *testing.T) {
	p := New(1, 1, nil)
	release := make(chan struct{})
	require.NoError(t, p.TrySubmit(context.Background(), func(context.Context) {
		<-release
	}))
	p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.WaitContext(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, p.WaitContext(context.Background()))
}
