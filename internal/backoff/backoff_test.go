package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential_Next(t *testing.T) {
	bo := New(Config{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2})

	assert.Equal(t, 10*time.Millisecond, bo.Next())
	assert.Equal(t, 20*time.Millisecond, bo.Next())
	assert.Equal(t, 40*time.Millisecond, bo.Next())
	assert.Equal(t, 50*time.Millisecond, bo.Next())
	assert.Equal(t, 50*time.Millisecond, bo.Next())

	bo.Reset()
	assert.Equal(t, 10*time.Millisecond, bo.Next())
}

func TestExponential_Defaults(t *testing.T) {
	bo := New(Config{})
	assert.Equal(t, 200*time.Millisecond, bo.Next())
	assert.Equal(t, 400*time.Millisecond, bo.Next())
}

func TestExponential_JitterStaysInSpan(t *testing.T) {
	bo := New(Config{Initial: 100 * time.Millisecond, Max: 100 * time.Millisecond, Jitter: 0.2})
	for i := 0; i < 100; i++ {
		d := bo.Next()
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestExponential_WaitCancelled(t *testing.T) {
	bo := New(Config{Initial: time.Hour, Max: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := bo.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExponential_Wait(t *testing.T) {
	bo := New(Config{Initial: time.Millisecond, Max: time.Millisecond})
	assert.NoError(t, bo.Wait(context.Background()))
}
