package pump

import (
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/envelope"
	"github.com/infigaming-com/go-sqs-transport/queue"
)

type Option func(*options)

type options struct {
	logger         *zap.Logger
	metrics        MetricsHook
	onComplete     CompletionFunc
	maxBatchSize   int
	waitTime       time.Duration
	ackTimeout     time.Duration
	restartInitial time.Duration
	restartMax     time.Duration
	cleanupWorkers int
	cleanupQueue   int
	cleanupTimeout time.Duration
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		logger:         zap.NewNop(),
		metrics:        noopMetrics{},
		onComplete:     func(*envelope.TransportMessage, error) {},
		maxBatchSize:   queue.MaxBatchSize,
		waitTime:       queue.MaxWaitTime,
		ackTimeout:     30 * time.Second,
		restartInitial: 200 * time.Millisecond,
		restartMax:     30 * time.Second,
		cleanupWorkers: 4,
		cleanupQueue:   1024,
		cleanupTimeout: 30 * time.Second,
		now:            time.Now,
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m MetricsHook) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithOnComplete sets the callback invoked once per received message.
func WithOnComplete(fn CompletionFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onComplete = fn
		}
	}
}

// WithMaxBatchSize sets how many messages one receive may return, 1..10.
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 && n <= queue.MaxBatchSize {
			o.maxBatchSize = n
		}
	}
}

// WithWaitTime sets the long-poll wait of each receive. Default 20s.
func WithWaitTime(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 && d <= queue.MaxWaitTime {
			o.waitTime = d
		}
	}
}

// WithAckTimeout bounds each delete or visibility reset.
func WithAckTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ackTimeout = d
		}
	}
}

// WithRestartBackoff sets the delay a replacement worker waits before its
// first receive after a fault.
func WithRestartBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.restartInitial = initial
		}
		if max > 0 {
			o.restartMax = max
		}
	}
}

// WithCleanupWorkers sizes the background pool deleting external bodies.
func WithCleanupWorkers(workers, queueSize int) Option {
	return func(o *options) {
		if workers > 0 {
			o.cleanupWorkers = workers
		}
		if queueSize > 0 {
			o.cleanupQueue = queueSize
		}
	}
}

// WithNowFunc overrides the time source used for expiry checks.
func WithNowFunc(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}
