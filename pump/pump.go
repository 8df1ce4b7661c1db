// Package pump consumes an SQS queue with a fixed pool of supervised
// pollers and owns delete, retry and expiry decisions for every message.
package pump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-sqs-transport/envelope"
	"github.com/infigaming-com/go-sqs-transport/filestore"
	"github.com/infigaming-com/go-sqs-transport/internal/backoff"
	"github.com/infigaming-com/go-sqs-transport/internal/worker"
	"github.com/infigaming-com/go-sqs-transport/queue"
)

// Pump owns the pollers of one input queue and settles every message they
// receive.
type Pump struct {
	queue  queue.Client
	codec  *envelope.Codec
	blobs  filestore.FileStore
	opts   options
	logger *zap.Logger

	mu            sync.Mutex
	initialized   bool
	handler       Handler
	onError       ErrorHandler
	inputQueue    string
	queueURL      string
	transactional bool
	current       *run
	last          *run

	active   atomic.Int32
	restarts atomic.Int64
}

// run is the state of one Start..Stop cycle. It stays registered on the pump
// until every poller has returned, so a timed out Stop cannot overlap a new
// Start.
type run struct {
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	done        chan struct{}
	cleanup     *worker.Pool
	concurrency int
	drained     atomic.Int32
	stopping    atomic.Bool
}

// Stats is a snapshot of the worker pool.
type Stats struct {
	Running  bool
	Workers  int
	Active   int
	Drained  int
	Restarts int64
}

// New builds a pump reading from q. blobs may be nil when no message carries
// an external body.
func New(q queue.Client, codec *envelope.Codec, blobs filestore.FileStore, opts ...Option) *Pump {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pump{
		queue:  q,
		codec:  codec,
		blobs:  blobs,
		opts:   o,
		logger: o.logger.With(zap.String("component", "sqs-pump")),
	}
}

// Init resolves the input queue and optionally purges it. Resolution and
// purge failures abort initialization, except for a purge rejected because
// another one is still in progress.
func (p *Pump) Init(ctx context.Context, handler Handler, onError ErrorHandler, settings Settings) error {
	if handler == nil {
		return ErrNilHandler
	}

	queueURL, err := p.queue.GetQueueURL(ctx, settings.InputQueue)
	if err != nil {
		return fmt.Errorf("pump: resolve input queue %s: %w", settings.InputQueue, err)
	}

	if settings.PurgeOnStartup {
		err := p.queue.PurgeQueue(ctx, queueURL)
		switch {
		case errors.Is(err, queue.ErrPurgeInProgress):
			p.logger.Warn("multiple queue purges within 60 seconds are not permitted by SQS, skipping purge",
				zap.String("queue", settings.InputQueue), zap.Error(err))
		case err != nil:
			return fmt.Errorf("pump: purge input queue %s: %w", settings.InputQueue, err)
		default:
			p.logger.Info("purged input queue", zap.String("queue", settings.InputQueue))
		}
	}

	transactional := true
	if settings.Transactional != nil {
		transactional = *settings.Transactional
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	p.onError = onError
	p.inputQueue = settings.InputQueue
	p.queueURL = queueURL
	p.transactional = transactional
	p.initialized = true

	p.logger.Info("pump initialized",
		zap.String("queue", settings.InputQueue),
		zap.String("queue_url", queueURL),
		zap.Bool("transactional", transactional))
	return nil
}

// Start launches concurrency pollers. A poller that faults is replaced in
// the same slot until Stop is called; the replacement starts after a jittered
// backoff (see WithRestartBackoff), not immediately. Start fails with
// ErrStopping while the pollers of a previous run are still draining.
func (p *Pump) Start(concurrency int) error {
	if concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if r := p.current; r != nil {
		if r.stopping.Load() {
			return ErrStopping
		}
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel:      cancel,
		done:        make(chan struct{}),
		concurrency: concurrency,
		cleanup: worker.New(p.opts.cleanupWorkers, p.opts.cleanupQueue, func(recovered any) {
			p.logger.Error("panic while deleting message body", zap.Any("recover", recovered))
		}),
	}
	p.current = r

	cfg := pollerConfig{
		queueURL:      p.queueURL,
		handler:       p.handler,
		transactional: p.transactional,
	}
	for slot := 0; slot < concurrency; slot++ {
		r.wg.Add(1)
		go p.supervise(ctx, r, slot, cfg)
	}
	go p.drain(r)

	p.logger.Info("pump started", zap.String("queue", p.inputQueue), zap.Int("concurrency", concurrency))
	return nil
}

// Stop cancels all pollers and waits until each has finished the message it
// was working on. Pending body deletes are given until ctx is done. When ctx
// ends first the pollers keep draining in the background and a later Stop
// waits for the same run.
func (p *Pump) Stop(ctx context.Context) error {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()
	if r == nil {
		return nil
	}

	r.stopping.Store(true)
	r.cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pump: waiting for workers to drain: %w", ctx.Err())
	case <-r.done:
	}

	if err := r.cleanup.WaitContext(ctx); err != nil {
		p.logger.Warn("abandoning pending message body deletes, the bucket lifecycle policy will remove them", zap.Error(err))
	}

	p.logger.Info("pump stopped", zap.String("queue", p.inputQueue), zap.Int("drained", int(r.drained.Load())))
	return nil
}

// drain unregisters r once all of its pollers have returned.
func (p *Pump) drain(r *run) {
	r.wg.Wait()
	r.cleanup.Close()

	p.mu.Lock()
	if p.current == r {
		p.current = nil
		p.last = r
	}
	p.mu.Unlock()
	close(r.done)
}

// ErrorHandler returns the callback recorded by Init.
func (p *Pump) ErrorHandler() ErrorHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onError
}

// QueueURL returns the input queue URL resolved by Init.
func (p *Pump) QueueURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueURL
}

// Transactional reports whether failed messages are retried.
func (p *Pump) Transactional() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transactional
}

// Stats reports the current run, or the last one once the pump is stopped.
func (p *Pump) Stats() Stats {
	p.mu.Lock()
	r := p.current
	running := r != nil && !r.stopping.Load()
	if r == nil {
		r = p.last
	}
	p.mu.Unlock()

	s := Stats{
		Running:  running,
		Active:   int(p.active.Load()),
		Restarts: p.restarts.Load(),
	}
	if r != nil {
		s.Workers = r.concurrency
		s.Drained = int(r.drained.Load())
	}
	return s
}

// supervise keeps one slot busy. A poller that ends because of cancellation
// is not replaced; any other exit is a fault and a new poller takes over
// after a backoff.
func (p *Pump) supervise(ctx context.Context, r *run, slot int, cfg pollerConfig) {
	defer func() {
		r.drained.Add(1)
		r.wg.Done()
	}()

	bo := backoff.New(backoff.Config{
		Initial:    p.opts.restartInitial,
		Max:        p.opts.restartMax,
		Multiplier: 2,
		Jitter:     0.2,
	})
	for {
		started := time.Now()
		err := p.runPoller(ctx, r, slot, cfg)
		if ctx.Err() != nil {
			return
		}
		// a poller that stayed healthy for a while starts over from the
		// shortest delay
		if time.Since(started) > p.opts.restartMax {
			bo.Reset()
		}

		p.restarts.Add(1)
		p.opts.metrics.OnWorkerRestart()
		p.logger.Warn("poller faulted, starting a replacement", zap.Int("worker", slot), zap.Error(err))

		if err := bo.Wait(ctx); err != nil {
			return
		}
	}
}

func (p *Pump) runPoller(ctx context.Context, r *run, slot int, cfg pollerConfig) (err error) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pump: worker %d panicked: %v", slot, rec)
		}
	}()

	w := &poller{
		pump:    p,
		cfg:     cfg,
		slot:    slot,
		cleanup: r.cleanup,
		logger:  p.logger.With(zap.Int("worker", slot)),
	}
	return w.run(ctx)
}
