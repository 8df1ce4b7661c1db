// Package memqueue is an in-process queue.Client with SQS visibility
// semantics. It backs tests and local runs of the pump.
package memqueue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infigaming-com/go-sqs-transport/queue"
)

const urlScheme = "memqueue://"

var _ queue.Client = (*Queue)(nil)

type Option func(*Queue)

// WithVisibilityTimeout sets how long a received message stays hidden.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// WithPurgeCooldown sets the window in which a second purge is rejected.
func WithPurgeCooldown(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.purgeCooldown = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

type Queue struct {
	mu            sync.Mutex
	queues        map[string]*queueState
	visibility    time.Duration
	purgeCooldown time.Duration
	pollInterval  time.Duration
}

type queueState struct {
	name       string
	attributes map[string]string
	messages   []*message
	lastPurge  time.Time
	stats      Stats
}

type message struct {
	id            string
	body          string
	sent          time.Time
	receiptHandle string
	visibleAt     time.Time
	receiveCount  int
}

// Stats counts the operations applied to one queue.
type Stats struct {
	Sent              int
	Received          int
	Deleted           int
	VisibilityChanges int
	Purges            int
}

func New(opts ...Option) *Queue {
	q := &Queue{
		queues:        map[string]*queueState{},
		visibility:    30 * time.Second,
		purgeCooldown: 60 * time.Second,
		pollInterval:  5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func URL(name string) string {
	return urlScheme + name
}

func (q *Queue) CreateQueue(_ context.Context, name string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name]; !ok {
		q.queues[name] = &queueState{name: name, attributes: map[string]string{}}
	}
	return URL(name), nil
}

func (q *Queue) GetQueueURL(_ context.Context, name string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name]; !ok {
		return "", fmt.Errorf("%w: %s", queue.ErrQueueNotFound, name)
	}
	return URL(name), nil
}

func (q *Queue) SetQueueAttributes(_ context.Context, queueURL string, attributes map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return err
	}
	for k, v := range attributes {
		st.attributes[k] = v
	}
	return nil
}

// Attributes returns a copy of the attributes set on a queue.
func (q *Queue) Attributes(queueURL string) map[string]string {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(st.attributes))
	for k, v := range st.attributes {
		out[k] = v
	}
	return out
}

func (q *Queue) PurgeQueue(_ context.Context, queueURL string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return err
	}
	now := time.Now()
	if !st.lastPurge.IsZero() && now.Sub(st.lastPurge) < q.purgeCooldown {
		return fmt.Errorf("%w: %s was purged %s ago", queue.ErrPurgeInProgress, st.name, now.Sub(st.lastPurge).Round(time.Millisecond))
	}
	st.lastPurge = now
	st.messages = nil
	st.stats.Purges++
	return nil
}

func (q *Queue) SendMessage(_ context.Context, queueURL, body string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return "", err
	}
	m := &message{
		id:   uuid.NewString(),
		body: body,
		// SQS reports the sent time with millisecond precision.
		sent: time.Now().Truncate(time.Millisecond),
	}
	st.messages = append(st.messages, m)
	st.stats.Sent++
	return m.id, nil
}

// ReceiveMessages waits up to waitTime for visible messages. The wait is
// cut short when ctx is done.
func (q *Queue) ReceiveMessages(ctx context.Context, queueURL string, maxMessages int, waitTime time.Duration) ([]queue.Message, error) {
	if maxMessages < 1 {
		maxMessages = 1
	}
	if maxMessages > queue.MaxBatchSize {
		maxMessages = queue.MaxBatchSize
	}
	deadline := time.Now().Add(waitTime)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		msgs, err := q.receive(queueURL, maxMessages)
		if err != nil || len(msgs) > 0 || !time.Now().Before(deadline) {
			return msgs, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) receive(queueURL string, maxMessages int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []queue.Message
	for _, m := range st.messages {
		if len(out) == maxMessages {
			break
		}
		if now.Before(m.visibleAt) {
			continue
		}
		m.receiveCount++
		m.receiptHandle = uuid.NewString()
		m.visibleAt = now.Add(q.visibility)
		out = append(out, queue.Message{
			MessageID:     m.id,
			ReceiptHandle: m.receiptHandle,
			Body:          m.body,
			SentTimestamp: m.sent,
			Attributes: map[string]string{
				queue.AttributeSentTimestamp: strconv.FormatInt(m.sent.UnixMilli(), 10),
				"ApproximateReceiveCount":    strconv.Itoa(m.receiveCount),
			},
		})
	}
	st.stats.Received += len(out)
	return out, nil
}

func (q *Queue) DeleteMessage(_ context.Context, queueURL, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return err
	}
	for i, m := range st.messages {
		if m.receiptHandle == receiptHandle {
			st.messages = append(st.messages[:i], st.messages[i+1:]...)
			st.stats.Deleted++
			return nil
		}
	}
	return fmt.Errorf("memqueue: receipt handle %s is not valid", receiptHandle)
}

func (q *Queue) ChangeMessageVisibility(_ context.Context, queueURL, receiptHandle string, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return err
	}
	for _, m := range st.messages {
		if m.receiptHandle == receiptHandle {
			m.visibleAt = time.Now().Add(timeout)
			st.stats.VisibilityChanges++
			return nil
		}
	}
	return fmt.Errorf("memqueue: receipt handle %s is not valid", receiptHandle)
}

// Len returns the number of messages still held by the queue, in flight or not.
func (q *Queue) Len(queueURL string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return 0
	}
	return len(st.messages)
}

func (q *Queue) Stats(queueURL string) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, err := q.lookup(queueURL)
	if err != nil {
		return Stats{}
	}
	return st.stats
}

func (q *Queue) lookup(queueURL string) (*queueState, error) {
	name := strings.TrimPrefix(queueURL, urlScheme)
	st, ok := q.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", queue.ErrQueueNotFound, queueURL)
	}
	return st, nil
}
