package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
)

const (
	defaultQueueSize       = 256
	defaultDeliveryTimeout = 15 * time.Second
)

type QueueOption func(*Queue)

// WithQueueSize sets how many events may wait for delivery before Publish
// starts dropping them.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.size = n
		}
	}
}

// WithDeliveryTimeout bounds each hand-off to the downstream publisher.
func WithDeliveryTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// Queue hands events to next on a single background worker, in order. Each
// delivery runs under its own timeout, detached from the caller's context.
type Queue struct {
	next    Publisher
	logger  zerolog.Logger
	metrics *metrics.Collector
	size    int
	timeout time.Duration

	ch       chan Event
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
	closeOne sync.Once
	closeErr error
}

func NewQueue(next Publisher, logger zerolog.Logger, collector *metrics.Collector, opts ...QueueOption) *Queue {
	q := &Queue{
		next:    next,
		logger:  logger,
		metrics: collector,
		size:    defaultQueueSize,
		timeout: defaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.ch = make(chan Event, q.size)
	go q.run()
	return q
}

// Publish stamps and enqueues the event. It never blocks; when the queue is
// full or closed the event is dropped and logged.
func (q *Queue) Publish(_ context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(event, "closed")
		return nil
	}
	select {
	case q.ch <- event:
	default:
		q.drop(event, "full")
	}
	return nil
}

func (q *Queue) drop(event Event, reason string) {
	q.logger.Warn().Str("event", event.Type).Str("key", event.Key).Str("reason", reason).Msg("event dropped")
	q.metrics.EventPublished("queue", "dropped")
}

func (q *Queue) run() {
	defer close(q.done)
	for event := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		// Sink failures are logged and counted by the downstream fanout.
		_ = q.next.Publish(ctx, event)
		cancel()
	}
}

// Close stops accepting events, waits for queued ones to be delivered and
// then closes the downstream publisher when it holds connections.
func (q *Queue) Close() error {
	q.closeOne.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()

		<-q.done
		if c, ok := q.next.(interface{ Close() error }); ok {
			q.closeErr = c.Close()
		}
	})
	return q.closeErr
}
