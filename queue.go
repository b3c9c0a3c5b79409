package courier

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

var (
	errQueueClosed = errors.New("queue is closed")
	errQueueFull   = errors.New("queue is full")
)

// fifo is the queue with single consumer. Push never blocks, so it may be called
// with locks held. Zero limit means the queue is unbounded.
type fifo[T any] struct {
	limit int
	ready chan struct{}

	mu     sync.Mutex
	items  *queue.Queue
	closed bool
}

func newFIFO[T any](limit int) *fifo[T] {
	return &fifo[T]{
		limit: limit,
		ready: make(chan struct{}, 1),
		items: queue.New(),
	}
}

// Push appends item. It fails if queue is closed or full.
func (q *fifo[T]) Push(item T) error {
	q.mu.Lock()
	switch {
	case q.closed:
		q.mu.Unlock()
		return errors.WithStack(errQueueClosed)
	case q.limit > 0 && q.items.Length() >= q.limit:
		q.mu.Unlock()
		return errors.WithStack(errQueueFull)
	}
	q.items.Add(item)
	q.mu.Unlock()

	q.notify()
	return nil
}

// Pop returns next item. It returns false once queue is closed and drained or context is canceled.
func (q *fifo[T]) Pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove().(T)
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			var zero T
			return zero, false
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Close stops accepting new items. Items already queued are still returned by Pop.
func (q *fifo[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.notify()
}

// Discard closes queue and drops queued items.
func (q *fifo[T]) Discard() {
	q.mu.Lock()
	q.closed = true
	q.items = queue.New()
	q.mu.Unlock()

	q.notify()
}

func (q *fifo[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
