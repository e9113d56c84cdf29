// Package work provides a small retrying work queue. The recorder uses it
// to persist finished notes and clean up orphaned payloads off the hot
// path of the sampling tick.
package work

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueClosed = errors.New("work queue closed")
	ErrQueueFull   = errors.New("work queue full")
)

const maxBackoff = time.Minute

// Handler processes one queued item; a non-nil error triggers a retry up
// to the item's budget.
type Handler[T any] func(item T) error

type workItem[T any] struct {
	data       T
	retries    int
	maxRetries int
}

// Queue is a bounded multi-worker queue with per-item retry budgets and
// linear backoff.
type Queue[T any] struct {
	items    chan workItem[T]
	handler  Handler[T]
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	onDrop func(item T, err error)
}

// NewQueue starts numWorkers workers draining the queue through handler.
func NewQueue[T any](numWorkers, capacity int, handler Handler[T]) *Queue[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if capacity <= 0 {
		capacity = 64
	}
	q := &Queue[T]{
		items:    make(chan workItem[T], capacity),
		handler:  handler,
		stopChan: make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// OnDrop registers a callback invoked when an item exhausts its retries.
func (q *Queue[T]) OnDrop(fn func(item T, err error)) {
	q.onDrop = fn
}

// Submit enqueues an item with no retries.
func (q *Queue[T]) Submit(data T) error {
	return q.SubmitWithRetries(data, 0)
}

// SubmitWithRetries enqueues an item that will be retried up to maxRetries
// times on handler failure.
func (q *Queue[T]) SubmitWithRetries(data T, maxRetries int) error {
	q.mu.RLock()
	stopped := q.stopped
	q.mu.RUnlock()
	if stopped {
		return ErrQueueClosed
	}

	select {
	case q.items <- workItem[T]{data: data, maxRetries: maxRetries}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop shuts the workers down after the queued items drain.
func (q *Queue[T]) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.stopChan)
	})
	q.wg.Wait()
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case item := <-q.items:
			q.process(item)
		case <-q.stopChan:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case item := <-q.items:
					q.process(item)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue[T]) process(item workItem[T]) {
	for {
		err := q.handler(item.data)
		if err == nil {
			return
		}

		item.retries++
		if item.retries > item.maxRetries {
			if q.onDrop != nil {
				q.onDrop(item.data, err)
			}
			return
		}

		backoff := time.Duration(item.retries) * 100 * time.Millisecond
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-time.After(backoff):
		case <-q.stopChan:
			// Last attempt on shutdown, then give up.
			if err := q.handler(item.data); err != nil && q.onDrop != nil {
				q.onDrop(item.data, err)
			}
			return
		}
	}
}
