// Package queue is the bounded hand-off between producers and the batch aggregator.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solanaIndexer/internal/model"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a fixed-capacity FIFO with many producers and a single consumer.
// Enqueue blocks while the queue is full; nothing is dropped.
type Queue struct {
	items chan model.CanonicalEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// New builds a queue holding at most capacity events.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be greater than zero")
	}
	return &Queue{
		items: make(chan model.CanonicalEvent, capacity),
		done:  make(chan struct{}),
	}, nil
}

// Enqueue appends an event, suspending while the queue is full.
// It returns ErrClosed after Close and ctx.Err() if ctx ends first.
func (q *Queue) Enqueue(ctx context.Context, event model.CanonicalEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- event:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Items is the consumer side. It is closed after Close once buffered events are drained.
func (q *Queue) Items() <-chan model.CanonicalEvent {
	return q.items
}

// Dequeue waits for the next event. ok is false at end of stream.
func (q *Queue) Dequeue(ctx context.Context) (model.CanonicalEvent, bool, error) {
	select {
	case event, ok := <-q.items:
		return event, ok, nil
	case <-ctx.Done():
		return model.CanonicalEvent{}, false, ctx.Err()
	}
}

// Close stops accepting events. Producers blocked in Enqueue return ErrClosed.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
