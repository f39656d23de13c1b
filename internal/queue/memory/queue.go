// Package memory provides a queue implementation for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan []byte
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan []byte, capacity)}
}

// Publish pushes a payload into the queue or returns if the context ends.
func (q *Queue) Publish(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish canceled: %w", ctx.Err())
	case q.ch <- payload:
		return nil
	}
}

// Dequeue pops the next payload, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case payload, ok := <-q.ch:
		if !ok {
			return nil, errors.New("queue closed")
		}
		return payload, nil
	}
}

// Len reports the number of buffered payloads.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	close(q.ch)
	q.closed = true
	return nil
}
