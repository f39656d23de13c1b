// Package queue defines the interface for the work queue producer side.
// Consumers of the queued payloads live in other services.
package queue

import "context"

// Publisher pushes serialized payloads onto one named queue/topic.
type Publisher interface {
	// Publish sends one payload. Implementations surface delivery failures
	// to the caller; no retry happens here.
	Publish(ctx context.Context, payload []byte) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpPublisher discards every payload. It is useful for running the service
// without a real queue.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing and returns nil.
func (NoOpPublisher) Publish(_ context.Context, _ []byte) error { return nil }

// Close for NoOpPublisher does nothing and returns nil.
func (NoOpPublisher) Close() error { return nil }
