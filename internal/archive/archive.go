// Package archive persists raw page snapshots before segmentation, so a
// crawl can be re-segmented without hitting the provider again.
package archive

import "context"

// Store writes immutable page snapshots.
type Store interface {
	// Put stores data under the given object key, overwriting any
	// previous snapshot with the same key.
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

// NoOpStore discards every snapshot. Used when archival is not configured.
type NoOpStore struct{}

// Put discards the snapshot.
func (NoOpStore) Put(context.Context, string, []byte) error { return nil }

// Close is a no-op.
func (NoOpStore) Close() error { return nil }
