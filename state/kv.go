// Package state persists applied resource state and guards it with an
// exclusive per-project lock.
//
// The Store encodes records on top of a flat key-value backend. Two
// backends are provided: Bolt for persistent on-disk state and Memory for
// tests.
package state

import "context"

// A KVBackend persists key-value data.
//
// Keys contain at least one slash; the part before the last slash is a
// namespace (a bucket in bolt) and the rest is the key proper.
type KVBackend interface {
	// Put creates or updates a key.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent creates a key, failing with ErrKeyExists if the key is
	// already set. The check and write are atomic.
	PutIfAbsent(ctx context.Context, key string, value []byte) error

	// Get returns the value for a key. Returns ErrNotFound if the key does
	// not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete deletes a key. Returns ErrNotFound if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Scan returns all keys matching the given prefix with their values.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}
