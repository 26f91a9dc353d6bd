package repo

import "context"

// StorageRepo is a flat key-value store for persisted settings
// Values are opaque JSON documents
type StorageRepo interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a value, replacing any previous one
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key; missing keys are not an error
	Delete(ctx context.Context, key string) error

	Close() error
}
