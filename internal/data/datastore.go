package data

import (
	"context"
	"fmt"

	"github.com/keshon/datastore"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
)

// jsonStorage implements StorageRepo on a JSON file datastore.
// Values are kept as strings so the file stays human-editable.
type jsonStorage struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc // stops the datastore's auto-save loop
}

// NewJSONStorage opens (or creates) a JSON file store
func NewJSONStorage(filePath string) (repo.StorageRepo, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open datastore: %w", err)
	}
	return &jsonStorage{ds: ds, cancel: cancel}, nil
}

// Get reads a value by key
func (s *jsonStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var str string
	ok, err := s.ds.Get(key, &str)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return []byte(str), true, nil
}

// Put stores a value
func (s *jsonStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := s.ds.Set(key, string(value)); err != nil {
		return fmt.Errorf("failed to save key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (s *jsonStorage) Delete(ctx context.Context, key string) error {
	if err := s.ds.Delete(key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close stops auto-save, then flushes the file
func (s *jsonStorage) Close() error {
	s.cancel()
	return s.ds.Close()
}
