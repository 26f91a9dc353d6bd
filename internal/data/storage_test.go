package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
)

func TestStorageBackends(t *testing.T) {
	dir := t.TempDir()
	backends := map[string]StorageOptions{
		BackendSQLite: {Backend: BackendSQLite, DBPath: filepath.Join(dir, "db", "settings.db")},
		BackendJSON:   {Backend: BackendJSON, StorePath: filepath.Join(dir, "store", "settings.json")},
		BackendMemory: {Backend: BackendMemory},
	}

	for name, opts := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := NewStorage(opts)
			require.NoError(t, err)
			defer s.Close()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "k", []byte(`{"TppFilterLong":true}`)))
			require.NoError(t, s.Put(ctx, "k", []byte(`{"TppFilterLong":false}`)))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"TppFilterLong":false}`, string(v))

			require.NoError(t, s.Delete(ctx, "k"))
			require.NoError(t, s.Delete(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	opts := []StorageOptions{
		{Backend: BackendSQLite, DBPath: filepath.Join(dir, "settings.db")},
		{Backend: BackendJSON, StorePath: filepath.Join(dir, "settings.json")},
	}

	for _, o := range opts {
		t.Run(o.Backend, func(t *testing.T) {
			ctx := context.Background()
			write := func() repo.StorageRepo {
				s, err := NewStorage(o)
				require.NoError(t, err)
				return s
			}

			s := write()
			require.NoError(t, s.Put(ctx, "tpp-chat-filter-settings", []byte(`{"TppBannedWords":["kappa"]}`)))
			require.NoError(t, s.Close())

			s = write()
			defer s.Close()
			v, ok, err := s.Get(ctx, "tpp-chat-filter-settings")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"TppBannedWords":["kappa"]}`, string(v))
		})
	}
}

func TestJSONStorageCloseReturns(t *testing.T) {
	s, err := NewJSONStorage(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))

	done := make(chan error, 1)
	go func() { done <- s.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestMemoryStorageCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", buf))
	buf[0] = 'x'

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestNewStorageUnknownBackend(t *testing.T) {
	_, err := NewStorage(StorageOptions{Backend: "redis"})
	assert.Error(t, err)
}
