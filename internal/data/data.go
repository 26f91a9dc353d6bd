package data

import (
	"fmt"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// StorageOptions selects and locates the settings store
type StorageOptions struct {
	Backend   string
	DBPath    string // sqlite
	StorePath string // json
}

// NewStorage opens the configured settings store
func NewStorage(opts StorageOptions) (repo.StorageRepo, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteStorage(opts.DBPath)
	case BackendJSON:
		return NewJSONStorage(opts.StorePath)
	case BackendMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Repositories contains all repositories
type Repositories struct {
	Storage repo.StorageRepo
	Message repo.MessageRepo // nil without Feishu credentials
}

// NewRepositories creates all repositories. feishuClient may be nil.
func NewRepositories(opts StorageOptions, feishuClient *feishu.Client) (*Repositories, error) {
	storage, err := NewStorage(opts)
	if err != nil {
		return nil, err
	}
	repos := &Repositories{Storage: storage}
	if feishuClient != nil {
		repos.Message = NewFeishuRepo(feishuClient)
	}
	return repos, nil
}

// Close releases the underlying stores
func (r *Repositories) Close() error {
	return r.Storage.Close()
}
