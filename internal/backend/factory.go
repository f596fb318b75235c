package backend

import (
	"context"
	"fmt"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
	"ledger/internal/store/jsonstore"
	"ledger/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	clock  core.Clock
}

// NewFactory creates a new backend factory. clock stamps seeded entries of
// the memory backend; nil means time.Now.
func NewFactory(logger *log.Logger, clock core.Clock) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		clock:  clock,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case JSONBackend:
		return f.createJSONBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createJSONBackend(ctx context.Context, config Config) (*BackendResult, error) {
	st := jsonstore.New(config.JSONDataPath)

	f.logger.InfoContext(ctx, "Initialized JSON file backend", "path", st.Path())

	return &BackendResult{Store: st}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	st := memory.NewFromFiles(dataDir, f.clock)

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Store: st}, nil
}
