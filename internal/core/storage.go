package core

import (
	"context"
	"fmt"
	"io"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/internal/infra/persistence/postgres"
	"bakerycore/internal/infra/persistence/sqlite"
	"bakerycore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the backend behind a Service.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenPersistentStore builds the configured store. An empty driver means sqlite.
// The returned closer releases the backend's database handle.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine, opts ...memory.Option) (domain.PersistentStore, io.Closer, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nopCloser{}, nil
	case "", StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
