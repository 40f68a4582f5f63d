// Package storage implements the tender repository on SQLite, Postgres and memory.
package storage

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// DriverMemory selects the in-process repository.
const DriverMemory = "memory"

// Store is a migratable repository that owns its connection.
type Store interface {
	ports.TenderRepository
	FindUrgent(ctx context.Context, days int) ([]domain.PersistedTender, error)
	FindRecent(ctx context.Context, limit int) ([]domain.PersistedTender, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the configured driver and runs the schema migration.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		store Store
		err   error
	)
	switch driver {
	case string(DialectSQLite):
		store, err = OpenSQLite(dsn)
	case string(DialectPostgres):
		store, err = OpenPostgres(ctx, dsn)
	case DriverMemory:
		store = NewMemoryRepository()
	default:
		return nil, eris.Errorf("storage: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
