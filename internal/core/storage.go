package core

import (
	"context"
	"fmt"

	"catalogetl/internal/infra/persistence/postgres"
	"catalogetl/internal/infra/persistence/sqlite"
	"catalogetl/internal/infra/persistence/sqlstore"
	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// StorageDriver identifies a concrete product store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory sqlite (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// ProductStore is the product store surface used by the jobs: the
// transactional contract plus bulk load and read access.
type ProductStore interface {
	domain.ProductStore
	LoadProducts(ctx context.Context, products []domain.Product) (sqlstore.LoadStats, error)
	GetProduct(ctx context.Context, name string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DB() *sqlx.DB
	Dialect() sqlstore.Dialect
	Close() error
}

// StoreOptions selects and configures a product store backend.
type StoreOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenProductStore opens the backend named by opts.Driver. Defaults to sqlite
// when unset.
func OpenProductStore(opts StoreOptions) (ProductStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return sqlite.NewMemoryStore()
	case StorageSQLite:
		return sqlite.NewStore(opts.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
