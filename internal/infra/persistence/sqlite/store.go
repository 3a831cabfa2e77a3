// Package sqlite opens SQLite databases through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"catalogetl/internal/infra/persistence/sqlstore"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultPath = "catalogetl.db"

func init() {
	// sqlx does not know the modernc driver name; register its bind style.
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Open opens the database at path, creating parent directories as needed.
// MemoryPath yields a database pinned to one connection so every query sees
// the same data.
func Open(path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Store is a product store persisted to SQLite.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens path and ensures the products table exists.
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	inner := sqlstore.New(db, sqlstore.DialectSQLite)
	if err := inner.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	return &Store{Store: inner, path: path}, nil
}

// NewMemoryStore returns a store backed by a private in-memory database.
func NewMemoryStore() (*Store, error) {
	return NewStore(MemoryPath)
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
