// Package sqlstore implements the relational product store shared by the
// SQLite and Postgres backends. Placeholders are written with '?' and rebound
// per driver by sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"catalogetl/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.ProductStore = (*Store)(nil)

// Dialect selects the DDL flavour applied by Migrate.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ProductsTable is the table holding catalog products.
const ProductsTable = "products_data"

const productColumns = `id, name, price, quantity, category, from_city, is_available, views, update_count`

// Store persists products in a SQL database and serialises transactions.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	mu      sync.Mutex
}

// New wraps an open database. Call Migrate before first use.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying database for report queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// Dialect reports the DDL flavour of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the products table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := sqliteProductsDDL
	if s.dialect == DialectPostgres {
		ddl = postgresProductsDDL
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", ProductsTable, err)
	}
	return nil
}

const sqliteProductsDDL = `CREATE TABLE IF NOT EXISTS products_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	category TEXT NOT NULL DEFAULT 'Unknown',
	from_city TEXT NOT NULL DEFAULT '',
	is_available INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0,
	update_count INTEGER NOT NULL DEFAULT 0
)`

const postgresProductsDDL = `CREATE TABLE IF NOT EXISTS products_data (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	price DOUBLE PRECISION NOT NULL,
	quantity BIGINT NOT NULL,
	category TEXT NOT NULL DEFAULT 'Unknown',
	from_city TEXT NOT NULL DEFAULT '',
	is_available BIGINT NOT NULL DEFAULT 0,
	views BIGINT NOT NULL DEFAULT 0,
	update_count BIGINT NOT NULL DEFAULT 0
)`

// productRow is the column layout of products_data. Booleans are stored as
// integers so both dialects scan them the same way.
type productRow struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	Price       float64 `db:"price"`
	Quantity    int64   `db:"quantity"`
	Category    string  `db:"category"`
	FromCity    string  `db:"from_city"`
	IsAvailable int64   `db:"is_available"`
	Views       int64   `db:"views"`
	UpdateCount int64   `db:"update_count"`
}

func toRow(p domain.Product) productRow {
	row := productRow{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Category:    p.Category,
		FromCity:    p.FromCity,
		Views:       p.Views,
		UpdateCount: p.UpdateCount,
	}
	if p.Available {
		row.IsAvailable = 1
	}
	return row
}

func (r productRow) product() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Quantity:    r.Quantity,
		Category:    r.Category,
		FromCity:    r.FromCity,
		Available:   r.IsAvailable != 0,
		Views:       r.Views,
		UpdateCount: r.UpdateCount,
	}
}

// LoadStats summarises a bulk load.
type LoadStats struct {
	Rows     int `json:"rows"`
	Distinct int `json:"distinct"`
}

const upsertProduct = `INSERT INTO products_data (name, price, quantity, category, from_city, is_available, views, update_count)
VALUES (:name, :price, :quantity, :category, :from_city, :is_available, :views, 0)
ON CONFLICT (name) DO UPDATE SET
	price = excluded.price,
	quantity = excluded.quantity,
	category = excluded.category,
	from_city = excluded.from_city,
	is_available = excluded.is_available,
	views = excluded.views,
	update_count = 0`

// LoadProducts inserts products in one transaction. A name that already
// exists is overwritten by the later row and its update counter reset.
func (s *Store) LoadProducts(ctx context.Context, products []domain.Product) (LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return LoadStats{}, fmt.Errorf("begin load: %w", err)
	}
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.Category == "" {
			p.Category = domain.DefaultCategory
		}
		if _, err := tx.NamedExecContext(ctx, upsertProduct, toRow(p)); err != nil {
			_ = tx.Rollback()
			return LoadStats{}, fmt.Errorf("insert product %d (%s): %w", i, p.Name, err)
		}
		seen[p.Name] = struct{}{}
	}
	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("commit load: %w", err)
	}
	return LoadStats{Rows: len(products), Distinct: len(seen)}, nil
}

// GetProduct returns the product with the given name or domain.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, name string) (domain.Product, error) {
	var row productRow
	q := s.db.Rebind(`SELECT ` + productColumns + ` FROM products_data WHERE name = ?`)
	if err := s.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound{Entity: domain.EntityProduct, Name: name}
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return row.product(), nil
}

// ListProducts returns every product ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products_data ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.product())
	}
	return out, nil
}

// RunInTransaction executes fn inside a database transaction. Callers are
// serialised so a batch never interleaves with another writer of this store.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.ProductTx) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("begin: %w", err)
	}
	ptx := &productTx{ctx: ctx, tx: tx}
	if err := fn(ptx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return domain.Result{}, errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		if errors.Is(err, domain.ErrRollback) {
			return domain.Result{Changes: ptx.changes}, nil
		}
		return domain.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Result{}, fmt.Errorf("commit: %w", err)
	}
	return domain.Result{Changes: ptx.changes}, nil
}

type productTx struct {
	ctx     context.Context
	tx      *sqlx.Tx
	changes []domain.Change
}

func (t *productTx) FindProduct(name string) (domain.Product, bool, error) {
	var row productRow
	q := t.tx.Rebind(`SELECT ` + productColumns + ` FROM products_data WHERE name = ?`)
	if err := t.tx.GetContext(t.ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, fmt.Errorf("find product: %w", err)
	}
	return row.product(), true, nil
}

const updateProduct = `UPDATE products_data SET
	price = ?, quantity = ?, category = ?, from_city = ?, is_available = ?, views = ?,
	update_count = update_count + 1
WHERE name = ?`

func (t *productTx) UpdateProduct(name string, mutator func(*domain.Product) error) (domain.Product, error) {
	current, ok, err := t.FindProduct(name)
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, domain.ErrNotFound{Entity: domain.EntityProduct, Name: name}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Product{}, err
	}
	current.ID = before.ID
	current.Name = before.Name
	current.UpdateCount = before.UpdateCount + 1
	row := toRow(current)
	if _, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(updateProduct),
		row.Price, row.Quantity, row.Category, row.FromCity, row.IsAvailable, row.Views, name); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	after := current
	t.changes = append(t.changes, domain.Change{
		Entity: domain.EntityProduct,
		Action: domain.ActionUpdate,
		Name:   name,
		Before: &before,
		After:  &after,
	})
	return current, nil
}

func (t *productTx) DeleteProduct(name string) error {
	current, ok, err := t.FindProduct(name)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProduct, Name: name}
	}
	if _, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`DELETE FROM products_data WHERE name = ?`), name); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	t.changes = append(t.changes, domain.Change{
		Entity: domain.EntityProduct,
		Action: domain.ActionDelete,
		Name:   name,
		Before: &current,
	})
	return nil
}
