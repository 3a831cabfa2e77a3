package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"catalogetl/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "products.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.LoadProducts(ctx, []domain.Product{{Name: "Persist", Price: 2, Quantity: 3}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.ProductTx) error {
		_, err := tx.UpdateProduct("Persist", func(p *domain.Product) error {
			p.Quantity = 4
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.GetProduct(ctx, "Persist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Quantity != 4 || got.UpdateCount != 1 {
		t.Fatalf("unexpected reloaded product %+v", got)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreCreatesProductsTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "products_data").Scan(&tableName); err != nil {
		t.Fatalf("lookup products table: %v", err)
	}
	if tableName != "products_data" {
		t.Fatalf("expected products_data table, got %s", tableName)
	}
}

func TestMemoryStoreSharesOneDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.LoadProducts(ctx, []domain.Product{{Name: "A", Price: 1, Quantity: 1}, {Name: "B", Price: 1, Quantity: 1}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	products, err := store.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected both products visible, got %d", len(products))
	}
}
