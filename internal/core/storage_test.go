package core

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"catalogetl/internal/infra/persistence/postgres"
	"catalogetl/internal/infra/persistence/postgres/testutil"
	"catalogetl/internal/infra/persistence/sqlite"
	"catalogetl/pkg/domain"
)

func TestOpenProductStoreDefaultSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	store, err := OpenProductStore(StoreOptions{SQLitePath: path})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	sqliteStore, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	if sqliteStore.Path() != path {
		t.Fatalf("unexpected path %s", sqliteStore.Path())
	}
}

func TestOpenProductStoreMemory(t *testing.T) {
	store, err := OpenProductStore(StoreOptions{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("memory open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Dialect() != "sqlite" {
		t.Fatalf("expected sqlite dialect, got %s", store.Dialect())
	}
}

func TestOpenProductStorePostgres(t *testing.T) {
	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	store, err := OpenProductStore(StoreOptions{Driver: StoragePostgres, PostgresDSN: "postgres://stub"})
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	if store.Dialect() != "postgres" {
		t.Fatalf("expected postgres dialect, got %s", store.Dialect())
	}
}

func TestOpenProductStoreUnknownDriver(t *testing.T) {
	if _, err := OpenProductStore(StoreOptions{Driver: "gibberish"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestApplicatorAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenProductStore(StoreOptions{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.LoadProducts(ctx, []domain.Product{
		{Name: "Widget", Price: 10, Quantity: 5},
		{Name: "Gadget", Price: 2, Quantity: 1},
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	cmds := []domain.UpdateCommand{
		{Name: "Widget", Operation: domain.OpPricePercent, Param: domain.NumberParam(-0.5)},
		{Name: "Widget", Operation: domain.OpQuantitySub, Param: domain.NumberParam(10)},
		{Name: "Gadget", Operation: domain.OpPriceAbs, Param: domain.NumberParam(0.3)},
		{Name: "Gadget", Operation: domain.OpRemove, Param: domain.NoParam()},
		{Name: "Gadget", Operation: domain.OpAvailable, Param: domain.BoolParam(true)},
		{Name: "Ghost", Operation: domain.OpAvailable, Param: domain.BoolParam(true)},
	}
	stats, err := ApplyUpdates(ctx, store, cmds)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.Applied != 3 || stats.Removed != 1 || stats.Missing != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	widget, err := store.GetProduct(ctx, "Widget")
	if err != nil {
		t.Fatalf("get widget: %v", err)
	}
	if widget.Price != 5 || widget.Quantity != 1 || widget.UpdateCount != 2 {
		t.Fatalf("unexpected widget %+v", widget)
	}
	var nf domain.ErrNotFound
	if _, err := store.GetProduct(ctx, "Gadget"); !errors.As(err, &nf) {
		t.Fatalf("expected gadget removed, got %v", err)
	}
}

func TestPreviewAgainstSQLiteLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store, err := OpenProductStore(StoreOptions{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.LoadProducts(ctx, []domain.Product{{Name: "Widget", Price: 10, Quantity: 5}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	stats, res, err := NewApplicator().Preview(ctx, store, []domain.UpdateCommand{
		{Name: "Widget", Operation: domain.OpQuantityAdd, Param: domain.NumberParam(3)},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if stats.Applied != 1 || len(res.Changes) != 1 || res.Changes[0].After.Quantity != 8 {
		t.Fatalf("unexpected preview %+v %+v", stats, res)
	}
	widget, err := store.GetProduct(ctx, "Widget")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if widget.Quantity != 5 || widget.UpdateCount != 0 {
		t.Fatalf("preview must not persist, got %+v", widget)
	}
}

func TestHugeQuantityAddAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenProductStore(StoreOptions{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.LoadProducts(ctx, []domain.Product{{Name: "Pen", Price: 2, Quantity: 5}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := ApplyUpdates(ctx, store, []domain.UpdateCommand{
		{Name: "Pen", Operation: domain.OpQuantityAdd, Param: domain.NumberParam(1e30)},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	pen, err := store.GetProduct(ctx, "Pen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pen.Quantity != math.MaxInt64 || pen.UpdateCount != 1 {
		t.Fatalf("expected saturated quantity, got %+v", pen)
	}
}
