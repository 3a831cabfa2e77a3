package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"catalogetl/internal/infra/persistence/postgres/testutil"
	"catalogetl/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore("ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreAppliesPostgresDDL(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS products_data") && strings.Contains(stmt, "BIGSERIAL") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected postgres DDL to be applied, got execs: %v", conn.Execs)
	}
}

func TestLoadAndUpdateUseDollarPlaceholders(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if _, err := store.LoadProducts(ctx, []domain.Product{{Name: "Widget", Price: 10, Quantity: 5, Available: true}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := store.RunInTransaction(ctx, func(tx domain.ProductTx) error {
		_, err := tx.UpdateProduct("Widget", func(p *domain.Product) error {
			p.Quantity = 8
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Count(domain.ActionUpdate) != 1 {
		t.Fatalf("expected one update, got %+v", res.Changes)
	}
	for _, stmt := range conn.Execs {
		if strings.HasPrefix(stmt, "UPDATE") && !strings.Contains(stmt, "$7") {
			t.Fatalf("expected rebound placeholders, got %s", stmt)
		}
	}
	got, err := store.GetProduct(ctx, "Widget")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Quantity != 8 || got.UpdateCount != 1 || !got.Available {
		t.Fatalf("unexpected product %+v", got)
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	store, conn := openStub(t)
	before := len(conn.Execs)
	userErr := errors.New("user fail")
	if _, err := store.RunInTransaction(context.Background(), func(domain.ProductTx) error { return userErr }); !errors.Is(err, userErr) {
		t.Fatalf("expected user error to propagate, got %v", err)
	}
	if len(conn.Execs) != before {
		t.Fatalf("expected no statements when user fn errors")
	}
}

func TestRunInTransactionReportsCommitFailure(t *testing.T) {
	store, conn := openStub(t)
	conn.FailCommit = true
	if _, err := store.RunInTransaction(context.Background(), func(domain.ProductTx) error { return nil }); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestNewStoreOpenError(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial refused") })
	defer restore()
	if _, err := NewStore(""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStorePingError(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestStoreDBExposesHandle(t *testing.T) {
	store, _ := openStub(t)
	if store.DB() == nil || store.Dialect() != "postgres" {
		t.Fatalf("expected postgres handle")
	}
}
