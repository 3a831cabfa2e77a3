package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err := conn.ExecContext(ctx, "INSERT INTO products_data (name, price, update_count) VALUES ($1, $2, 0)", []driver.NamedValue{
		{Value: "Widget"},
		{Value: 2.5},
	})
	if err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}
	rows := conn.Rows("products_data")
	if len(rows) != 1 || rows[0]["id"] != int64(1) || rows[0]["update_count"] != int64(0) {
		t.Fatalf("expected serial id and literal counter, got %v", rows)
	}

	_, err = conn.ExecContext(ctx, "UPDATE products_data SET price = $1, update_count = update_count + 1 WHERE name = $2", []driver.NamedValue{
		{Value: 4.0},
		{Value: "Widget"},
	})
	if err != nil {
		t.Fatalf("ExecContext update: %v", err)
	}

	r, err := conn.QueryContext(ctx, "SELECT name, price, update_count FROM products_data WHERE name = $1", []driver.NamedValue{{Value: "Widget"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = r.Close() }()
	dest := make([]driver.Value, 3)
	if err := r.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "Widget" || dest[1] != 4.0 || dest[2] != int64(1) {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM products_data WHERE name=$1", []driver.NamedValue{{Value: "Widget"}}); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if len(conn.Rows("products_data")) != 0 {
		t.Fatalf("expected row to be deleted")
	}
}
