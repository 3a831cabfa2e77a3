package domain

import (
	"context"
	"errors"
	"fmt"
)

// ProductTx exposes the product operations a persistence implementation must
// support within an atomic scope.
type ProductTx interface {
	// FindProduct returns the product with the given name. A missing product
	// is reported with ok=false and a nil error.
	FindProduct(name string) (Product, bool, error)
	// UpdateProduct applies mutator to the stored product, writes it back and
	// increments its update counter by one.
	UpdateProduct(name string, mutator func(*Product) error) (Product, error)
	// DeleteProduct removes the product.
	DeleteProduct(name string) error
}

// ProductStore is the record store the update applicator mutates.
type ProductStore interface {
	// RunInTransaction executes fn inside one exclusive transaction. The
	// transaction commits when fn returns nil and rolls back otherwise. When fn
	// returns ErrRollback the transaction is discarded and the recorded changes
	// are returned with a nil error.
	RunInTransaction(ctx context.Context, fn func(ProductTx) error) (Result, error)
}

// ErrRollback asks RunInTransaction to discard a transaction without
// reporting a failure.
var ErrRollback = errors.New("transaction rolled back on request")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	Name   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Name)
}

// StorageError reports a failure of the underlying storage engine. It is the
// only error the update applicator surfaces to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return "storage: " + e.Err.Error()
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AsStorageError wraps err in a StorageError unless it already is one.
func AsStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
