// Package jobs implements the catalogetl batch pipelines. Each job parses
// its inputs, loads them into the relational store, runs its canned
// aggregations and stores the resulting JSON reports.
package jobs

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"catalogetl/internal/blob"
	"catalogetl/internal/core"
	"catalogetl/internal/infra/persistence/sqlstore"
	"catalogetl/internal/report"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Env carries the collaborators every job needs.
type Env struct {
	Store   core.ProductStore
	Reports *report.Writer
	Obs     core.Observability
}

func (e Env) db() *sqlx.DB { return e.Store.DB() }

// Summary reports what one job run did.
type Summary struct {
	Job       string           `json:"job"`
	Loaded    int              `json:"loaded"`
	Skipped   int              `json:"skipped"`
	Apply     *core.ApplyStats `json:"apply,omitempty"`
	Artifacts []blob.Info      `json:"artifacts"`
}

func (s *Summary) stored(info blob.Info) {
	s.Artifacts = append(s.Artifacts, info)
}

// step runs fn as a traced, timed operation named job.name.
func (e Env) step(ctx context.Context, job, name string, fn func(context.Context) error) error {
	return e.Obs.Step(ctx, job+"."+name, fn)
}

// write stores one report as a traced step.
func (e Env) write(ctx context.Context, job string, sum *Summary, key string, v any) error {
	return e.step(ctx, job, "report", func(ctx context.Context) error {
		info, err := e.Reports.WithJob(job).Write(ctx, key, v)
		if err != nil {
			return err
		}
		sum.stored(info)
		e.Obs.WithDefaults().Logger.Info("report stored", "job", job, "key", key, "bytes", info.Size)
		return nil
	})
}

// Migrate creates the dataset tables and views for the store's dialect.
func Migrate(ctx context.Context, db *sqlx.DB, dialect sqlstore.Dialect) error {
	name := "schema/sqlite.sql"
	if dialect == sqlstore.DialectPostgres {
		name = "schema/postgres.sql"
	}
	ddl, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate datasets: %w", err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, rolling back on error.
func inTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertAll executes a named statement once per row inside tx and returns
// the number of affected rows.
func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) (int, error) {
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	affected := 0
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += int(n)
		}
	}
	return affected, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
