package jobs

import (
	"context"
	"fmt"

	"catalogetl/internal/report"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/types"
	"github.com/expr-lang/expr/vm"
	"github.com/jmoiron/sqlx"
)

// tableColumns returns the column names of table in declaration order.
func tableColumns(ctx context.Context, db sqlx.QueryerContext, table string) ([]string, error) {
	rows, err := db.QueryxContext(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()
	return rows.Columns()
}

// checkColumn rejects identifiers that are not columns of table, so field
// names never reach SQL unvalidated.
func checkColumn(columns []string, table, field string) error {
	for _, c := range columns {
		if c == field {
			return nil
		}
	}
	return fmt.Errorf("%s has no column %q", table, field)
}

// selectRows runs query and collects every row in column order.
func selectRows(ctx context.Context, db sqlx.QueryerContext, query string, args ...any) (report.Rows, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return report.Rows{}, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return report.Rows{}, err
	}
	out := report.Rows{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return report.Rows{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Values = append(out.Values, vals)
	}
	return out, rows.Err()
}

// Export selects rows of Table ordered by SortBy, keeps those matching
// Filter and stops after Limit rows.
type Export struct {
	Table  string
	SortBy string
	// Filter is an expr predicate over the row's columns, e.g. "year > 2010".
	Filter string
	Limit  int
}

// Run executes the export.
func (e Export) Run(ctx context.Context, db *sqlx.DB) (report.Rows, error) {
	cols, err := tableColumns(ctx, db, e.Table)
	if err != nil {
		return report.Rows{}, err
	}
	if err := checkColumn(cols, e.Table, e.SortBy); err != nil {
		return report.Rows{}, err
	}
	keep, err := compileFilter(e.Filter, cols)
	if err != nil {
		return report.Rows{}, err
	}
	all, err := selectRows(ctx, db, "SELECT * FROM "+e.Table+" ORDER BY "+e.SortBy+" ASC, id ASC")
	if err != nil {
		return report.Rows{}, fmt.Errorf("export %s: %w", e.Table, err)
	}
	out := report.Rows{Columns: all.Columns}
	for _, row := range all.Values {
		if e.Limit > 0 && len(out.Values) >= e.Limit {
			break
		}
		ok, err := keep(all.Columns, row)
		if err != nil {
			return report.Rows{}, err
		}
		if ok {
			out.Values = append(out.Values, row)
		}
	}
	return out, nil
}

type rowFilter func(columns []string, row []any) (bool, error)

func compileFilter(src string, columns []string) (rowFilter, error) {
	if src == "" {
		return func([]string, []any) (bool, error) { return true, nil }, nil
	}
	env := make(types.Map, len(columns))
	for _, c := range columns {
		env[c] = types.Any
	}
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return func(cols []string, row []any) (bool, error) {
		return evalFilter(program, cols, row)
	}, nil
}

func evalFilter(program *vm.Program, cols []string, row []any) (bool, error) {
	env := make(map[string]any, len(cols))
	for i, c := range cols {
		env[c] = row[i]
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// fieldStats returns sum, min, max and avg of one numeric column.
func fieldStats(ctx context.Context, db *sqlx.DB, table, field string) (report.Object, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	if err := checkColumn(cols, table, field); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT CAST(SUM(%[1]s) AS DOUBLE PRECISION) AS sum, MIN(%[1]s) AS min, MAX(%[1]s) AS max,
	AVG(CAST(%[1]s AS DOUBLE PRECISION)) AS avg FROM %[2]s`, field, table)
	rows, err := selectRows(ctx, db, q)
	if err != nil {
		return nil, fmt.Errorf("stats %s.%s: %w", table, field, err)
	}
	if rows.Len() == 0 {
		return nil, fmt.Errorf("stats %s.%s: no result", table, field)
	}
	return rows.Objects()[0], nil
}

// frequency counts the rows per distinct value of field, most frequent
// first.
func frequency(ctx context.Context, db *sqlx.DB, table, field string) (report.Rows, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return report.Rows{}, err
	}
	if err := checkColumn(cols, table, field); err != nil {
		return report.Rows{}, err
	}
	q := fmt.Sprintf(`SELECT %[1]s, COUNT(*) AS count FROM %[2]s GROUP BY %[1]s ORDER BY count DESC, %[1]s ASC`, field, table)
	rows, err := selectRows(ctx, db, q)
	if err != nil {
		return report.Rows{}, fmt.Errorf("frequency %s.%s: %w", table, field, err)
	}
	return rows, nil
}
