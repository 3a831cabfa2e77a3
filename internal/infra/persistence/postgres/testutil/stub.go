// Package testutil provides a stub database/sql driver for postgres store tests.
// It understands the handful of statement shapes the product store issues.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StubConn records statements and keeps table rows in memory.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	FailPing   bool
	RowsErr    error
	FailTables map[string]bool
	FailCommit bool
	serial     map[string]int64
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any), serial: make(map[string]int64)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Rows returns a copy of the rows stored for table.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		cpy := make(map[string]any, len(row))
		for k, v := range row {
			cpy[k] = v
		}
		out = append(out, cpy)
	}
	return out
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	query = normalize(query)
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	verb := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(verb, "INSERT INTO"):
		return c.insert(query, args)
	case strings.HasPrefix(verb, "UPDATE "):
		return c.update(query, args)
	case strings.HasPrefix(verb, "DELETE FROM"):
		return c.delete(query, args)
	}
	return driver.RowsAffected(0), nil
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("exec fail for %s", table)
	}
	exprs, err := parseValues(query)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(exprs) {
		return nil, fmt.Errorf("column/value mismatch for %s", table)
	}
	row := make(map[string]any, len(cols)+1)
	for i, col := range cols {
		v, err := resolve(exprs[i], args)
		if err != nil {
			return nil, err
		}
		row[col] = v
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") && len(cols) > 0 {
		key := cols[0]
		var filtered []map[string]any
		for _, existing := range c.Tables[table] {
			if existing[key] == row[key] {
				if id, ok := existing["id"]; ok {
					row["id"] = id
				}
				continue
			}
			filtered = append(filtered, existing)
		}
		c.Tables[table] = filtered
	}
	if _, ok := row["id"]; !ok {
		if c.serial == nil {
			c.serial = make(map[string]int64)
		}
		c.serial[table]++
		row["id"] = c.serial[table]
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *StubConn) update(query string, args []driver.NamedValue) (driver.Result, error) {
	lower := strings.ToLower(query)
	setIdx := strings.Index(lower, " set ")
	whereIdx := strings.LastIndex(lower, " where ")
	if setIdx == -1 || whereIdx == -1 || whereIdx < setIdx {
		return nil, fmt.Errorf("cannot parse update: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(query[len("update "):setIdx]))
	if c.FailTables[table] {
		return nil, fmt.Errorf("exec fail for %s", table)
	}
	col, target, err := parsePredicate(query[whereIdx+len(" where "):], args)
	if err != nil {
		return nil, err
	}
	assignments := splitColumns(query[setIdx+len(" set ") : whereIdx])
	var affected int64
	for _, row := range c.Tables[table] {
		if row[col] != target {
			continue
		}
		for _, assign := range assignments {
			parts := strings.SplitN(assign, "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("cannot parse assignment %q", assign)
			}
			name := strings.TrimSpace(parts[0])
			rhs := strings.TrimSpace(parts[1])
			if strings.HasPrefix(rhs, name+" + ") {
				n, _ := strconv.ParseInt(strings.TrimPrefix(rhs, name+" + "), 10, 64)
				cur, _ := row[name].(int64)
				row[name] = cur + n
				continue
			}
			v, err := resolve(rhs, args)
			if err != nil {
				return nil, err
			}
			row[name] = v
		}
		affected++
	}
	return driver.RowsAffected(affected), nil
}

func (c *StubConn) delete(query string, args []driver.NamedValue) (driver.Result, error) {
	lower := strings.ToLower(query)
	whereIdx := strings.Index(lower, " where ")
	if whereIdx == -1 {
		return nil, fmt.Errorf("cannot parse delete: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(query[len("delete from "):whereIdx]))
	col, target, err := parsePredicate(query[whereIdx+len(" where "):], args)
	if err != nil {
		return nil, err
	}
	var filtered []map[string]any
	var affected int64
	for _, row := range c.Tables[table] {
		if row[col] == target {
			affected++
			continue
		}
		filtered = append(filtered, row)
	}
	c.Tables[table] = filtered
	return driver.RowsAffected(affected), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	query = normalize(query)
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	var (
		filterCol string
		target    any
	)
	lower := strings.ToLower(query)
	if whereIdx := strings.Index(lower, " where "); whereIdx != -1 {
		pred := query[whereIdx+len(" where "):]
		if orderIdx := strings.Index(strings.ToLower(pred), " order by "); orderIdx != -1 {
			pred = pred[:orderIdx]
		}
		filterCol, target, err = parsePredicate(pred, args)
		if err != nil {
			return nil, err
		}
	}
	values := make([][]driver.Value, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		if filterCol != "" && row[filterCol] != target {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{
		cols: cols,
		rows: values,
		err:  c.RowsErr,
	}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	cols := splitColumns(rest[open+1 : closeIdx])
	return table, cols, nil
}

func parseValues(query string) ([]string, error) {
	up := strings.ToUpper(query)
	idx := strings.Index(up, "VALUES")
	if idx == -1 {
		return nil, fmt.Errorf("cannot parse values: %s", query)
	}
	rest := query[idx+len("VALUES"):]
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return nil, fmt.Errorf("cannot parse values: %s", query)
	}
	return splitColumns(rest[open+1 : closeIdx]), nil
}

// resolve turns a $n placeholder or a literal into a driver value.
func resolve(expr string, args []driver.NamedValue) (driver.Value, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "$") {
		n, err := strconv.Atoi(expr[1:])
		if err != nil || n < 1 || n > len(args) {
			return nil, fmt.Errorf("bad placeholder %s", expr)
		}
		return args[n-1].Value, nil
	}
	if strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'") && len(expr) >= 2 {
		return expr[1 : len(expr)-1], nil
	}
	if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported literal %s", expr)
}

func parsePredicate(pred string, args []driver.NamedValue) (string, any, error) {
	parts := strings.SplitN(pred, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("cannot parse predicate: %s", pred)
	}
	v, err := resolve(parts[1], args)
	if err != nil {
		return "", nil, err
	}
	return strings.ToLower(strings.TrimSpace(parts[0])), v, nil
}

func parseSelect(query string) (string, []string, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	selectPrefix := "select "
	fromToken := " from "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	query = strings.TrimSpace(query)
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := query[len(selectPrefix):fromIdx]
	table := strings.TrimSpace(query[fromIdx+len(fromToken):])
	if table == "" {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table = strings.Fields(table)[0]
	return strings.ToLower(table), splitColumns(cols), nil
}

func normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
