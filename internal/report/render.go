// Package report renders job results as JSON artifacts, stores them in the
// blob store and compares stored artifacts.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Indent is the indentation used for every artifact.
const Indent = "    "

// Field is one key of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its keys in insertion order.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCompact(&buf, f.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeCompact(&buf, f.Value); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows is a tabular query result rendered as an array of objects whose keys
// follow the column order.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (r Rows) Len() int { return len(r.Values) }

// Objects converts every row into an Object.
func (r Rows) Objects() []Object {
	out := make([]Object, len(r.Values))
	for i, row := range r.Values {
		obj := make(Object, len(r.Columns))
		for j, col := range r.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			obj[j] = Field{Key: col, Value: v}
		}
		out[i] = obj
	}
	return out
}

// Column returns the values of one column.
func (r Rows) Column(name string) []any {
	idx := -1
	for i, c := range r.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]any, len(r.Values))
	for i, row := range r.Values {
		out[i] = row[idx]
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r Rows) MarshalJSON() ([]byte, error) {
	objs := r.Objects()
	if objs == nil {
		objs = []Object{}
	}
	var buf bytes.Buffer
	if err := encodeCompact(&buf, objs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal renders v with four-space indentation and without HTML or
// non-ASCII escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeCompact(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
