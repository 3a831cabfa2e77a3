// Package ingest decodes the dataset formats consumed by the catalogetl jobs:
// semicolon CSV, JSON arrays, JSON lines, pickled record lists and the
// `key::value` block text format.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Comma is the field separator of every CSV dataset.
const Comma = ';'

// FromFile opens path and hands it to decode.
func FromFile[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := decode(f)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

func newCSVReader(r io.Reader, comma rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}
