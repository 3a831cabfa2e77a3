package jobs

import (
	"fmt"
	"io"
	"os"

	"catalogetl/internal/ingest"
	"catalogetl/internal/report"
)

// ConvertMovies projects the full movie export at in into the filtered
// layout read by the movies job and writes it to out.
func ConvertMovies(in, out string) (int, error) {
	src, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", in, err)
	}
	defer src.Close()
	dst, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", out, err)
	}
	n, err := ingest.ProjectMovies(src, dst)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", out, cerr)
	}
	if err != nil {
		return 0, fmt.Errorf("convert %s: %w", in, err)
	}
	return n, nil
}

// CSVToJSON renders the CSV file at in as a JSON array of objects keyed by
// the header row and writes it to out.
func CSVToJSON(in, out string, comma rune) (int, error) {
	table, err := ingest.FromFile(in, func(r io.Reader) (ingest.Table, error) {
		return ingest.ReadTable(r, comma)
	})
	if err != nil {
		return 0, err
	}
	payload, err := report.Marshal(report.Rows{Columns: table.Columns, Values: table.Rows})
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", in, err)
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	return len(table.Rows), nil
}
