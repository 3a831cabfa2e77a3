package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
)

// rawMovie is one row of the full movie export, restricted to the columns the
// movie job keeps. Values pass through verbatim.
type rawMovie struct {
	ID                  string `csv:"id"`
	OriginalTitle       string `csv:"original_title"`
	ReleaseDate         string `csv:"release_date"`
	Genres              string `csv:"genres"`
	Runtime             string `csv:"runtime"`
	ProductionCountries string `csv:"production_countries"`
	Revenue             string `csv:"revenue"`
	VoteAverage         string `csv:"vote_average"`
	VoteCount           string `csv:"vote_count"`
}

// filteredMovie is the projected layout read back by ReadMoviesCSV.
type filteredMovie struct {
	ID            string `csv:"id"`
	OriginalTitle string `csv:"original_title"`
	ReleaseDate   string `csv:"release_date"`
	Genre         string `csv:"genre"`
	Duration      string `csv:"duration"`
	Country       string `csv:"country"`
	Income        string `csv:"income"`
	Score         string `csv:"score"`
	Votes         string `csv:"_votes_"`
}

// ProjectMovies copies the kept movie columns from r to w under their
// analysis names (genres->genre, runtime->duration,
// production_countries->country, revenue->income, vote_average->score,
// vote_count->_votes_). Every kept column must be present. It returns the
// number of rows written.
func ProjectMovies(r io.Reader, w io.Writer) (int, error) {
	rows, err := decodeCSV[rawMovie](r, true)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = Comma
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		if err := enc.EncodeHeader(filteredMovie{}); err != nil {
			return 0, err
		}
	}
	for _, m := range rows {
		out := filteredMovie{
			ID:            m.ID,
			OriginalTitle: m.OriginalTitle,
			ReleaseDate:   m.ReleaseDate,
			Genre:         m.Genres,
			Duration:      m.Runtime,
			Country:       m.ProductionCountries,
			Income:        m.Revenue,
			Score:         m.VoteAverage,
			Votes:         m.VoteCount,
		}
		if err := enc.Encode(out); err != nil {
			return 0, fmt.Errorf("encode movie %s: %w", m.ID, err)
		}
	}
	cw.Flush()
	return len(rows), cw.Error()
}

// Table is a decoded CSV file with inferred cell types.
type Table struct {
	Columns []string
	Rows    [][]any
}

// ReadTable decodes a CSV file with a header row. Cells holding integers or
// floats become int64 or float64, empty cells become nil and everything
// else stays a string.
func ReadTable(r io.Reader, comma rune) (Table, error) {
	cr := newCSVReader(r, comma)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	t := Table{Columns: header}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return Table{}, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) {
				row[i] = inferCell(rec[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
}

func inferCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
