package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"catalogetl/pkg/domain"

	"github.com/jszwec/csvutil"
)

// ReadProperties decodes the JSON array of property listings.
func ReadProperties(r io.Reader) ([]domain.Property, error) {
	var props []domain.Property
	if err := json.NewDecoder(r).Decode(&props); err != nil {
		return nil, err
	}
	return props, nil
}

// ReadReviews decodes the semicolon separated reviews dataset.
func ReadReviews(r io.Reader) ([]domain.Review, error) {
	return decodeCSV[domain.Review](r, false)
}

// ReadMoviesCSV decodes the filtered movie CSV. Columns absent from the
// header, such as country in older exports, stay nil.
func ReadMoviesCSV(r io.Reader) ([]domain.Movie, error) {
	return decodeCSV[domain.Movie](r, false)
}

// ReadMoviesJSONLines decodes one movie object per line.
func ReadMoviesJSONLines(r io.Reader) ([]domain.Movie, error) {
	var movies []domain.Movie
	err := eachLine(r, func(line int, b []byte) error {
		var m domain.Movie
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		movies = append(movies, m)
		return nil
	})
	return movies, err
}

func decodeCSV[T any](r io.Reader, strict bool) ([]T, error) {
	dec, err := csvutil.NewDecoder(newCSVReader(r, Comma))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dec.DisallowMissingColumns = strict
	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
}

// ReadTrackBlocks parses the block text format: records separated by
// "====", one `key::value` pair per line. Lines without "::" are ignored.
func ReadTrackBlocks(r io.Reader) ([]domain.Track, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var tracks []domain.Track
	for i, block := range strings.Split(strings.TrimSpace(string(raw)), "====") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var t domain.Track
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			key, value, ok := strings.Cut(line, "::")
			if !ok {
				continue
			}
			if err := setTrackField(&t, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("block %d: %w", i+1, err)
			}
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func setTrackField(t *domain.Track, key, value string) error {
	var err error
	switch key {
	case "artist":
		t.Artist = value
	case "song":
		t.Song = value
	case "genre":
		t.Genre = value
	case "duration_ms":
		t.DurationMS, err = strconv.ParseInt(value, 10, 64)
	case "year":
		t.Year, err = strconv.ParseInt(value, 10, 64)
	case "tempo":
		t.Tempo, err = strconv.ParseFloat(value, 64)
	}
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	return nil
}

// DecodeTracksPickle decodes the pickled track list. Records whose numeric
// fields cannot be converted are dropped; absent numbers default to zero.
func DecodeTracksPickle(r io.Reader) ([]domain.Track, error) {
	records, err := pickleRecords(r)
	if err != nil {
		return nil, err
	}
	tracks := make([]domain.Track, 0, len(records))
	for _, rec := range records {
		var (
			t  domain.Track
			ok = true
		)
		artist, _ := field(rec, "artist")
		song, _ := field(rec, "song")
		genre, _ := field(rec, "genre")
		t.Artist, t.Song, t.Genre = pyString(artist), pyString(song), pyString(genre)
		if v, present := field(rec, "duration_ms"); present {
			t.DurationMS, ok = pyInt(v)
		}
		if v, present := field(rec, "year"); present && ok {
			t.Year, ok = pyInt(v)
		}
		if v, present := field(rec, "tempo"); present && ok {
			t.Tempo, ok = pyFloat(v)
		}
		if !ok {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}
