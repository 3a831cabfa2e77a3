package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"catalogetl/pkg/domain"
)

// productColumns is the positional layout of the products CSV.
var productColumns = []string{"name", "price", "quantity", "category", "fromCity", "isAvailable", "views"}

const (
	colName = iota
	colPrice
	colQuantity
	colCategory
	colFromCity
	colAvailable
	colViews
)

// ReadProducts decodes the semicolon separated products dataset. Rows whose
// category column is missing arrive shifted one column to the left; those
// are moved back and given the default category.
func ReadProducts(r io.Reader) ([]domain.Product, error) {
	cr := newCSVReader(r, Comma)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header, productColumns)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make([]string, len(productColumns))
		for i, at := range index {
			if at < len(rec) {
				fields[i] = strings.TrimSpace(rec[at])
			}
		}
		p, err := productFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func productFromFields(f []string) (domain.Product, error) {
	if !isCategoryWord(f[colCategory]) {
		f[colFromCity], f[colAvailable], f[colViews] = f[colCategory], f[colFromCity], f[colAvailable]
		f[colCategory] = ""
	}
	if f[colName] == "" {
		return domain.Product{}, fmt.Errorf("empty product name")
	}
	price, err := strconv.ParseFloat(f[colPrice], 64)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price %q: %w", f[colPrice], err)
	}
	qty, err := parseWhole(f[colQuantity])
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse quantity %q: %w", f[colQuantity], err)
	}
	views, err := parseWhole(f[colViews])
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse views %q: %w", f[colViews], err)
	}
	category := f[colCategory]
	if category == "" {
		category = domain.DefaultCategory
	}
	return domain.Product{
		Name:      f[colName],
		Price:     price,
		Quantity:  qty,
		Category:  category,
		FromCity:  f[colFromCity],
		Available: f[colAvailable] == "True",
		Views:     views,
	}, nil
}

// isCategoryWord reports whether s is a non-empty run of letters with no
// upper-case letter, the shape every real category value has.
func isCategoryWord(s string) bool {
	lower := false
	for _, r := range s {
		if !unicode.IsLetter(r) || unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			lower = true
		}
	}
	return lower
}

// parseWhole accepts integers, also written with a zero fraction such as
// "12.0". Empty values parse as zero. Fractional or out of range values are
// errors.
func parseWhole(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int64(f), nil
}

func columnIndex(header, want []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	index := make([]int, len(want))
	for i, name := range want {
		at, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		index[i] = at
	}
	return index, nil
}
