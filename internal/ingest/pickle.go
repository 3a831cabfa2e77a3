package ingest

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

// pickleRecords unpickles a list of dicts.
func pickleRecords(r io.Reader) ([]*types.Dict, error) {
	u := pickle.NewUnpickler(r)
	v, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickle: %w", err)
	}
	list, ok := v.(*types.List)
	if !ok {
		return nil, fmt.Errorf("expected a pickled list, got %T", v)
	}
	out := make([]*types.Dict, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		d, ok := list.Get(i).(*types.Dict)
		if !ok {
			return nil, fmt.Errorf("record %d: expected a dict, got %T", i, list.Get(i))
		}
		out = append(out, d)
	}
	return out, nil
}

// field returns d[key] with Python longs narrowed to float64.
func field(d *types.Dict, key string) (any, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	if b, isBig := v.(*big.Int); isBig {
		f, _ := new(big.Float).SetInt(b).Float64()
		return f, true
	}
	return v, true
}

func pyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// pyInt mirrors Python's int(): floats truncate, strings must hold an
// integer literal.
func pyInt(v any) (int64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// pyFloat mirrors Python's float().
func pyFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
