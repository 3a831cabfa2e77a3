package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"catalogetl/pkg/domain"
)

// ReadUpdates loads an update batch, choosing the decoder from the file
// extension: .pkl/.pickle, .json or .jsonl/.ndjson.
func ReadUpdates(path string) ([]domain.UpdateCommand, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl", ".pickle":
		return FromFile(path, DecodeUpdatesPickle)
	case ".json":
		return FromFile(path, DecodeUpdatesJSON)
	case ".jsonl", ".ndjson":
		return FromFile(path, DecodeUpdatesJSONLines)
	default:
		return nil, fmt.Errorf("unsupported update batch format %q", filepath.Ext(path))
	}
}

// DecodeUpdatesPickle decodes a pickled list of {name, method, param} dicts.
// Params of unsupported types become empty and are skipped by the
// applicator.
func DecodeUpdatesPickle(r io.Reader) ([]domain.UpdateCommand, error) {
	records, err := pickleRecords(r)
	if err != nil {
		return nil, err
	}
	cmds := make([]domain.UpdateCommand, 0, len(records))
	for i, rec := range records {
		name, ok := field(rec, "name")
		if !ok {
			return nil, fmt.Errorf("record %d: missing name", i)
		}
		method, ok := field(rec, "method")
		if !ok {
			return nil, fmt.Errorf("record %d: missing method", i)
		}
		raw, _ := field(rec, "param")
		param, _ := domain.ParamFromValue(raw)
		cmds = append(cmds, domain.UpdateCommand{
			Name:      pyString(name),
			Operation: domain.Operation(pyString(method)),
			Param:     param,
		})
	}
	return cmds, nil
}

// DecodeUpdatesJSON decodes a JSON array of commands.
func DecodeUpdatesJSON(r io.Reader) ([]domain.UpdateCommand, error) {
	var cmds []domain.UpdateCommand
	if err := json.NewDecoder(r).Decode(&cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// DecodeUpdatesJSONLines decodes one command per line; blank lines are
// skipped.
func DecodeUpdatesJSONLines(r io.Reader) ([]domain.UpdateCommand, error) {
	var cmds []domain.UpdateCommand
	err := eachLine(r, func(line int, b []byte) error {
		var cmd domain.UpdateCommand
		if err := json.Unmarshal(b, &cmd); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		cmds = append(cmds, cmd)
		return nil
	})
	return cmds, err
}

// UniqueMethods lists the distinct operations of a batch, sorted.
func UniqueMethods(cmds []domain.UpdateCommand) []string {
	seen := make(map[string]struct{})
	for _, c := range cmds {
		seen[string(c.Operation)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func eachLine(r io.Reader, fn func(line int, b []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		if err := fn(line, b); err != nil {
			return err
		}
	}
	return sc.Err()
}
