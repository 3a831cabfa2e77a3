package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff describes how one report differs from another.
type Diff struct {
	// Patch is the RFC 7386 merge patch turning the old report into the new one.
	Patch json.RawMessage `json:"merge_patch"`
	// Lines is a line diff of the two documents, rendered with "+", "-" and
	// " " prefixes.
	Lines   string `json:"line_diff"`
	Added   int    `json:"added_lines"`
	Removed int    `json:"removed_lines"`
}

// Equal reports whether the documents are semantically identical.
func (d Diff) Equal() bool {
	return strings.TrimSpace(string(d.Patch)) == "{}"
}

// Compare diffs two JSON documents. Both are re-rendered with Marshal first
// so formatting differences do not show up in the line diff.
func Compare(before, after []byte) (Diff, error) {
	left, err := canonical(before)
	if err != nil {
		return Diff{}, err
	}
	right, err := canonical(after)
	if err != nil {
		return Diff{}, err
	}
	var patch []byte
	switch {
	case isObject(before) && isObject(after):
		patch, err = jsonpatch.CreateMergePatch(before, after)
		if err != nil {
			return Diff{}, fmt.Errorf("create merge patch: %w", err)
		}
	case left == right:
		patch = []byte("{}")
	default:
		// A merge patch whose root is not an object replaces the document.
		var buf bytes.Buffer
		if err := json.Compact(&buf, after); err != nil {
			return Diff{}, fmt.Errorf("compact report: %w", err)
		}
		patch = buf.Bytes()
	}
	d := Diff{Patch: patch}
	d.Lines, d.Added, d.Removed = lineDiff(left, right)
	return d, nil
}

func isObject(doc []byte) bool {
	trimmed := bytes.TrimSpace(doc)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func canonical(doc []byte) (string, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(doc)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode report: %w", err)
	}
	out, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func lineDiff(a, b string) (string, int, int) {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	var (
		out            strings.Builder
		added, removed int
	)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			switch prefix {
			case "+":
				added++
			case "-":
				removed++
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String(), added, removed
}
