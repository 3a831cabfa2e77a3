package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"catalogetl/internal/blob"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/go-cmp/cmp"
)

func TestMarshalKeepsOrderAndUnicode(t *testing.T) {
	doc := Object{
		{Key: "top", Value: Rows{
			Columns: []string{"name", "city", "views"},
			Values:  [][]any{{"Дом <1>", "Омск", int64(7)}},
		}},
		{Key: "avg", Value: 2.5},
		{Key: "empty", Value: Rows{Columns: []string{"x"}}},
	}
	got, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{
    "top": [
        {
            "name": "Дом <1>",
            "city": "Омск",
            "views": 7
        }
    ],
    "avg": 2.5,
    "empty": []
}`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Fatalf("rendering mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsHelpers(t *testing.T) {
	rows := Rows{Columns: []string{"a", "b"}, Values: [][]any{{1, "x"}, {2, "y"}}}
	if rows.Len() != 2 {
		t.Fatalf("expected 2 rows")
	}
	if got := rows.Column("b"); !cmp.Equal(got, []any{"x", "y"}) {
		t.Fatalf("unexpected column %v", got)
	}
	if rows.Column("zzz") != nil {
		t.Fatalf("unknown column should be nil")
	}
	if v, ok := rows.Objects()[1].Get("a"); !ok || v != 2 {
		t.Fatalf("unexpected object value %v", v)
	}
}

func TestWriterReplacesAndTags(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	w := NewWriter(store, "run-1", "products")
	if _, err := w.Write(ctx, "fourth_task_analysis.json", Object{{Key: "v", Value: 1}}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	info, err := NewWriter(store, "run-2", "").WithJob("products").Write(ctx, "fourth_task_analysis.json", Object{{Key: "v", Value: 2}})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if info.ContentType != ContentType || info.Metadata[MetaRunID] != "run-2" || info.Metadata[MetaJob] != "products" {
		t.Fatalf("unexpected info %+v", info)
	}
	body, err := Read(ctx, store, "fourth_task_analysis.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "{\n    \"v\": 2\n}" {
		t.Fatalf("unexpected body %q", body)
	}
	if _, err := Read(ctx, store, "missing.json"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestCompareObjects(t *testing.T) {
	before := []byte(`{"avg_price": 10, "top": ["a", "b"], "gone": true}`)
	after := []byte(`{"avg_price": 12.5, "top": ["a", "b"]}`)
	d, err := Compare(before, after)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if d.Equal() {
		t.Fatalf("documents differ")
	}
	merged, err := jsonpatch.MergePatch(before, d.Patch)
	if err != nil {
		t.Fatalf("apply patch: %v", err)
	}
	var gotDoc, wantDoc any
	_ = json.Unmarshal(merged, &gotDoc)
	_ = json.Unmarshal(after, &wantDoc)
	if diff := cmp.Diff(wantDoc, gotDoc); diff != "" {
		t.Fatalf("patched document mismatch (-want +got):\n%s", diff)
	}
	if d.Added != 1 || d.Removed != 2 {
		t.Fatalf("expected +1 -2 lines, got +%d -%d\n%s", d.Added, d.Removed, d.Lines)
	}
	if !strings.Contains(d.Lines, `-    "gone": true,`) || !strings.Contains(d.Lines, `+    "avg_price": 12.5,`) {
		t.Fatalf("unexpected line diff:\n%s", d.Lines)
	}
}

func TestCompareArrays(t *testing.T) {
	same, err := Compare([]byte(`[{"a":1}]`), []byte("[\n  {\"a\": 1}\n]"))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !same.Equal() || same.Added+same.Removed != 0 {
		t.Fatalf("formatting-only change reported: %+v", same)
	}
	changed, err := Compare([]byte(`[1]`), []byte(`[1, 2]`))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if changed.Equal() || string(changed.Patch) != "[1,2]" {
		t.Fatalf("unexpected patch %s", changed.Patch)
	}
	if _, err := Compare([]byte(`{`), []byte(`{}`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
