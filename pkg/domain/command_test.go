package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUpdateCommandDecodesBatch(t *testing.T) {
	raw := `[
		{"name": "Widget", "method": "price_percent", "param": -0.5},
		{"name": "Widget", "method": "available", "param": true},
		{"name": "Ghost", "method": "remove", "param": null},
		{"name": "Gadget", "method": "rename"}
	]`
	var cmds []UpdateCommand
	if err := json.Unmarshal([]byte(raw), &cmds); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []UpdateCommand{
		{Name: "Widget", Operation: OpPricePercent, Param: NumberParam(-0.5)},
		{Name: "Widget", Operation: OpAvailable, Param: BoolParam(true)},
		{Name: "Ghost", Operation: OpRemove, Param: NoParam()},
		{Name: "Gadget", Operation: Operation("rename"), Param: NoParam()},
	}
	if diff := cmp.Diff(want, cmds, cmp.AllowUnexported(Param{})); diff != "" {
		t.Fatalf("decoded batch mismatch (-want +got):\n%s", diff)
	}
	if cmds[3].Operation.Known() {
		t.Fatalf("rename must not be a known operation")
	}
}

func TestParamNonScalarValuesAreEmpty(t *testing.T) {
	for _, raw := range []string{`"ten"`, `"3"`, `{"v": 1}`, `[1]`, `null`} {
		p := BoolParam(true)
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if p.Kind() != ParamNone {
			t.Fatalf("%s: expected empty param, got %v", raw, p)
		}
	}
	var p Param
	if err := p.UnmarshalJSON([]byte(`{"v":`)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestParamConversions(t *testing.T) {
	if v, ok := NumberParam(2.5).Int(); !ok || v != 3 {
		t.Fatalf("expected 2.5 to round to 3, got %d %v", v, ok)
	}
	if v, ok := NumberParam(-2.5).Int(); !ok || v != -3 {
		t.Fatalf("expected -2.5 to round to -3, got %d %v", v, ok)
	}
	if v, ok := BoolParam(true).Float(); !ok || v != 1 {
		t.Fatalf("expected true to convert to 1, got %v %v", v, ok)
	}
	if v, ok := NumberParam(0).Bool(); !ok || v {
		t.Fatalf("expected 0 to convert to false")
	}
	if v, ok := NumberParam(1e30).Int(); !ok || v != math.MaxInt64 {
		t.Fatalf("expected 1e30 to saturate at MaxInt64, got %d %v", v, ok)
	}
	if v, ok := NumberParam(-1e30).Int(); !ok || v != math.MinInt64 {
		t.Fatalf("expected -1e30 to saturate at MinInt64, got %d %v", v, ok)
	}
	if v, ok := NumberParam(9.2e18).Int(); !ok || v != 9200000000000000000 {
		t.Fatalf("expected 9.2e18 to convert exactly, got %d %v", v, ok)
	}
	if _, ok := NumberParam(math.NaN()).Int(); ok {
		t.Fatalf("NaN must not convert to an integer")
	}
	if _, ok := NoParam().Float(); ok {
		t.Fatalf("empty param must not convert to a number")
	}
	if _, ok := NoParam().Bool(); ok {
		t.Fatalf("empty param must not convert to a bool")
	}
}

func TestParamMarshalRoundTripsValue(t *testing.T) {
	b, err := json.Marshal(UpdateCommand{Name: "Widget", Operation: OpQuantityAdd, Param: NumberParam(4)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"name":"Widget","method":"quantity_add","param":4}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestParamFromValue(t *testing.T) {
	cases := []struct {
		in   any
		want Param
		ok   bool
	}{
		{in: 3, want: NumberParam(3), ok: true},
		{in: int64(-7), want: NumberParam(-7), ok: true},
		{in: 0.25, want: NumberParam(0.25), ok: true},
		{in: false, want: BoolParam(false), ok: true},
		{in: nil, want: NoParam(), ok: true},
		{in: "x", want: NoParam(), ok: false},
	}
	for _, tc := range cases {
		got, ok := ParamFromValue(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParamFromValue(%v) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := AsStorageError("commit", base)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}
	if again := AsStorageError("apply", err); again != err {
		t.Fatalf("expected existing StorageError to be returned unchanged")
	}
	if AsStorageError("noop", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
	if se.Error() != "storage commit: disk full" {
		t.Fatalf("unexpected message %q", se.Error())
	}
}

func TestResultCount(t *testing.T) {
	r := Result{Changes: []Change{{Action: ActionUpdate}, {Action: ActionDelete}, {Action: ActionUpdate}}}
	if r.Count(ActionUpdate) != 2 || r.Count(ActionDelete) != 1 {
		t.Fatalf("unexpected counts %+v", r)
	}
}
