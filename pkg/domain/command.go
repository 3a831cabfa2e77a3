package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Operation is the kind of an UpdateCommand.
type Operation string

// Recognised operations. Any other value is ignored by the applicator.
const (
	OpAvailable    Operation = "available"
	OpPriceAbs     Operation = "price_abs"
	OpPricePercent Operation = "price_percent"
	OpQuantityAdd  Operation = "quantity_add"
	OpQuantitySub  Operation = "quantity_sub"
	OpRemove       Operation = "remove"
)

// Operations lists the recognised operations in declaration order.
func Operations() []Operation {
	return []Operation{OpAvailable, OpPriceAbs, OpPricePercent, OpQuantityAdd, OpQuantitySub, OpRemove}
}

// Known reports whether op is one of the recognised operations.
func (op Operation) Known() bool {
	switch op {
	case OpAvailable, OpPriceAbs, OpPricePercent, OpQuantityAdd, OpQuantitySub, OpRemove:
		return true
	default:
		return false
	}
}

// UpdateCommand is one instruction of an update batch.
type UpdateCommand struct {
	Name      string    `json:"name"`
	Operation Operation `json:"method"`
	Param     Param     `json:"param"`
}

func (c UpdateCommand) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.Operation, c.Name, c.Param)
}

// ParamKind identifies the dynamic type held by a Param.
type ParamKind uint8

// Param kinds.
const (
	ParamNone ParamKind = iota
	ParamNumber
	ParamBool
)

// Param is the operation-specific argument of an UpdateCommand: a number, a
// boolean or nothing.
type Param struct {
	kind ParamKind
	num  float64
	flag bool
}

// NumberParam returns a numeric Param.
func NumberParam(v float64) Param { return Param{kind: ParamNumber, num: v} }

// BoolParam returns a boolean Param.
func BoolParam(b bool) Param { return Param{kind: ParamBool, flag: b} }

// NoParam returns an empty Param.
func NoParam() Param { return Param{} }

// Kind returns the dynamic kind of the parameter.
func (p Param) Kind() ParamKind { return p.kind }

// Float returns the parameter as a number. Booleans convert to 1 or 0.
func (p Param) Float() (float64, bool) {
	switch p.kind {
	case ParamNumber:
		return p.num, true
	case ParamBool:
		if p.flag {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Int returns the parameter rounded half away from zero. Values outside the
// int64 range saturate at math.MinInt64 or math.MaxInt64.
func (p Param) Int() (int64, bool) {
	f, ok := p.Float()
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	f = math.Round(f)
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

// Bool returns the parameter as a boolean. Non-zero numbers are true.
func (p Param) Bool() (bool, bool) {
	switch p.kind {
	case ParamBool:
		return p.flag, true
	case ParamNumber:
		return p.num != 0, true
	default:
		return false, false
	}
}

func (p Param) String() string {
	switch p.kind {
	case ParamNumber:
		return fmt.Sprintf("%g", p.num)
	case ParamBool:
		return fmt.Sprintf("%t", p.flag)
	default:
		return "none"
	}
}

// Value returns the parameter as a plain Go value (float64, bool or nil).
func (p Param) Value() any {
	switch p.kind {
	case ParamNumber:
		return p.num
	case ParamBool:
		return p.flag
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (p Param) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// UnmarshalJSON implements json.Unmarshaler. Numbers and booleans keep their
// value; null, strings, objects and arrays yield an empty Param, which the
// applicator counts as malformed. Invalid JSON is an error.
func (p *Param) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*p = NoParam()
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("decode param: %w", err)
	}
	switch t := v.(type) {
	case bool:
		*p = BoolParam(t)
	case float64:
		*p = NumberParam(t)
	default:
		*p = NoParam()
	}
	return nil
}

// ParamFromValue converts a decoded value (from pickle, YAML or JSON) into a
// Param. Unsupported types yield an empty Param and false.
func ParamFromValue(v any) (Param, bool) {
	switch t := v.(type) {
	case nil:
		return NoParam(), true
	case bool:
		return BoolParam(t), true
	case int:
		return NumberParam(float64(t)), true
	case int32:
		return NumberParam(float64(t)), true
	case int64:
		return NumberParam(float64(t)), true
	case uint64:
		return NumberParam(float64(t)), true
	case float32:
		return NumberParam(float64(t)), true
	case float64:
		return NumberParam(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return NoParam(), false
		}
		return NumberParam(f), true
	default:
		return NoParam(), false
	}
}
