package telemetry

import (
	"fmt"
	"strconv"
)

// Kind discriminates the cell types a telemetry row can carry.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a single loosely typed cell of a telemetry row. Exporters emit
// heterogeneous tables, so every cell is one of string, number, bool or null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Null is the absent/missing cell value.
var Null = Value{kind: KindNull}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromAny converts a decoded JSON value into a Value. Unsupported shapes
// (nested objects, arrays) are stringified via fmt so no data is dropped.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case string:
		return String(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		return Bool(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Kind returns the discriminator for the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string form of the value. Numbers and bools are
// rendered; null yields ("", false).
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		return "", false
	}
}

// AsFloat returns the numeric form of the value. Numeric strings parse;
// anything else yields (0, false).
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsInt returns the value truncated to an integer, if numeric.
func (v Value) AsInt() (int64, bool) {
	f, ok := v.AsFloat()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// AsBool returns the boolean form of the value. Numbers follow the 0/non-0
// convention; the strings "true"/"false" (any case) and "1"/"0" parse.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindNumber:
		return v.num != 0, true
	case KindString:
		b, err := strconv.ParseBool(v.str)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// Interface returns the value as a plain interface for JSON encoding.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}
