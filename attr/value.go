package attr

import (
	"math"
	"strconv"
)

// Kind represents the type of a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
)

// Value is a small union of the tag types a span or metric label can carry.
// Numbers are stored inline without allocation.
type Value struct {
	kind Kind
	num  uint64
	str  string
}

// Kind returns the type of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// StringValue creates a Value from a string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int64Value creates a Value from an int64.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: uint64(n)}
}

// Float64Value creates a Value from a float64.
func Float64Value(f float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(f)}
}

// BoolValue creates a Value from a bool.
func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// AsString returns the string form of a string value, or "" for other kinds.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// AsInt64 returns the value as an int64. Panics if kind != KindInt64.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		panic("Value.AsInt64: not an int64")
	}
	return int64(v.num)
}

// AsFloat64 returns the value as a float64. Panics if kind != KindFloat64.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		panic("Value.AsFloat64: not a float64")
	}
	return math.Float64frombits(v.num)
}

// AsBool returns the value as a bool. Panics if kind != KindBool.
func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic("Value.AsBool: not a bool")
	}
	return v.num != 0
}

// AsAny returns the underlying Go value.
func (v Value) AsAny() any {
	switch v.kind {
	case KindInt64:
		return int64(v.num)
	case KindFloat64:
		return math.Float64frombits(v.num)
	case KindBool:
		return v.num != 0
	default:
		return v.str
	}
}

// String renders the value the way it is written onto the wire and into exports.
func (v Value) String() string {
	switch v.kind {
	case KindInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	default:
		return v.str
	}
}
