package w3

import "strconv"

type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	}
	return "string"
}

// Value is the value of a cookie or a form field.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
}

func Str(s string) Value     { return Value{kind: KindString, s: s} }
func Int(i int32) Value      { return Value{kind: KindInt, i: int64(i)} }
func Long(i int64) Value     { return Value{kind: KindLong, i: i} }
func Float(f float32) Value  { return Value{kind: KindFloat, f: float64(f)} }
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

func (v Value) Kind() Kind { return v.kind }

// String renders the canonical text of v. Floating point values use the
// shortest decimal form that reads back to the same value.
func (v Value) String() string {
	switch v.kind {
	case KindInt, KindLong:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	}
	return v.s
}
