package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a dataset column or value.
type Kind int

const (
	KindInteger Kind = iota
	KindReal
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	default:
		return "text"
	}
}

// Value is a scalar cell: an integer, a real or a text.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Real returns a real value.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// ParseValue reads a raw field as an integer, else a real, else a text.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Real(f)
	}
	return Text(raw)
}

// Kind reports the value type.
func (v Value) Kind() Kind { return v.kind }

// IsNumeric reports whether the value is an integer or a real.
func (v Value) IsNumeric() bool { return v.kind != KindText }

// Int64 returns the integer payload. ok is false for non-integers.
func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// Float64 returns the numeric payload, widening integers. ok is false for text.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindReal:
		return v.f, true
	default:
		return 0, false
	}
}

// String renders the value so that ParseValue reads back the same kind: reals always
// carry a decimal point or an exponent.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) || strings.ContainsAny(s, ".e") {
			return s
		}
		return s + ".0"
	default:
		return v.s
	}
}

// widen converts the value to kind k: integers to reals, anything to text.
func (v Value) widen(k Kind) Value {
	switch {
	case v.kind == k:
		return v
	case k == KindReal && v.kind == KindInteger:
		return Real(float64(v.i))
	case k == KindText:
		return Text(v.String())
	default:
		return v
	}
}

// Equal compares kinds and payloads; reals match within 1e-8.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindReal:
		if math.IsNaN(v.f) || math.IsNaN(o.f) {
			return math.IsNaN(v.f) && math.IsNaN(o.f)
		}
		return math.Abs(v.f-o.f) <= 1e-8
	default:
		return v.s == o.s
	}
}

// MarshalJSON encodes numbers as JSON numbers. Non-finite reals become strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(v.String())
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	default:
		return json.Marshal(v.s)
	}
}
