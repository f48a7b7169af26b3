// Package tabular reads and writes column-named tables from the columnar and
// row-oriented files the adjustment pipeline consumes.
package tabular

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// Value is a single dynamically typed cell.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Null returns a null cell.
func Null() Value { return Value{} }

// Int returns an integer cell.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float cell. NaN is stored as null.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{kind: KindFloat, f: v}
}

// String returns a string cell.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Time returns a timestamp cell.
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Kind returns the cell kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell holds no value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 converts numeric cells (and numeric strings) to float64.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int64 converts integral cells to int64. Floats with a fractional part are rejected.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) {
			return 0, false
		}
		return int64(v.f), true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// TimeValue returns the timestamp held by a time cell.
func (v Value) TimeValue() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// Text returns the cell formatted as text. Null cells format as "".
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindTime:
		return v.t.Format("2006-01-02 15:04:05.000")
	default:
		return ""
	}
}

// Compare orders two cells. Nulls sort after everything else, numbers compare
// numerically, times chronologically and everything else as text.
func Compare(a, b Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return 1
	case b.IsNull():
		return -1
	}

	if a.kind == KindTime && b.kind == KindTime {
		return a.t.Compare(b.t)
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		if a.kind == KindInt && b.kind == KindInt {
			return cmpOrdered(a.i, b.i)
		}
		af, _ := a.Float64()
		bf, _ := b.Float64()
		return cmpOrdered(af, bf)
	}
	return strings.Compare(a.Text(), b.Text())
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindFloat
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// parseCell infers a cell from text: empty is null, then int, then float, then string.
// Digits with a leading zero, such as the security code 000001, stay text.
func parseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null()
	}
	if hasLeadingZero(s) {
		return String(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}

// hasLeadingZero reports text like 000001 or -007 whose zero padding a number would drop.
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}
