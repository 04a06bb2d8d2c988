// Package value models the dynamically typed cell values returned by query
// executors. A Value is an explicit tagged variant (Null, Bool, Number,
// String) rather than an untyped interface, so classification and rendering
// logic can dispatch on the tag.
package value

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNull is the SQL NULL / missing value.
	KindNull Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindNumber is a numeric value (integral or floating point).
	KindNumber
	// KindString is a text value.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is one dynamically typed cell value.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Row maps column names to cell values. Keys are exactly the columns the
// executor returned for that query, not necessarily all table columns.
type Row map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns a numeric value from an integer.
func Int(n int64) Value { return Value{kind: KindNumber, n: float64(n)} }

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean content. Only meaningful for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric content. Only meaningful for KindNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsString returns the text content. Only meaningful for KindString.
func (v Value) AsString() string { return v.s }

// String renders the value for plain display. Numbers drop a trailing ".0",
// null renders as the empty marker used by terminal output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "(null)"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	default:
		return v.s
	}
}

// formatNumber renders integral floats without a fractional part, matching
// how backends echo integer columns.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// FromAny converts a decoded JSON value (nil, bool, float64, json.Number,
// string) into a Value. Unrecognized types are rendered through fmt as a
// last resort so executor adapters never lose data.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	default:
		return String(fmt.Sprint(t))
	}
}

// ToAny converts a Value to its natural Go representation for JSON encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	default:
		return v.s
	}
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes any scalar JSON value. Objects and arrays are kept
// as their compact textual form; shape-based classification downstream
// decides whether to present them structurally.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	switch x.(type) {
	case map[string]any, []any:
		*v = String(string(data))
	default:
		*v = FromAny(x)
	}
	return nil
}
