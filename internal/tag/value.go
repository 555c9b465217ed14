package tag

import (
	"fmt"
	"strconv"
	"strings"
)

// DataType is the closed set of types a tag can carry. Protocol bridges
// switch exhaustively over it; adding a type here must be accompanied by
// encode/decode support in every bridge.
type DataType uint8

const (
	TypeNull DataType = iota
	TypeBool
	TypeInt32
	TypeFloat64
	TypeString
)

func (d DataType) String() string {
	switch d {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt32:
		return "int32"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	}
	return fmt.Sprintf("datatype(%d)", uint8(d))
}

// Value is a tagged variant carrying exactly one of the supported types.
// The zero value is the null value.
type Value struct {
	dt DataType
	b  bool
	i  int32
	f  float64
	s  string
}

func Null() Value             { return Value{} }
func Bool(v bool) Value       { return Value{dt: TypeBool, b: v} }
func Int32(v int32) Value     { return Value{dt: TypeInt32, i: v} }
func Float64(v float64) Value { return Value{dt: TypeFloat64, f: v} }
func String(v string) Value   { return Value{dt: TypeString, s: v} }

func (v Value) Type() DataType { return v.dt }

func (v Value) Bool() bool       { return v.b }
func (v Value) Int32() int32     { return v.i }
func (v Value) Float64() float64 { return v.f }
func (v Value) Str() string      { return v.s }

// Equal reports whether both values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.dt != o.dt {
		return false
	}
	switch v.dt {
	case TypeNull:
		return true
	case TypeBool:
		return v.b == o.b
	case TypeInt32:
		return v.i == o.i
	case TypeFloat64:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	}
	return false
}

// Text renders the value as its canonical wire text. Booleans render as
// lowercase "true"/"false" so the publish and parse paths round-trip.
func (v Value) Text() string {
	switch v.dt {
	case TypeNull:
		return ""
	case TypeBool:
		if v.b {
			return "true"
		}
		return "false"
	case TypeInt32:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	}
	return ""
}

// Native returns the value as a plain Go value, for JSON rendering.
func (v Value) Native() any {
	switch v.dt {
	case TypeBool:
		return v.b
	case TypeInt32:
		return v.i
	case TypeFloat64:
		return v.f
	case TypeString:
		return v.s
	}
	return nil
}

// Parse decodes text into a value of the requested datatype. Booleans
// accept "true", "1" and "yes" case-insensitively.
func Parse(dt DataType, text string) (Value, error) {
	switch dt {
	case TypeBool:
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "true", "1", "yes":
			return Bool(true), nil
		case "false", "0", "no":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("cannot parse %q as bool", text)
	case TypeInt32:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as int32: %w", text, err)
		}
		return Int32(int32(n)), nil
	case TypeFloat64:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as float64: %w", text, err)
		}
		return Float64(f), nil
	case TypeString:
		return String(text), nil
	}
	return Value{}, fmt.Errorf("cannot parse value of type %s", dt)
}

// FromNative converts a decoded JSON value into a Value of the requested
// datatype. JSON numbers arrive as float64.
func FromNative(dt DataType, raw any) (Value, error) {
	switch dt {
	case TypeBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case TypeInt32:
		switch n := raw.(type) {
		case float64:
			return Int32(int32(n)), nil
		case int:
			return Int32(int32(n)), nil
		case int32:
			return Int32(n), nil
		}
	case TypeFloat64:
		switch n := raw.(type) {
		case float64:
			return Float64(n), nil
		case int:
			return Float64(float64(n)), nil
		}
	case TypeString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	}
	return Value{}, fmt.Errorf("value %v (%T) does not match datatype %s", raw, raw, dt)
}
