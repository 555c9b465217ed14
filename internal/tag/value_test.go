package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueText(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"bool true lowercase", Bool(true), "true"},
		{"bool false lowercase", Bool(false), "false"},
		{"int32", Int32(-42), "-42"},
		{"float64 integral", Float64(100.0), "100"},
		{"float64 fractional", Float64(3.14159), "3.14159"},
		{"string passthrough", String("hello"), "hello"},
		{"null empty", Null(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.Text())
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		dt        DataType
		text      string
		expected  Value
		expectErr bool
	}{
		{"bool true", TypeBool, "true", Bool(true), false},
		{"bool uppercase", TypeBool, "TRUE", Bool(true), false},
		{"bool numeric", TypeBool, "1", Bool(true), false},
		{"bool yes", TypeBool, "yes", Bool(true), false},
		{"bool false", TypeBool, "false", Bool(false), false},
		{"bool zero", TypeBool, "0", Bool(false), false},
		{"bool garbage", TypeBool, "maybe", Value{}, true},
		{"int32", TypeInt32, "123", Int32(123), false},
		{"int32 negative", TypeInt32, "-7", Int32(-7), false},
		{"int32 whitespace", TypeInt32, " 55 ", Int32(55), false},
		{"int32 overflow", TypeInt32, "4294967296", Value{}, true},
		{"int32 garbage", TypeInt32, "abc", Value{}, true},
		{"float64", TypeFloat64, "21.5", Float64(21.5), false},
		{"float64 negative", TypeFloat64, "-273.15", Float64(-273.15), false},
		{"float64 garbage", TypeFloat64, "x", Value{}, true},
		{"string", TypeString, "anything goes", String("anything goes"), false},
		{"null unparseable", TypeNull, "", Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.dt, tt.text)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.expected), "got %v, want %v", got, tt.expected)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	values := []Value{
		Bool(true),
		Bool(false),
		Int32(-32768),
		Float64(3.14159),
		Float64(-273.15),
		String("door open"),
	}

	for _, v := range values {
		got, err := Parse(v.Type(), v.Text())
		require.NoError(t, err)
		assert.True(t, got.Equal(v), "round trip changed %v into %v", v, got)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Bool(true).Equal(Bool(true)))
	assert.False(t, Bool(true).Equal(Bool(false)))
	assert.False(t, Int32(1).Equal(Float64(1)))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(Bool(false)))
}

func TestFromNative(t *testing.T) {
	tests := []struct {
		name      string
		dt        DataType
		raw       any
		expected  Value
		expectErr bool
	}{
		{"json number to int32", TypeInt32, float64(42), Int32(42), false},
		{"json number to float64", TypeFloat64, float64(21.5), Float64(21.5), false},
		{"json bool", TypeBool, true, Bool(true), false},
		{"json string", TypeString, "v", String("v"), false},
		{"int to float64", TypeFloat64, 7, Float64(7), false},
		{"string to bool rejected", TypeBool, "true", Value{}, true},
		{"bool to int32 rejected", TypeInt32, true, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.dt, tt.raw)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.expected))
		})
	}
}
