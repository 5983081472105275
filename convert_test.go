package encryptedquery

import (
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestConvertLiteral(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		dataType DataType
		want     any
	}{
		{"double quoted", `"123-45-6789"`, DataTypeString, "123-45-6789"},
		{"single quoted", `'it\'s'`, DataTypeString, "it's"},
		{"escapes", `"a\"b\\c"`, DataTypeString, `a"b\c`},
		{"empty string", `""`, DataTypeString, ""},
		{"unicode", `"こんにちは"`, DataTypeString, "こんにちは"},
		{"long", "42", DataTypeLong, int64(42)},
		{"negative long", "-7", DataTypeLong, int64(-7)},
		{"max long", "9223372036854775807", DataTypeLong, int64(math.MaxInt64)},
		{"double", "1.5", DataTypeDouble, 1.5},
		{"integral double", "42", DataTypeDouble, 42.0},
		{"exponent", "1e3", DataTypeDouble, 1000.0},
		{"true", "true", DataTypeBoolean, true},
		{"false", "FALSE", DataTypeBoolean, false},
		{"null string", "null", DataTypeString, nil},
		{"null long", "NULL", DataTypeLong, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertLiteral(tt.text, tt.dataType)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConvertLiteral_Errors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		dataType DataType
	}{
		{"unquoted string", "42", DataTypeString},
		{"bool as string", "true", DataTypeString},
		{"quoted long", `"42"`, DataTypeLong},
		{"fractional long", "1.5", DataTypeLong},
		{"overflow long", "9223372036854775808", DataTypeLong},
		{"hex long", "0x10", DataTypeLong},
		{"quoted double", `"1.5"`, DataTypeDouble},
		{"infinite double", "1e999", DataTypeDouble},
		{"number as bool", "1", DataTypeBoolean},
		{"quoted bool", `"true"`, DataTypeBoolean},
		{"unknown type", `"x"`, DataType("Date")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertLiteral(tt.text, tt.dataType)
			require.ErrorIs(t, err, ErrTypeConversion)
		})
	}
}

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "null"},
		{"string", "abc", `"abc"`},
		{"escaped string", `a"b`, `"a\"b"`},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"int8", int8(-8), "-8"},
		{"uint32", uint32(7), "7"},
		{"big uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"float64", 1.5, "1.5"},
		{"float32", float32(0.25), "0.25"},
		{"json number", json.Number("12.50"), "12.50"},
		{"bytes", []byte{1, 2}, `"AQI="`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatLiteral(tt.v)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormatLiteral_Errors(t *testing.T) {
	for _, v := range []any{math.NaN(), math.Inf(1), struct{}{}, []string{"a"}} {
		_, err := FormatLiteral(v)
		require.ErrorIs(t, err, ErrTypeConversion, "%v", v)
	}
}

// Literals rendered from parameter values read back as the same value.
func TestFormatLiteral_ConvertBack(t *testing.T) {
	tests := []struct {
		v        any
		dataType DataType
		want     any
	}{
		{"123-45-6789", DataTypeString, "123-45-6789"},
		{int32(42), DataTypeLong, int64(42)},
		{-0.125, DataTypeDouble, -0.125},
		{false, DataTypeBoolean, false},
	}

	for _, tt := range tests {
		lit, err := FormatLiteral(tt.v)
		require.NoError(t, err)
		got, err := ConvertLiteral(lit, tt.dataType)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}
