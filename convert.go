package encryptedquery

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/ai8future/encryptedquery/sqlparse"
)

// ConvertLiteral reads a predicate literal as the given data type.
//
// Strings must be quoted, numbers and booleans must not be. null converts to
// nil for every type. There is no implicit coercion: "42" is not a Long and
// 42 is not a String.
func ConvertLiteral(text string, dataType DataType) (any, error) {
	if strings.EqualFold(text, "null") {
		return nil, nil
	}
	quoted := len(text) > 0 && (text[0] == '"' || text[0] == '\'')

	switch dataType {
	case DataTypeString:
		if !quoted {
			return nil, errors.Wrapf(ErrTypeConversion, "%s is not a string literal", text)
		}
		s, err := sqlparse.Unquote(text)
		if err != nil {
			return nil, errors.Wrapf(ErrTypeConversion, "%s: %v", text, err)
		}
		return s, nil

	case DataTypeLong:
		if quoted {
			return nil, errors.Wrapf(ErrTypeConversion, "%s is not an integer literal", text)
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrTypeConversion, "%s is not a 64-bit integer", text)
		}
		return v, nil

	case DataTypeDouble:
		if quoted {
			return nil, errors.Wrapf(ErrTypeConversion, "%s is not a numeric literal", text)
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrTypeConversion, "%s is not a finite double", text)
		}
		return v, nil

	case DataTypeBoolean:
		switch strings.ToLower(text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errors.Wrapf(ErrTypeConversion, "%s is not a boolean literal", text)
	}

	return nil, errors.Wrapf(ErrTypeConversion, "unsupported data type %q", dataType)
}

// FormatLiteral renders a parameter value as query literal text.
func FormatLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		b, err := json.Marshal(x)
		if err != nil {
			return "", errors.Wrap(ErrTypeConversion, err.Error())
		}
		return string(b), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case json.Number:
		return x.String(), nil
	case []byte:
		// Binary values travel as base64 strings.
		b, err := json.Marshal(x)
		if err != nil {
			return "", errors.Wrap(ErrTypeConversion, err.Error())
		}
		return string(b), nil
	}

	if i, ok := toInt64(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if u, ok := v.(uint64); ok {
		return strconv.FormatUint(u, 10), nil
	}
	return "", errors.Wrapf(ErrTypeConversion, "cannot render %T as a literal", v)
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.Wrapf(ErrTypeConversion, "%v has no literal form", f)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// toInt64 converts any Go integer kind that fits in an int64.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}
