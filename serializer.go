package encryptedquery

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Serializer converts a typed property value to and from the bytes that are encrypted.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(b []byte) (any, error)
}

// SerializerProvider is the serializer registry collaborator.
type SerializerProvider interface {
	Get(dataType DataType, sqlCompatible bool) (Serializer, error)
}

type serializerKey struct {
	dataType      DataType
	sqlCompatible bool
}

// SerializerRegistry maps a data type and compatibility mode to a Serializer.
//
// The standard encodings are UTF-8 strings, a one-byte boolean and big-endian
// int64 and IEEE-754 doubles. The SQL-compatible encodings match the column
// types nvarchar, bit, bigint and float: UTF-16LE strings, a one-byte boolean
// and little-endian int64 and doubles.
type SerializerRegistry struct {
	serializers map[serializerKey]Serializer
}

// NewSerializerRegistry returns a registry with every supported combination.
func NewSerializerRegistry() *SerializerRegistry {
	return &SerializerRegistry{serializers: map[serializerKey]Serializer{
		{DataTypeString, false}:  stringSerializer{},
		{DataTypeString, true}:   utf16Serializer{},
		{DataTypeBoolean, false}: boolSerializer{},
		{DataTypeBoolean, true}:  boolSerializer{},
		{DataTypeLong, false}:    longSerializer{order: binary.BigEndian},
		{DataTypeLong, true}:     longSerializer{order: binary.LittleEndian},
		{DataTypeDouble, false}:  doubleSerializer{order: binary.BigEndian},
		{DataTypeDouble, true}:   doubleSerializer{order: binary.LittleEndian},
	}}
}

var defaultRegistry = NewSerializerRegistry()

// Get returns the serializer for a data type and compatibility mode.
func (r *SerializerRegistry) Get(dataType DataType, sqlCompatible bool) (Serializer, error) {
	s, ok := r.serializers[serializerKey{dataType, sqlCompatible}]
	if !ok {
		return nil, errors.Wrapf(ErrSerializerNotFound, "type %q sql compatible %t", dataType, sqlCompatible)
	}
	return s, nil
}

func typeMismatch(want string, v any) error {
	return errors.Wrapf(ErrTypeMismatch, "want %s, got %T", want, v)
}

type stringSerializer struct{}

func (stringSerializer) Serialize(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeMismatch("string", v)
	}
	return []byte(s), nil
}

func (stringSerializer) Deserialize(b []byte) (any, error) {
	if !utf8.Valid(b) {
		return nil, errors.Wrap(ErrTypeMismatch, "invalid UTF-8")
	}
	return string(b), nil
}

type utf16Serializer struct{}

func (utf16Serializer) Serialize(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeMismatch("string", v)
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b, nil
}

func (utf16Serializer) Deserialize(b []byte) (any, error) {
	if len(b)%2 != 0 {
		return nil, errors.Wrapf(ErrTypeMismatch, "UTF-16 value has odd length %d", len(b))
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units)), nil
}

type boolSerializer struct{}

func (boolSerializer) Serialize(v any) ([]byte, error) {
	x, ok := v.(bool)
	if !ok {
		return nil, typeMismatch("bool", v)
	}
	if x {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (boolSerializer) Deserialize(b []byte) (any, error) {
	if len(b) != 1 {
		return nil, errors.Wrapf(ErrTypeMismatch, "boolean value has length %d", len(b))
	}
	return b[0] != 0, nil
}

type longSerializer struct {
	order binary.ByteOrder
}

func (s longSerializer) Serialize(v any) ([]byte, error) {
	x, ok := toInt64(v)
	if !ok {
		return nil, typeMismatch("int64", v)
	}
	b := make([]byte, 8)
	s.order.PutUint64(b, uint64(x))
	return b, nil
}

func (s longSerializer) Deserialize(b []byte) (any, error) {
	if len(b) != 8 {
		return nil, errors.Wrapf(ErrTypeMismatch, "long value has length %d", len(b))
	}
	return int64(s.order.Uint64(b)), nil
}

type doubleSerializer struct {
	order binary.ByteOrder
}

func (s doubleSerializer) Serialize(v any) ([]byte, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		return nil, typeMismatch("float64", v)
	}
	b := make([]byte, 8)
	s.order.PutUint64(b, math.Float64bits(f))
	return b, nil
}

func (s doubleSerializer) Deserialize(b []byte) (any, error) {
	if len(b) != 8 {
		return nil, errors.Wrapf(ErrTypeMismatch, "double value has length %d", len(b))
	}
	return math.Float64frombits(s.order.Uint64(b)), nil
}
