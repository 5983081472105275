package encryptedquery

import (
	"bytes"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// jsonMember is one member of a JSON object. rawKey and value alias the
// scanned buffer; off and end locate value in it.
type jsonMember struct {
	key    string
	rawKey []byte
	value  []byte
	off    int
	end    int
}

var errNotJSONObject = errors.New("not a JSON object")

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	return i
}

// isJSONObject reports whether the JSON value in raw is an object.
func isJSONObject(raw []byte) bool {
	i := skipSpace(raw, 0)
	return i < len(raw) && raw[i] == '{'
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// skipString returns the index just past the string starting at data[i].
func skipString(data []byte, i int) (int, error) {
	if i >= len(data) || data[i] != '"' {
		return 0, errors.Errorf("expected string at offset %d", i)
	}
	for j := i + 1; j < len(data); j++ {
		switch data[j] {
		case '\\':
			j++
		case '"':
			return j + 1, nil
		}
	}
	return 0, errors.Errorf("unterminated string at offset %d", i)
}

// skipValue returns the index just past the value starting at data[i].
func skipValue(data []byte, i int) (int, error) {
	if i >= len(data) {
		return 0, errors.New("unexpected end of JSON")
	}

	switch data[i] {
	case '"':
		return skipString(data, i)
	case '{', '[':
		depth := 0
		for j := i; j < len(data); j++ {
			switch data[j] {
			case '"':
				end, err := skipString(data, j)
				if err != nil {
					return 0, err
				}
				j = end - 1
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return j + 1, nil
				}
			}
		}
		return 0, errors.Errorf("unterminated value at offset %d", i)
	default:
		j := i
		for j < len(data) && !isSpace(data[j]) && data[j] != ',' && data[j] != '}' && data[j] != ']' {
			j++
		}
		if j == i {
			return 0, errors.Errorf("expected value at offset %d", i)
		}
		return j, nil
	}
}

// objectMembers splits a JSON object into its members in document order
// without decoding the values.
func objectMembers(data []byte) ([]jsonMember, error) {
	i := skipSpace(data, 0)
	if i >= len(data) || data[i] != '{' {
		return nil, errNotJSONObject
	}
	i = skipSpace(data, i+1)
	if i < len(data) && data[i] == '}' {
		return nil, nil
	}

	var members []jsonMember
	for {
		i = skipSpace(data, i)
		keyEnd, err := skipString(data, i)
		if err != nil {
			return nil, err
		}
		m := jsonMember{rawKey: data[i:keyEnd]}
		if err := json.Unmarshal(m.rawKey, &m.key); err != nil {
			return nil, errors.Wrapf(err, "member name at offset %d", i)
		}

		i = skipSpace(data, keyEnd)
		if i >= len(data) || data[i] != ':' {
			return nil, errors.Errorf("expected ':' at offset %d", i)
		}
		i = skipSpace(data, i+1)
		end, err := skipValue(data, i)
		if err != nil {
			return nil, err
		}
		m.value, m.off, m.end = data[i:end], i, end
		members = append(members, m)

		i = skipSpace(data, end)
		if i >= len(data) {
			return nil, errors.New("unexpected end of JSON object")
		}
		switch data[i] {
		case ',':
			i++
		case '}':
			return members, nil
		default:
			return nil, errors.Errorf("expected ',' or '}' at offset %d", i)
		}
	}
}

// arrayElements splits a JSON array into its raw elements.
func arrayElements(data []byte) ([][]byte, bool, error) {
	i := skipSpace(data, 0)
	if i >= len(data) || data[i] != '[' {
		return nil, false, nil
	}
	i = skipSpace(data, i+1)
	if i < len(data) && data[i] == ']' {
		return nil, true, nil
	}

	var elems [][]byte
	for {
		i = skipSpace(data, i)
		end, err := skipValue(data, i)
		if err != nil {
			return nil, true, err
		}
		elems = append(elems, data[i:end])

		i = skipSpace(data, end)
		if i >= len(data) {
			return nil, true, errors.New("unexpected end of JSON array")
		}
		switch data[i] {
		case ',':
			i++
		case ']':
			return elems, true, nil
		default:
			return nil, true, errors.Errorf("expected ',' or ']' at offset %d", i)
		}
	}
}

// writeObject serializes members as a compact JSON object.
func writeObject(members []jsonMember) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(m.rawKey)
		buf.WriteByte(':')
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// writeArray serializes elements as a compact JSON array.
func writeArray(elems [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func newMember(key string, value []byte) (jsonMember, error) {
	rawKey, err := json.Marshal(key)
	if err != nil {
		return jsonMember{}, err
	}
	return jsonMember{key: key, rawKey: rawKey, value: value}, nil
}
