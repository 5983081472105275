package encryptedquery

import (
	"context"
	"encoding/base64"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// DocumentDecryptor decrypts one JSON document object.
type DocumentDecryptor interface {
	DecryptDocument(ctx context.Context, doc []byte) ([]byte, error)
}

// PropertyEncryptor encrypts and decrypts the top-level properties named by a
// policy. An encrypted property holds its ciphertext as a base64 string;
// null values are stored as null.
type PropertyEncryptor struct {
	policy      *ClientEncryptionPolicy
	encryptor   Encryptor
	serializers SerializerProvider
}

// NewPropertyEncryptor creates a PropertyEncryptor.
func NewPropertyEncryptor(policy *ClientEncryptionPolicy, encryptor Encryptor, opts ...Option) (*PropertyEncryptor, error) {
	if policy == nil || encryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "property encryptor needs a policy and an encryptor")
	}
	cfg := newConfig(opts)
	return &PropertyEncryptor{policy: policy, encryptor: encryptor, serializers: cfg.serializers}, nil
}

// DecryptDocument replaces every encrypted property of doc with its plaintext
// JSON value. Member order is kept. A document with no encrypted property is
// returned as is.
func (e *PropertyEncryptor) DecryptDocument(ctx context.Context, doc []byte) ([]byte, error) {
	if !json.Valid(doc) {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, "document is not valid JSON")
	}
	members, err := objectMembers(doc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, err.Error())
	}

	changed := false
	for i := range members {
		m := &members[i]
		path := "/" + m.key
		setting, ok := e.policy.Lookup(path)
		if !ok || isJSONNull(m.value) {
			continue
		}

		ct, err := decodeCiphertext(path, m.value)
		if err != nil {
			return nil, err
		}
		v, err := decryptValue(ctx, e.encryptor, e.serializers, path, setting, ct)
		if err != nil {
			return nil, err
		}
		plain, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "property %s", path)
		}
		m.value = plain
		changed = true
	}

	if !changed {
		return doc, nil
	}
	return writeObject(members), nil
}

// EncryptDocument replaces every policy-covered, non-null top-level property
// of doc with the base64 ciphertext of its value.
func (e *PropertyEncryptor) EncryptDocument(ctx context.Context, doc []byte) ([]byte, error) {
	if !json.Valid(doc) {
		return nil, errors.Wrap(errNotJSONObject, "invalid JSON")
	}
	members, err := objectMembers(doc)
	if err != nil {
		return nil, err
	}

	for i := range members {
		m := &members[i]
		path := "/" + m.key
		setting, ok := e.policy.Lookup(path)
		if !ok || isJSONNull(m.value) {
			continue
		}

		v, err := decodeTyped(m.value, setting.PropertyDataType)
		if err != nil {
			return nil, errors.Wrapf(err, "property %s", path)
		}
		ct, err := encryptValue(ctx, e.encryptor, e.serializers, path, setting, v)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(base64.StdEncoding.EncodeToString(ct))
		if err != nil {
			return nil, err
		}
		m.value = encoded
	}
	return writeObject(members), nil
}

func decodeCiphertext(path string, raw []byte) ([]byte, error) {
	var encoded string
	if raw[0] != '"' || json.Unmarshal(raw, &encoded) != nil {
		return nil, errors.Wrapf(ErrInvalidEncryptedValue, "property %s is not a string", path)
	}
	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidEncryptedValue, "property %s is not base64", path)
	}
	return ct, nil
}

// decodeTyped decodes a JSON value as the Go type serialized for dataType.
func decodeTyped(raw []byte, dataType DataType) (any, error) {
	if dataType == DataTypeString {
		var s string
		if raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
			return nil, errors.Wrapf(ErrTypeMismatch, "want string, got %s", raw)
		}
		return s, nil
	}
	if raw[0] == '"' {
		return nil, errors.Wrapf(ErrTypeMismatch, "want %s, got string", dataType)
	}
	return ConvertLiteral(string(raw), dataType)
}
