package encryptedquery

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Legacy documents keep their encrypted properties in one ciphertext under
// the "_ei" member:
//
//	{"id":"1","name":"x","_ei":{"_ef":1,"_ea":"...","_en":"dek1","_ep":["/ssn"],"_ed":"<base64>"}}
//
// _ed decrypts to a JSON object holding the encrypted properties.
const (
	legacyInfoKey       = "_ei"
	legacyFormatVersion = 1
)

type legacyEncryptionInfo struct {
	FormatVersion       int      `json:"_ef"`
	Algorithm           string   `json:"_ea"`
	DataEncryptionKeyID string   `json:"_en"`
	EncryptedPaths      []string `json:"_ep"`
	EncryptedData       []byte   `json:"_ed"`
}

// LegacyDecryptor decrypts documents in the legacy whole-document format.
// Documents without an "_ei" member pass through unchanged.
type LegacyDecryptor struct {
	encryptor Encryptor
}

// NewLegacyDecryptor creates a LegacyDecryptor.
func NewLegacyDecryptor(encryptor Encryptor) (*LegacyDecryptor, error) {
	if encryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "legacy decryptor needs an encryptor")
	}
	return &LegacyDecryptor{encryptor: encryptor}, nil
}

// DecryptDocument removes the "_ei" member of doc and appends the properties
// it held, decrypted.
func (d *LegacyDecryptor) DecryptDocument(ctx context.Context, doc []byte) ([]byte, error) {
	if !json.Valid(doc) {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, "document is not valid JSON")
	}
	members, err := objectMembers(doc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, err.Error())
	}

	idx := -1
	for i, m := range members {
		if m.key == legacyInfoKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return doc, nil
	}

	var info legacyEncryptionInfo
	if err := json.Unmarshal(members[idx].value, &info); err != nil {
		return nil, errors.Wrapf(ErrInvalidEncryptedValue, "%s: %v", legacyInfoKey, err)
	}
	if info.FormatVersion != legacyFormatVersion {
		return nil, errors.Wrapf(ErrInvalidEncryptedValue, "unsupported format version %d", info.FormatVersion)
	}
	if len(info.EncryptedData) == 0 {
		return nil, errors.Wrapf(ErrInvalidEncryptedValue, "%s has no encrypted data", legacyInfoKey)
	}

	plaintext, err := d.encryptor.Decrypt(ctx, info.EncryptedData, info.DataEncryptionKeyID, info.Algorithm)
	if err != nil {
		return nil, &cryptoError{sentinel: ErrDecryptFailed, path: "/" + legacyInfoKey, err: err}
	}
	if !json.Valid(plaintext) {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, "decrypted properties are not valid JSON")
	}
	decrypted, err := objectMembers(plaintext)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidEncryptedValue, "decrypted properties are not a JSON object")
	}

	out := make([]jsonMember, 0, len(members)-1+len(decrypted))
	out = append(out, members[:idx]...)
	out = append(out, members[idx+1:]...)
	out = append(out, decrypted...)
	return writeObject(out), nil
}

// EncryptLegacyDocument moves the top-level properties named by paths into an
// encrypted "_ei" member. Paths absent from doc are skipped.
func EncryptLegacyDocument(ctx context.Context, encryptor Encryptor, doc []byte, keyID, algorithm string, paths []string) ([]byte, error) {
	if encryptor == nil {
		return nil, errors.Wrap(ErrNilCollaborator, "legacy encryption needs an encryptor")
	}
	wanted := make(map[string]bool, len(paths))
	for _, path := range paths {
		if err := validatePath(path); err != nil {
			return nil, err
		}
		wanted[path[1:]] = true
	}

	if !json.Valid(doc) {
		return nil, errors.Wrap(errNotJSONObject, "invalid JSON")
	}
	members, err := objectMembers(doc)
	if err != nil {
		return nil, err
	}

	var kept, moved []jsonMember
	info := legacyEncryptionInfo{
		FormatVersion:       legacyFormatVersion,
		Algorithm:           algorithm,
		DataEncryptionKeyID: keyID,
		EncryptedPaths:      []string{},
	}
	for _, m := range members {
		switch {
		case m.key == legacyInfoKey:
			return nil, errors.Wrap(ErrInvalidEncryptedValue, "document is already encrypted")
		case wanted[m.key]:
			moved = append(moved, m)
			info.EncryptedPaths = append(info.EncryptedPaths, "/"+m.key)
		default:
			kept = append(kept, m)
		}
	}

	ct, err := encryptor.Encrypt(ctx, writeObject(moved), keyID, algorithm)
	if err != nil {
		return nil, &cryptoError{sentinel: ErrEncryptFailed, path: "/" + legacyInfoKey, err: err}
	}
	info.EncryptedData = ct

	value, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	ei, err := newMember(legacyInfoKey, value)
	if err != nil {
		return nil, err
	}
	return writeObject(append(kept, ei)), nil
}
