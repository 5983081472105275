package encryptedquery

import (
	"context"

	"github.com/pkg/errors"
)

// Encryptor is the crypto collaborator. Implementations resolve keyID and
// algorithm themselves; aead.KeyStore is one.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte, keyID, algorithm string) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte, keyID, algorithm string) ([]byte, error)
}

// cryptoError keeps both the package sentinel and the collaborator's error
// visible to errors.Is.
type cryptoError struct {
	sentinel error
	path     string
	err      error
}

func (e *cryptoError) Error() string {
	return e.sentinel.Error() + ": " + e.path + ": " + e.err.Error()
}

func (e *cryptoError) Unwrap() []error {
	return []error{e.sentinel, e.err}
}

func encryptValue(ctx context.Context, enc Encryptor, reg SerializerProvider, path string, setting PropertyEncryptionSetting, v any) ([]byte, error) {
	ser, err := reg.Get(setting.PropertyDataType, setting.IsSQLCompatible)
	if err != nil {
		return nil, err
	}
	plaintext, err := ser.Serialize(v)
	if err != nil {
		return nil, errors.Wrapf(err, "property %s", path)
	}
	ct, err := enc.Encrypt(ctx, plaintext, setting.DataEncryptionKeyID, setting.EncryptionAlgorithm)
	if err != nil {
		return nil, &cryptoError{sentinel: ErrEncryptFailed, path: path, err: err}
	}
	return ct, nil
}

func decryptValue(ctx context.Context, enc Encryptor, reg SerializerProvider, path string, setting PropertyEncryptionSetting, ct []byte) (any, error) {
	plaintext, err := enc.Decrypt(ctx, ct, setting.DataEncryptionKeyID, setting.EncryptionAlgorithm)
	if err != nil {
		return nil, &cryptoError{sentinel: ErrDecryptFailed, path: path, err: err}
	}
	ser, err := reg.Get(setting.PropertyDataType, setting.IsSQLCompatible)
	if err != nil {
		return nil, err
	}
	v, err := ser.Deserialize(plaintext)
	if err != nil {
		return nil, errors.Wrapf(err, "property %s", path)
	}
	return v, nil
}
