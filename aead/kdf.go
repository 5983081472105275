package aead

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Info strings for HKDF derivation.
const (
	infoEncryption = "encryptedquery-encryption"
	infoNonce      = "encryptedquery-synthetic-nonce"
)

// derivedKeys holds the keys derived from one master key.
type derivedKeys struct {
	encryption [32]byte // XSalsa20-Poly1305 key
	nonce      [32]byte // HMAC-SHA256 key for deterministic nonces
}

// deriveKeys derives the encryption and nonce keys from a 32-byte master key
// using HKDF-SHA256 with distinct info strings.
func deriveKeys(masterKey []byte) (*derivedKeys, error) {
	if len(masterKey) != 32 {
		return nil, ErrInvalidKeySize
	}

	keys := &derivedKeys{}
	if err := hkdfDerive(masterKey, infoEncryption, keys.encryption[:]); err != nil {
		return nil, err
	}
	if err := hkdfDerive(masterKey, infoNonce, keys.nonce[:]); err != nil {
		return nil, err
	}
	return keys, nil
}

// hkdfDerive performs HKDF-SHA256 key derivation with the given info string.
func hkdfDerive(masterKey []byte, info string, out []byte) error {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	_, err := io.ReadFull(reader, out)
	return err
}

// syntheticNonce returns the first 24 bytes of HMAC-SHA256(key, data).
func syntheticNonce(key *[32]byte, data []byte) [nonceSize]byte {
	h := hmac.New(sha256.New, key[:])
	h.Write(data)
	var nonce [nonceSize]byte
	copy(nonce[:], h.Sum(nil))
	return nonce
}

func (k *derivedKeys) zero() {
	for i := range k.encryption {
		k.encryption[i] = 0
	}
	for i := range k.nonce {
		k.nonce[i] = 0
	}
}
