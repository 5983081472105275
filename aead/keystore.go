package aead

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

// Algorithm names accepted by Encrypt and Decrypt.
const (
	AlgorithmRandomized    = "AEAD_XSalsa20_Poly1305_Randomized"
	AlgorithmDeterministic = "AEAD_XSalsa20_Poly1305_HMAC_SHA256_Deterministic"
)

func algorithmByte(algorithm string) (byte, error) {
	switch algorithm {
	case AlgorithmRandomized:
		return algRandomized, nil
	case AlgorithmDeterministic:
		return algDeterministic, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", algorithm)
	}
}

// KeyStore encrypts and decrypts values under named data encryption keys.
// It is safe for concurrent use.
type KeyStore struct {
	config *config
	closed atomic.Bool

	mu   sync.RWMutex
	keys map[string]*derivedKeys // keyID -> derived keys (cached)
}

// New creates a KeyStore. At least one WithKey or a WithKeyProvider option is required.
//
// Example:
//
//	store, err := aead.New(
//	    aead.WithKey("dek1", masterKey1),
//	    aead.WithKeyProvider(vaultProvider),
//	)
func New(opts ...Option) (*KeyStore, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.keys) == 0 && cfg.provider == nil {
		return nil, ErrNoKeys
	}
	if cfg.compressionAlgorithm != "" && cfg.compressionAlgorithm != CompressionZstd {
		return nil, ErrUnsupportedCompression
	}

	// Master keys are only needed for derivation.
	defer func() {
		for _, key := range cfg.keys {
			for i := range key {
				key[i] = 0
			}
		}
		cfg.keys = nil
	}()

	derived := make(map[string]*derivedKeys, len(cfg.keys))
	for keyID, masterKey := range cfg.keys {
		if len(keyID) == 0 || len(keyID) > 255 {
			return nil, ErrInvalidKeyID
		}
		dk, err := deriveKeys(masterKey)
		if err != nil {
			return nil, err
		}
		derived[keyID] = dk
	}

	return &KeyStore{config: cfg, keys: derived}, nil
}

// Encrypt seals plaintext under keyID with the named algorithm.
func (s *KeyStore) Encrypt(ctx context.Context, plaintext []byte, keyID, algorithm string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrKeyStoreClosed
	}
	alg, err := algorithmByte(algorithm)
	if err != nil {
		return nil, err
	}
	keys, err := s.keysFor(ctx, keyID)
	if err != nil {
		return nil, err
	}

	innerPlaintext := formatInnerPlaintext(alg, keyID, plaintext)

	var nonce [nonceSize]byte
	if alg == algDeterministic {
		nonce = syntheticNonce(&keys.nonce, innerPlaintext)
	} else {
		nonce = generateNonce()
	}

	toEncrypt, flag := maybeCompress(innerPlaintext, s.config.compressionThreshold, s.config.compressionDisabled)
	encrypted := secretbox.Seal(nil, toEncrypt, &nonce, &keys.encryption)

	return formatCiphertext(flag, alg, keyID, nonce, encrypted), nil
}

// Decrypt opens ciphertext produced by Encrypt with the same keyID and algorithm.
func (s *KeyStore) Decrypt(ctx context.Context, ciphertext []byte, keyID, algorithm string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrKeyStoreClosed
	}
	alg, err := algorithmByte(algorithm)
	if err != nil {
		return nil, err
	}

	flag, outerAlg, outerKeyID, nonce, encrypted, err := parseFormat(ciphertext)
	if err != nil {
		return nil, err
	}
	if outerKeyID != keyID {
		return nil, ErrKeyIDMismatch
	}
	if outerAlg != alg {
		return nil, ErrAlgorithmMismatch
	}

	keys, err := s.keysFor(ctx, keyID)
	if err != nil {
		return nil, err
	}

	decrypted, ok := secretbox.Open(nil, encrypted, &nonce, &keys.encryption)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	innerPlaintext, err := decompress(decrypted, flag)
	if err != nil {
		return nil, err
	}

	innerAlg, innerKeyID, plaintext, err := parseInnerPlaintext(innerPlaintext)
	if err != nil {
		return nil, err
	}
	if innerAlg != alg {
		return nil, ErrAlgorithmMismatch
	}
	if subtle.ConstantTimeCompare([]byte(innerKeyID), []byte(keyID)) != 1 {
		return nil, ErrKeyIDMismatch
	}
	if alg == algDeterministic {
		expected := syntheticNonce(&keys.nonce, innerPlaintext)
		if subtle.ConstantTimeCompare(expected[:], nonce[:]) != 1 {
			return nil, ErrDecryptionFailed
		}
	}

	return plaintext, nil
}

// keysFor returns the cached keys for keyID, fetching the master key from
// the provider on first use.
func (s *KeyStore) keysFor(ctx context.Context, keyID string) (*derivedKeys, error) {
	s.mu.RLock()
	keys, ok := s.keys[keyID]
	s.mu.RUnlock()
	if ok {
		return keys, nil
	}

	if s.config.provider == nil {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %q", keyID)
	}
	if len(keyID) == 0 || len(keyID) > 255 {
		return nil, ErrInvalidKeyID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	masterKey, err := s.config.provider.GetKey(ctx, keyID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch key %q", keyID)
	}
	keys, err = deriveKeys(masterKey)
	for i := range masterKey {
		masterKey[i] = 0
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.keys[keyID]; ok {
		return cached, nil
	}
	s.keys[keyID] = keys
	return keys, nil
}

// cachedKeys returns the number of cached derived keys.
func (s *KeyStore) cachedKeys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close zeros out all key material from memory.
// After calling Close, Encrypt and Decrypt return ErrKeyStoreClosed.
func (s *KeyStore) Close() {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dk := range s.keys {
		dk.zero()
	}
	s.keys = make(map[string]*derivedKeys)
}

// generateNonce generates a cryptographically secure random 24-byte nonce.
// Panics if the system's random source fails (unrecoverable).
func generateNonce() [nonceSize]byte {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return nonce
}
