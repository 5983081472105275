package aead

import "github.com/pkg/errors"

var (
	// ErrDecryptionFailed indicates secretbox authentication failed (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("aead: decryption failed")

	// ErrKeyIDMismatch indicates the embedded key_id doesn't match the requested or outer key_id.
	ErrKeyIDMismatch = errors.New("aead: key_id mismatch")

	// ErrAlgorithmMismatch indicates the ciphertext was produced with a different algorithm.
	ErrAlgorithmMismatch = errors.New("aead: algorithm mismatch")

	// ErrUnsupportedAlgorithm indicates the algorithm name is not one of the Algorithm* constants.
	ErrUnsupportedAlgorithm = errors.New("aead: unsupported algorithm")

	// ErrKeyNotFound indicates the requested key_id is not in the registry or provider.
	ErrKeyNotFound = errors.New("aead: key not found")

	// ErrInvalidKeySize indicates the master key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.New("aead: key must be 32 bytes")

	// ErrDecompressionFailed indicates zstd decompression failed.
	ErrDecompressionFailed = errors.New("aead: decompression failed")

	// ErrInvalidFormat indicates the ciphertext format is malformed.
	ErrInvalidFormat = errors.New("aead: invalid ciphertext format")

	// ErrNoKeys indicates neither keys nor a provider were configured.
	ErrNoKeys = errors.New("aead: no keys provided")

	// ErrInvalidKeyID indicates the key ID is invalid (empty or too long).
	ErrInvalidKeyID = errors.New("aead: key ID must be 1-255 bytes")

	// ErrUnsupportedCompression indicates an unsupported compression algorithm.
	ErrUnsupportedCompression = errors.New("aead: unsupported compression algorithm")

	// ErrKeyStoreClosed indicates the key store was used after Close() was called.
	ErrKeyStoreClosed = errors.New("aead: key store is closed")
)
