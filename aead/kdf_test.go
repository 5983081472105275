package aead

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeys_Deterministic(t *testing.T) {
	masterKey := []byte("01234567890123456789012345678901")

	keys1, err := deriveKeys(masterKey)
	require.NoError(t, err)
	keys2, err := deriveKeys(masterKey)
	require.NoError(t, err)

	require.Equal(t, keys1.encryption, keys2.encryption)
	require.Equal(t, keys1.nonce, keys2.nonce)
}

func TestDeriveKeys_Separation(t *testing.T) {
	keys1, err := deriveKeys([]byte("01234567890123456789012345678901"))
	require.NoError(t, err)
	keys2, err := deriveKeys([]byte("01234567890123456789012345678902"))
	require.NoError(t, err)

	require.NotEqual(t, keys1.encryption, keys2.encryption)
	require.NotEqual(t, keys1.nonce, keys2.nonce)
	require.False(t, bytes.Equal(keys1.encryption[:], keys1.nonce[:]),
		"encryption and nonce keys should be different")
}

func TestDeriveKeys_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := deriveKeys(make([]byte, size))
		require.ErrorIs(t, err, ErrInvalidKeySize, "size %d", size)
	}
}

func TestSyntheticNonce(t *testing.T) {
	keys, err := deriveKeys(testKey("dek1"))
	require.NoError(t, err)

	n1 := syntheticNonce(&keys.nonce, []byte("123-45-6789"))
	n2 := syntheticNonce(&keys.nonce, []byte("123-45-6789"))
	n3 := syntheticNonce(&keys.nonce, []byte("123-45-6780"))

	require.Equal(t, n1, n2)
	require.NotEqual(t, n1, n3)
}

func TestDerivedKeys_Zero(t *testing.T) {
	keys, err := deriveKeys(testKey("dek1"))
	require.NoError(t, err)

	keys.zero()
	require.Equal(t, [32]byte{}, keys.encryption)
	require.Equal(t, [32]byte{}, keys.nonce)
}
