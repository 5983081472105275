package aead

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(id string) []byte {
	key := make([]byte, 32)
	copy(key, []byte(id))
	for i := len(id); i < 32; i++ {
		key[i] = byte(i)
	}
	return key
}

type countingProvider struct {
	inner KeyProvider
	calls atomic.Int32
}

func (p *countingProvider) GetKey(ctx context.Context, keyID string) ([]byte, error) {
	p.calls.Add(1)
	return p.inner.GetKey(ctx, keyID)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want error
	}{
		{"no keys", nil, ErrNoKeys},
		{"short key", []Option{WithKey("dek1", []byte("too short"))}, ErrInvalidKeySize},
		{"empty key id", []Option{WithKey("", testKey("x"))}, ErrInvalidKeyID},
		{"key id too long", []Option{WithKey(strings.Repeat("k", 256), testKey("x"))}, ErrInvalidKeyID},
		{"snappy", []Option{WithKey("dek1", testKey("dek1")), WithCompressionAlgorithm("snappy")}, ErrUnsupportedCompression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"simple text", []byte("hello world")},
		{"empty slice", []byte{}},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}},
		{"unicode", []byte("こんにちは世界")},
		{"large text", []byte(strings.Repeat("x", 10000))},
	}

	for _, alg := range []string{AlgorithmRandomized, AlgorithmDeterministic} {
		for _, tt := range tests {
			t.Run(alg+"/"+tt.name, func(t *testing.T) {
				ciphertext, err := store.Encrypt(ctx, tt.plaintext, "dek1", alg)
				require.NoError(t, err)
				require.NotEqual(t, tt.plaintext, ciphertext)

				decrypted, err := store.Decrypt(ctx, ciphertext, "dek1", alg)
				require.NoError(t, err)
				require.True(t, bytes.Equal(tt.plaintext, decrypted))
			})
		}
	}
}

func TestEncrypt_Deterministic(t *testing.T) {
	ctx := context.Background()
	store, err := New(WithKey("dek1", testKey("dek1")), WithKey("dek2", testKey("dek2")))
	require.NoError(t, err)

	ct1, err := store.Encrypt(ctx, []byte("123-45-6789"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	ct2, err := store.Encrypt(ctx, []byte("123-45-6789"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	require.Equal(t, ct1, ct2, "same value and key must produce the same ciphertext")

	other, err := store.Encrypt(ctx, []byte("123-45-6780"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	require.NotEqual(t, ct1, other)

	otherKey, err := store.Encrypt(ctx, []byte("123-45-6789"), "dek2", AlgorithmDeterministic)
	require.NoError(t, err)
	require.NotEqual(t, ct1, otherKey)
}

func TestEncrypt_Randomized(t *testing.T) {
	ctx := context.Background()
	store, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)

	ct1, err := store.Encrypt(ctx, []byte("secret"), "dek1", AlgorithmRandomized)
	require.NoError(t, err)
	ct2, err := store.Encrypt(ctx, []byte("secret"), "dek1", AlgorithmRandomized)
	require.NoError(t, err)
	require.NotEqual(t, ct1, ct2)
}

func TestEncrypt_Compression(t *testing.T) {
	ctx := context.Background()
	plaintext := []byte(strings.Repeat("compressible ", 500))

	compressed, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)
	uncompressed, err := New(WithKey("dek1", testKey("dek1")), WithCompressionDisabled())
	require.NoError(t, err)

	ct1, err := compressed.Encrypt(ctx, plaintext, "dek1", AlgorithmRandomized)
	require.NoError(t, err)
	ct2, err := uncompressed.Encrypt(ctx, plaintext, "dek1", AlgorithmRandomized)
	require.NoError(t, err)

	require.Equal(t, flagZstd, ct1[0])
	require.Equal(t, flagNoCompression, ct2[0])
	require.Less(t, len(ct1), len(ct2))

	pt, err := uncompressed.Decrypt(ctx, ct1, "dek1", AlgorithmRandomized)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestEncrypt_CompressionThreshold(t *testing.T) {
	store, err := New(WithKey("dek1", testKey("dek1")), WithCompressionThreshold(16))
	require.NoError(t, err)

	ct, err := store.Encrypt(context.Background(), []byte(strings.Repeat("a", 64)), "dek1", AlgorithmRandomized)
	require.NoError(t, err)
	require.Equal(t, flagZstd, ct[0])
}

func TestDecrypt_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := New(WithKey("dek1", testKey("dek1")), WithKey("dek2", testKey("dek2")))
	require.NoError(t, err)

	ct, err := store.Encrypt(ctx, []byte("value"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 0xFF

	relabeled := append([]byte(nil), ct...)
	relabeled[1] = algRandomized

	tests := []struct {
		name       string
		ciphertext []byte
		keyID      string
		algorithm  string
		want       error
	}{
		{"tampered", tampered, "dek1", AlgorithmDeterministic, ErrDecryptionFailed},
		{"wrong key id", ct, "dek2", AlgorithmDeterministic, ErrKeyIDMismatch},
		{"wrong algorithm", ct, "dek1", AlgorithmRandomized, ErrAlgorithmMismatch},
		{"relabeled algorithm", relabeled, "dek1", AlgorithmRandomized, ErrAlgorithmMismatch},
		{"unknown algorithm", ct, "dek1", "AEAD_AES_256_CBC_HMAC_SHA256", ErrUnsupportedAlgorithm},
		{"garbage", []byte("short"), "dek1", AlgorithmDeterministic, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Decrypt(ctx, tt.ciphertext, tt.keyID, tt.algorithm)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncrypt_UnknownKey(t *testing.T) {
	store, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)

	_, err = store.Encrypt(context.Background(), []byte("v"), "missing", AlgorithmRandomized)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyProvider_FetchedOnceAndCached(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{inner: NewStaticKeyProvider(map[string][]byte{"dek1": testKey("dek1")})}

	store, err := New(WithKeyProvider(provider))
	require.NoError(t, err)
	require.Equal(t, 0, store.cachedKeys())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ct, err := store.Encrypt(ctx, []byte("v"), "dek1", AlgorithmDeterministic)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := store.Decrypt(ctx, ct, "dek1", AlgorithmDeterministic); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, store.cachedKeys())
	require.LessOrEqual(t, provider.calls.Load(), int32(20))

	before := provider.calls.Load()
	_, err = store.Encrypt(ctx, []byte("v"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	require.Equal(t, before, provider.calls.Load())
}

func TestKeyProvider_MissingKey(t *testing.T) {
	store, err := New(WithKeyProvider(NewStaticKeyProvider(nil)))
	require.NoError(t, err)

	_, err = store.Encrypt(context.Background(), []byte("v"), "dek1", AlgorithmRandomized)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyProvider_Canceled(t *testing.T) {
	store, err := New(WithKeyProvider(NewStaticKeyProvider(map[string][]byte{"dek1": testKey("dek1")})))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Encrypt(ctx, []byte("v"), "dek1", AlgorithmRandomized)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose(t *testing.T) {
	store, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)

	ct, err := store.Encrypt(context.Background(), []byte("v"), "dek1", AlgorithmRandomized)
	require.NoError(t, err)

	store.Close()

	_, err = store.Encrypt(context.Background(), []byte("v"), "dek1", AlgorithmRandomized)
	require.ErrorIs(t, err, ErrKeyStoreClosed)
	_, err = store.Decrypt(context.Background(), ct, "dek1", AlgorithmRandomized)
	require.ErrorIs(t, err, ErrKeyStoreClosed)
}

func TestWithKey_CopiesKey(t *testing.T) {
	key := testKey("dek1")
	store, err := New(WithKey("dek1", key))
	require.NoError(t, err)

	key[0] ^= 0xFF

	ref, err := New(WithKey("dek1", testKey("dek1")))
	require.NoError(t, err)

	ct1, err := store.Encrypt(context.Background(), []byte("v"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	ct2, err := ref.Encrypt(context.Background(), []byte("v"), "dek1", AlgorithmDeterministic)
	require.NoError(t, err)
	require.Equal(t, ct1, ct2)
}
