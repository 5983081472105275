package aead

// Option is a functional option for configuring a KeyStore.
type Option func(*config)

// config holds key store configuration options.
type config struct {
	keys                 map[string][]byte // keyID -> master key (32 bytes)
	provider             KeyProvider
	compressionThreshold int
	compressionAlgorithm string
	compressionDisabled  bool
}

func defaultConfig() *config {
	return &config{
		keys:                 make(map[string][]byte),
		compressionThreshold: defaultCompressionThreshold,
		compressionAlgorithm: CompressionZstd,
	}
}

// WithKey registers a 32-byte master key under the given key ID.
// The key is copied; the caller may zero the original after New returns.
func WithKey(keyID string, masterKey []byte) Option {
	return func(c *config) {
		keyCopy := make([]byte, len(masterKey))
		copy(keyCopy, masterKey)
		c.keys[keyID] = keyCopy
	}
}

// WithKeyProvider resolves key IDs not registered with WithKey through p.
// Keys are fetched on first use and cached for the life of the store.
func WithKeyProvider(p KeyProvider) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithCompressionThreshold sets the minimum size in bytes before compression is attempted.
// Default is 1024 (1KB).
func WithCompressionThreshold(bytes int) Option {
	return func(c *config) {
		c.compressionThreshold = bytes
	}
}

// WithCompressionAlgorithm sets the compression algorithm. Only "zstd" is supported.
func WithCompressionAlgorithm(algo string) Option {
	return func(c *config) {
		c.compressionAlgorithm = algo
	}
}

// WithCompressionDisabled disables compression entirely.
func WithCompressionDisabled() Option {
	return func(c *config) {
		c.compressionDisabled = true
	}
}
