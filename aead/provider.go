package aead

import (
	"context"
	"sort"
)

// KeyProvider retrieves master keys from an external key management system.
// GetKey must return a 32-byte key or an error wrapping ErrKeyNotFound.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID string) ([]byte, error)
}

// StaticKeyProvider is an in-memory KeyProvider.
// Useful for testing or simple deployments without external key management.
type StaticKeyProvider struct {
	keys map[string][]byte
}

// NewStaticKeyProvider creates a StaticKeyProvider with deep copies of keys.
func NewStaticKeyProvider(keys map[string][]byte) *StaticKeyProvider {
	keysCopy := make(map[string][]byte, len(keys))
	for id, key := range keys {
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		keysCopy[id] = keyCopy
	}
	return &StaticKeyProvider{keys: keysCopy}
}

// GetKey implements KeyProvider.
func (p *StaticKeyProvider) GetKey(ctx context.Context, keyID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, ok := p.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return keyCopy, nil
}

// KeyIDs returns the registered key IDs, sorted alphabetically.
func (p *StaticKeyProvider) KeyIDs() []string {
	ids := make([]string, 0, len(p.keys))
	for id := range p.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close zeros out all key material from memory.
func (p *StaticKeyProvider) Close() {
	for _, key := range p.keys {
		for i := range key {
			key[i] = 0
		}
	}
	p.keys = nil
}
