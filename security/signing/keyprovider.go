package signing

import (
	"context"
	"fmt"
	"sync"
)

// KeyProvider is the §6 collaborator interface: resolves HMAC key
// material for a composite (keyID, purpose, tenantID) identity.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID, purpose, tenantID string) ([]byte, error)
}

// StaticKeyProvider serves key material from an in-memory map keyed by
// cacheKey(keyID, purpose, tenantID).
type StaticKeyProvider struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewStaticKeyProvider returns an empty StaticKeyProvider.
func NewStaticKeyProvider() *StaticKeyProvider {
	return &StaticKeyProvider{keys: make(map[string][]byte)}
}

// SetKey registers key material for the given identity.
func (p *StaticKeyProvider) SetKey(keyID, purpose, tenantID string, key []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[cacheKey(keyID, purpose, tenantID)] = key
}

// GetKey implements KeyProvider.
func (p *StaticKeyProvider) GetKey(ctx context.Context, keyID, purpose, tenantID string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.keys[cacheKey(keyID, purpose, tenantID)]
	if !ok {
		return nil, fmt.Errorf("signing: no key registered for %s", cacheKey(keyID, purpose, tenantID))
	}
	return key, nil
}

// Dispose zeroes every cached key, per spec.md §4.E.4's "all cached key
// material MUST be zeroed on disposal".
func (p *StaticKeyProvider) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, key := range p.keys {
		for i := range key {
			key[i] = 0
		}
		delete(p.keys, k)
	}
}

func cacheKey(keyID, purpose, tenantID string) string {
	return keyID + "|" + purpose + "|" + tenantID
}
