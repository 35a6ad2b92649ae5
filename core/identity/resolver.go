package identity

import (
	"strings"
	"sync"

	"subnetgov/crypto"
)

// PublicKey is the identity material returned by the external identity
// service for a validator id.
type PublicKey struct {
	Algorithm crypto.Algorithm
	Bytes     []byte
}

// Resolver looks up the public key registered for an identity. Implementations
// typically wrap the platform identity service; exists=false means the id is
// unknown and the caller may provision placeholder key material.
type Resolver interface {
	Resolve(id string) (PublicKey, bool, error)
}

// StaticResolver is a map-backed Resolver used by tests and by daemon
// bootstrap before the identity service is reachable.
type StaticResolver struct {
	mu   sync.RWMutex
	keys map[string]PublicKey
}

// NewStaticResolver constructs an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{keys: make(map[string]PublicKey)}
}

// Register stores or replaces the key for the given id.
func (r *StaticResolver) Register(id string, key PublicKey) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	r.keys[trimmed] = key
	r.mu.Unlock()
}

// Resolve implements the Resolver interface.
func (r *StaticResolver) Resolve(id string) (PublicKey, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[strings.TrimSpace(id)]
	return key, ok, nil
}
