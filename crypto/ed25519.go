package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

type ed25519Scheme struct{}

func (ed25519Scheme) Algorithm() Algorithm { return AlgorithmEd25519 }

func (ed25519Scheme) GenerateKey() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate ed25519 key: %w", err)
	}
	return &KeyPair{
		Algorithm: AlgorithmEd25519,
		Public:    append([]byte(nil), pub...),
		Private:   append([]byte(nil), priv...),
	}, nil
}

func (ed25519Scheme) Sign(priv, digest []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: invalid ed25519 private key length %d", len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), digest), nil
}

func (ed25519Scheme) Verify(pub, digest, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), digest, sig)
}

// Aggregate packs ed25519 shares into a multi-signature envelope; the scheme
// has no native aggregation.
func (ed25519Scheme) Aggregate(shares [][]byte) ([]byte, error) {
	for i, s := range shares {
		if len(s) != ed25519.SignatureSize {
			return nil, fmt.Errorf("crypto: invalid ed25519 share size at index %d", i)
		}
	}
	return encodeEnvelope(shares)
}
