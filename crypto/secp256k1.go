package crypto

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type secp256k1Scheme struct{}

func (secp256k1Scheme) Algorithm() Algorithm { return AlgorithmSecp256k1 }

func (secp256k1Scheme) GenerateKey() (*KeyPair, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate secp256k1 key: %w", err)
	}
	return &KeyPair{
		Algorithm: AlgorithmSecp256k1,
		Public:    ethcrypto.FromECDSAPub(&key.PublicKey),
		Private:   ethcrypto.FromECDSA(key),
	}, nil
}

func (secp256k1Scheme) Sign(priv, digest []byte) ([]byte, error) {
	key, err := ethcrypto.ToECDSA(priv)
	if err != nil {
		return nil, fmt.Errorf("crypto: load secp256k1 private key: %w", err)
	}
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("crypto: secp256k1 sign: %w", err)
	}
	return sig, nil
}

func (secp256k1Scheme) Verify(pub, digest, sig []byte) bool {
	// ethcrypto.Sign appends a recovery id byte that VerifySignature rejects.
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false
	}
	return ethcrypto.VerifySignature(pub, digest, sig)
}

// Aggregate packs secp256k1 shares into a multi-signature envelope; the
// scheme has no native aggregation.
func (secp256k1Scheme) Aggregate(shares [][]byte) ([]byte, error) {
	for i, s := range shares {
		if len(s) != 64 && len(s) != 65 {
			return nil, fmt.Errorf("crypto: invalid secp256k1 share size at index %d", i)
		}
	}
	return encodeEnvelope(shares)
}
