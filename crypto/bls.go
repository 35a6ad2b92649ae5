package crypto

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

const (
	// BLSPublicKeySize is the compressed G1 public key size in bytes.
	BLSPublicKeySize = 48
	// BLSSignatureSize is the compressed G2 signature size in bytes.
	BLSSignatureSize = 96
)

var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

type blsScheme struct{}

func (blsScheme) Algorithm() Algorithm { return AlgorithmBLS12381 }

func (blsScheme) GenerateKey() (*KeyPair, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate bls seed: %w", err)
	}
	secret := blst.KeyGen(ikm[:])
	if secret == nil {
		return nil, fmt.Errorf("crypto: bls key generation failed")
	}
	public := new(blst.P1Affine).From(secret)
	return &KeyPair{
		Algorithm: AlgorithmBLS12381,
		Public:    public.Compress(),
		Private:   secret.Serialize(),
	}, nil
}

func (blsScheme) Sign(priv, digest []byte) ([]byte, error) {
	secret := new(blst.SecretKey).Deserialize(priv)
	if secret == nil {
		return nil, fmt.Errorf("crypto: invalid bls private key")
	}
	sig := new(blst.P2Affine).Sign(secret, digest, blsDST)
	return sig.Compress(), nil
}

func (blsScheme) Verify(pub, digest, sig []byte) bool {
	if len(sig) != BLSSignatureSize || len(pub) != BLSPublicKeySize {
		return false
	}
	signature := new(blst.P2Affine).Uncompress(sig)
	if signature == nil {
		return false
	}
	public := new(blst.P1Affine).Uncompress(pub)
	if public == nil {
		return false
	}
	return signature.Verify(true, public, true, digest, blsDST)
}

func (blsScheme) Aggregate(shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("crypto: no shares to aggregate")
	}
	sigs := make([]*blst.P2Affine, len(shares))
	for i, raw := range shares {
		if len(raw) != BLSSignatureSize {
			return nil, fmt.Errorf("crypto: invalid bls share size at index %d", i)
		}
		sig := new(blst.P2Affine).Uncompress(raw)
		if sig == nil {
			return nil, fmt.Errorf("crypto: invalid bls share at index %d", i)
		}
		sigs[i] = sig
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(sigs, true) {
		return nil, fmt.Errorf("crypto: bls aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}

// VerifyAggregateBLS checks an aggregated signature against the digest and
// the contributing validators' public keys.
func VerifyAggregateBLS(signature, digest []byte, publicKeys [][]byte) bool {
	if len(signature) != BLSSignatureSize || len(publicKeys) == 0 {
		return false
	}
	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}
	pks := make([]*blst.P1Affine, len(publicKeys))
	for i, raw := range publicKeys {
		if len(raw) != BLSPublicKeySize {
			return false
		}
		pk := new(blst.P1Affine).Uncompress(raw)
		if pk == nil {
			return false
		}
		pks[i] = pk
	}
	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(pks, true) {
		return false
	}
	return sig.Verify(true, agg.ToAffine(), true, digest, blsDST)
}
