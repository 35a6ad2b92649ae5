package crypto

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"
)

// Algorithm identifies a supported signature scheme.
type Algorithm string

const (
	AlgorithmBLS12381  Algorithm = "bls12-381"
	AlgorithmEd25519   Algorithm = "ed25519"
	AlgorithmSecp256k1 Algorithm = "secp256k1"
)

// Valid reports whether the algorithm names a supported scheme.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmBLS12381, AlgorithmEd25519, AlgorithmSecp256k1:
		return true
	default:
		return false
	}
}

// KeyPair carries raw key material for one validator under one scheme.
type KeyPair struct {
	Algorithm Algorithm
	Public    []byte
	Private   []byte
}

// Scheme is the pluggable signing contract. Implementations must be safe for
// concurrent use; all methods operate on the 32-byte message digest produced
// by Digest.
type Scheme interface {
	Algorithm() Algorithm
	GenerateKey() (*KeyPair, error)
	Sign(priv, digest []byte) ([]byte, error)
	Verify(pub, digest, sig []byte) bool
	// Aggregate combines threshold shares into the final signature. Schemes
	// without native aggregation return a multi-signature envelope.
	Aggregate(shares [][]byte) ([]byte, error)
}

// ByAlgorithm returns the scheme backend for the given algorithm.
func ByAlgorithm(alg Algorithm) (Scheme, error) {
	switch alg {
	case AlgorithmBLS12381:
		return blsScheme{}, nil
	case AlgorithmEd25519:
		return ed25519Scheme{}, nil
	case AlgorithmSecp256k1:
		return secp256k1Scheme{}, nil
	default:
		return nil, fmt.Errorf("crypto: unsupported algorithm %q", alg)
	}
}

// Digest computes the canonical 32-byte blake3 digest signed by validators.
func Digest(message []byte) [32]byte {
	return blake3.Sum256(message)
}

// encodeEnvelope packs independent shares into a single length-prefixed blob
// for schemes lacking signature aggregation.
func encodeEnvelope(shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("crypto: no shares to combine")
	}
	size := 4
	for _, s := range shares {
		size += 4 + len(s)
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(len(shares)))
	for _, s := range shares {
		out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out, nil
}

// DecodeEnvelope splits a multi-signature envelope back into its shares.
func DecodeEnvelope(blob []byte) ([][]byte, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("crypto: envelope truncated")
	}
	count := binary.BigEndian.Uint32(blob[:4])
	rest := blob[4:]
	shares := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return nil, fmt.Errorf("crypto: envelope truncated at share %d", i)
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return nil, fmt.Errorf("crypto: envelope truncated at share %d", i)
		}
		shares = append(shares, append([]byte(nil), rest[:n]...))
		rest = rest[n:]
	}
	return shares, nil
}
