package crypto

import (
	"bytes"
	"testing"
)

func TestSchemesSignAndVerify(t *testing.T) {
	message := []byte("governance payload")
	digest := Digest(message)

	for _, alg := range []Algorithm{AlgorithmBLS12381, AlgorithmEd25519, AlgorithmSecp256k1} {
		scheme, err := ByAlgorithm(alg)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		pair, err := scheme.GenerateKey()
		if err != nil {
			t.Fatalf("%s generate: %v", alg, err)
		}
		sig, err := scheme.Sign(pair.Private, digest[:])
		if err != nil {
			t.Fatalf("%s sign: %v", alg, err)
		}
		if !scheme.Verify(pair.Public, digest[:], sig) {
			t.Fatalf("%s: valid signature rejected", alg)
		}

		other := Digest([]byte("tampered payload"))
		if scheme.Verify(pair.Public, other[:], sig) {
			t.Fatalf("%s: signature verified against wrong digest", alg)
		}
		corrupted := append([]byte(nil), sig...)
		corrupted[0] ^= 0xff
		if scheme.Verify(pair.Public, digest[:], corrupted) {
			t.Fatalf("%s: corrupted signature verified", alg)
		}
	}
}

func TestByAlgorithmRejectsUnknown(t *testing.T) {
	if _, err := ByAlgorithm("rsa"); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	}
	if Algorithm("rsa").Valid() {
		t.Fatalf("rsa must not validate")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	shares := [][]byte{
		bytes.Repeat([]byte{0x01}, 64),
		bytes.Repeat([]byte{0x02}, 64),
		bytes.Repeat([]byte{0x03}, 64),
	}
	blob, err := encodeEnvelope(shares)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEnvelope(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(shares) {
		t.Fatalf("decoded %d shares, want %d", len(decoded), len(shares))
	}
	for i := range shares {
		if !bytes.Equal(decoded[i], shares[i]) {
			t.Fatalf("share %d mismatch", i)
		}
	}

	if _, err := DecodeEnvelope(blob[:5]); err == nil {
		t.Fatalf("truncated envelope must fail")
	}
	if _, err := encodeEnvelope(nil); err == nil {
		t.Fatalf("empty envelope must fail")
	}
}

func TestEd25519AggregateIsEnvelope(t *testing.T) {
	scheme, _ := ByAlgorithm(AlgorithmEd25519)
	digest := Digest([]byte("multi-signer payload"))

	sigs := make([][]byte, 0, 3)
	for i := 0; i < 3; i++ {
		pair, err := scheme.GenerateKey()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		sig, err := scheme.Sign(pair.Private, digest[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		sigs = append(sigs, sig)
	}

	blob, err := scheme.Aggregate(sigs)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	decoded, err := DecodeEnvelope(blob)
	if err != nil || len(decoded) != 3 {
		t.Fatalf("decode: %d shares, err=%v", len(decoded), err)
	}

	if _, err := scheme.Aggregate([][]byte{{0x01}}); err == nil {
		t.Fatalf("undersized share must fail aggregation")
	}
}

func TestBLSAggregateVerifies(t *testing.T) {
	scheme, _ := ByAlgorithm(AlgorithmBLS12381)
	digest := Digest([]byte("threshold payload"))

	pubs := make([][]byte, 0, 4)
	sigs := make([][]byte, 0, 4)
	for i := 0; i < 4; i++ {
		pair, err := scheme.GenerateKey()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		sig, err := scheme.Sign(pair.Private, digest[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		pubs = append(pubs, pair.Public)
		sigs = append(sigs, sig)
	}

	aggregated, err := scheme.Aggregate(sigs)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(aggregated) != BLSSignatureSize {
		t.Fatalf("aggregated size = %d, want %d", len(aggregated), BLSSignatureSize)
	}
	if !VerifyAggregateBLS(aggregated, digest[:], pubs) {
		t.Fatalf("aggregate signature rejected")
	}
	if VerifyAggregateBLS(aggregated, digest[:], pubs[:3]) {
		t.Fatalf("aggregate verified with missing signer")
	}

	other := Digest([]byte("different payload"))
	if VerifyAggregateBLS(aggregated, other[:], pubs) {
		t.Fatalf("aggregate verified against wrong digest")
	}
}
