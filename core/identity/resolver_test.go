package identity

import (
	"bytes"
	"testing"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver()
	if _, ok, err := r.Resolve("v1"); ok || err != nil {
		t.Fatalf("empty resolver: ok=%v err=%v", ok, err)
	}

	key := PublicKey{Algorithm: "ed25519", Bytes: []byte{1, 2, 3}}
	r.Register("v1", key)
	got, ok, err := r.Resolve("v1")
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if got.Algorithm != "ed25519" || !bytes.Equal(got.Bytes, []byte{1, 2, 3}) {
		t.Fatalf("resolved = %+v", got)
	}

	// Registering again replaces the key.
	r.Register("v1", PublicKey{Algorithm: "ed25519", Bytes: []byte{9}})
	got, _, _ = r.Resolve("v1")
	if !bytes.Equal(got.Bytes, []byte{9}) {
		t.Fatalf("replacement not applied: %+v", got)
	}
}
