package keys

import (
	"bytes"
	"testing"

	"echorank.dev/attest/bls"
)

func TestGenerate_Deterministic(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x42}, MinIKMSize)
	a, err := Generate(ikm)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(ikm)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !a.PublicKey().Equal(b.PublicKey()) {
		t.Fatalf("expected the same key for the same keying material")
	}

	c, err := Generate(bytes.Repeat([]byte{0x43}, MinIKMSize))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.PublicKey().Equal(c.PublicKey()) {
		t.Fatalf("expected different keys for different keying material")
	}
}

func TestGenerate_KeySigns(t *testing.T) {
	sk, err := GenerateRandom(nil)
	if err != nil {
		t.Fatalf("GenerateRandom: %v", err)
	}
	var digest [bls.DigestSize]byte
	sig, err := sk.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bls.Verify(sk.PublicKey(), digest, sig) {
		t.Fatalf("generated key does not verify its own signature")
	}
}

func TestGenerate_ShortKeyingMaterial(t *testing.T) {
	if _, err := Generate(make([]byte, MinIKMSize-1)); err == nil {
		t.Fatalf("expected short keying material to be rejected")
	}
	if _, err := GenerateRandom(bytes.NewReader(make([]byte, 4))); err == nil {
		t.Fatalf("expected a short reader to fail")
	}
}
