package keys

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	circlbls "github.com/cloudflare/circl/sign/bls"

	"echorank.dev/attest/bls"
)

// MinIKMSize is the shortest input keying material KeyGen accepts.
const MinIKMSize = 32

// keyInfo binds generated keys to this service.
var keyInfo = []byte("echorank-attest-v1")

// Generate derives a signing key from ikm. The same ikm always yields the
// same key.
func Generate(ikm []byte) (*bls.SecretKey, error) {
	if len(ikm) < MinIKMSize {
		return nil, fmt.Errorf("keys: input keying material must be at least %d bytes, got %d", MinIKMSize, len(ikm))
	}
	priv, err := circlbls.KeyGen[circlbls.KeyG1SigG2](ikm, nil, keyInfo)
	if err != nil {
		return nil, fmt.Errorf("keys: keygen: %w", err)
	}
	scalar, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keys: encode scalar: %w", err)
	}
	sk, err := bls.SecretKeyFromBytes(scalar)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	want, err := priv.PublicKey().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keys: encode public key: %w", err)
	}
	if !bytes.Equal(sk.PublicKey().Bytes(), want) {
		return nil, errors.New("keys: derived public key mismatch")
	}
	return sk, nil
}

// GenerateRandom reads fresh keying material from r, or crypto/rand when r
// is nil.
func GenerateRandom(r io.Reader) (*bls.SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	ikm := make([]byte, MinIKMSize)
	if _, err := io.ReadFull(r, ikm); err != nil {
		return nil, fmt.Errorf("keys: read keying material: %w", err)
	}
	defer clear(ikm)
	return Generate(ikm)
}
