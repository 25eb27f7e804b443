package bls

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

const (
	SecretKeySize = fr.Bytes
	PublicKeySize = bls12381.SizeOfG1AffineCompressed
	SignatureSize = bls12381.SizeOfG2AffineCompressed

	// Algorithm names the curve, group assignment and ciphersuite.
	Algorithm = "BLS12-381-G2-POP-SHA256"
)

// SecretKey is a scalar in [1, r-1] together with its public key.
// It is immutable after construction and safe for concurrent use.
type SecretKey struct {
	scalar big.Int
	pub    PublicKey
}

// ParseSecretKey is the only textual entry point for secret keys.
//
// Accepted forms, after trimming surrounding whitespace:
//   - "0x" or "0X" followed by hex digits
//   - decimal digits only
//
// Anything else, including bare hex containing letters, signs or embedded
// whitespace, is rejected as ambiguous.
func ParseSecretKey(s string) (*SecretKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	var digits string
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	} else {
		digits = s
	}
	if digits == "" {
		return nil, fmt.Errorf("%w: no digits", ErrInvalidSecret)
	}
	for _, c := range digits {
		switch {
		case c >= '0' && c <= '9':
		case base == 16 && ((c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')):
		default:
			if base == 10 {
				return nil, fmt.Errorf("%w: %q is neither 0x-prefixed hex nor decimal", ErrInvalidSecret, c)
			}
			return nil, fmt.Errorf("%w: invalid hex digit %q", ErrInvalidSecret, c)
		}
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%w: cannot parse", ErrInvalidSecret)
	}
	return NewSecretKey(n)
}

// SecretKeyFromBytes interprets b as a 32 byte big-endian scalar.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecret, SecretKeySize, len(b))
	}
	return NewSecretKey(new(big.Int).SetBytes(b))
}

// NewSecretKey checks that n lies in [1, r-1] and derives the public key.
func NewSecretKey(n *big.Int) (*SecretKey, error) {
	if n == nil || !inRange(n) {
		return nil, fmt.Errorf("%w: scalar outside [1, r-1]", ErrInvalidSecret)
	}
	sk := &SecretKey{}
	sk.scalar.Set(n)
	_, _, g1, _ := bls12381.Generators()
	sk.pub.p.ScalarMultiplication(&g1, &sk.scalar)
	return sk, nil
}

func inRange(n *big.Int) bool {
	return n.Sign() > 0 && n.Cmp(fr.Modulus()) < 0
}

func (sk *SecretKey) check() error {
	if sk == nil || !inRange(&sk.scalar) {
		return ErrInvalidKeyState
	}
	return nil
}

// PublicKey returns the key's public half. A nil receiver returns the zero
// PublicKey, which every verifier rejects.
func (sk *SecretKey) PublicKey() PublicKey {
	if sk == nil {
		return PublicKey{}
	}
	return sk.pub
}

// Bytes returns the 32 byte big-endian scalar.
func (sk *SecretKey) Bytes() []byte {
	out := make([]byte, SecretKeySize)
	if sk != nil {
		sk.scalar.FillBytes(out)
	}
	return out
}

// String never reveals the scalar.
func (sk *SecretKey) String() string { return "bls.SecretKey(redacted)" }

// GoString never reveals the scalar.
func (sk *SecretKey) GoString() string { return sk.String() }

// PublicKey is a non-identity point of the prime-order subgroup of G1.
type PublicKey struct {
	p bls12381.G1Affine
}

// ParsePublicKey decodes a 48 byte compressed G1 point.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: must be %d bytes, got %d", ErrMalformedPublicKey, PublicKeySize, len(b))
	}
	var pk PublicKey
	n, err := pk.p.SetBytes(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	if n != len(b) {
		return PublicKey{}, fmt.Errorf("%w: trailing bytes", ErrMalformedPublicKey)
	}
	if !pk.valid() {
		return PublicKey{}, fmt.Errorf("%w: identity or outside the subgroup", ErrMalformedPublicKey)
	}
	return pk, nil
}

// ParsePublicKeyHex decodes the hex form of ParsePublicKey.
func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := decodeHex(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	return ParsePublicKey(b)
}

func (pk PublicKey) valid() bool {
	return !pk.p.IsInfinity() && pk.p.IsOnCurve() && pk.p.IsInSubGroup()
}

// Bytes returns the compressed encoding.
func (pk PublicKey) Bytes() []byte {
	b := pk.p.Bytes()
	return b[:]
}

func (pk PublicKey) Hex() string { return hex.EncodeToString(pk.Bytes()) }

func (pk PublicKey) String() string { return pk.Hex() }

func (pk PublicKey) Equal(other PublicKey) bool { return pk.p.Equal(&other.p) }

func (pk PublicKey) key() [PublicKeySize]byte { return pk.p.Bytes() }

// Signature is a point of the prime-order subgroup of G2.
type Signature struct {
	p bls12381.G2Affine
}

// ParseSignature decodes a 96 byte compressed G2 point.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("%w: must be %d bytes, got %d", ErrMalformedSignature, SignatureSize, len(b))
	}
	var sig Signature
	n, err := sig.p.SetBytes(b)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if n != len(b) {
		return Signature{}, fmt.Errorf("%w: trailing bytes", ErrMalformedSignature)
	}
	if !sig.p.IsInfinity() && !sig.p.IsInSubGroup() {
		return Signature{}, fmt.Errorf("%w: outside the subgroup", ErrMalformedSignature)
	}
	return sig, nil
}

// ParseSignatureHex decodes the hex form of ParseSignature.
func ParseSignatureHex(s string) (Signature, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return ParseSignature(b)
}

func (s Signature) Bytes() []byte {
	b := s.p.Bytes()
	return b[:]
}

func (s Signature) Hex() string { return hex.EncodeToString(s.Bytes()) }

func (s Signature) String() string { return s.Hex() }

func (s Signature) Equal(other Signature) bool { return s.p.Equal(&other.p) }

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
