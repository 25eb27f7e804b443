package bls

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fp"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/require"
)

const g1GeneratorHex = "97f1d3a73197d7942695638c4fa9ac0fc3688c4f9774b905a14e3a3f171bac586c55e83ff97a1aeffb3af00adb22c6bb"

func mustSecret(t *testing.T, v int64) *SecretKey {
	t.Helper()
	sk, err := NewSecretKey(big.NewInt(v))
	require.NoError(t, err)
	return sk
}

func TestParseSecretKey_AcceptedForms(t *testing.T) {
	for _, in := range []string{"1", "0x1", "0X01", "  1\n", "0x" + strings.Repeat("0", 63) + "1"} {
		sk, err := ParseSecretKey(in)
		require.NoError(t, err, "input %q", in)
		require.Equal(t, g1GeneratorHex, sk.PublicKey().Hex(), "input %q", in)
	}

	hexForm, err := ParseSecretKey("0x7b")
	require.NoError(t, err)
	decForm, err := ParseSecretKey("123")
	require.NoError(t, err)
	require.Equal(t, hexForm.Bytes(), decForm.Bytes())
	require.True(t, hexForm.PublicKey().Equal(decForm.PublicKey()))
}

func TestParseSecretKey_RejectsAmbiguousOrOutOfRange(t *testing.T) {
	order := fr.Modulus()
	maxScalar := new(big.Int).Sub(order, big.NewInt(1))

	_, err := ParseSecretKey(maxScalar.String())
	require.NoError(t, err, "r-1 must be accepted")

	for _, in := range []string{
		"",
		"0",
		"0x",
		"0x0",
		"abc",
		"7b",
		"-1",
		"+1",
		"1 2",
		"0x1g",
		"1_000",
		order.String(),
		"0x" + order.Text(16),
	} {
		_, err := ParseSecretKey(in)
		require.ErrorIs(t, err, ErrInvalidSecret, "input %q", in)
	}
}

func TestSecretKeyFromBytes(t *testing.T) {
	b := make([]byte, SecretKeySize)
	b[SecretKeySize-1] = 2
	sk, err := SecretKeyFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, b, sk.Bytes())
	require.True(t, sk.PublicKey().Equal(mustSecret(t, 2).PublicKey()))

	_, err = SecretKeyFromBytes(b[:31])
	require.ErrorIs(t, err, ErrInvalidSecret)
	_, err = SecretKeyFromBytes(make([]byte, SecretKeySize))
	require.ErrorIs(t, err, ErrInvalidSecret)
}

func TestSecretKey_StringIsRedacted(t *testing.T) {
	sk := mustSecret(t, 123456789)
	require.NotContains(t, sk.String(), "123456789")
	require.Equal(t, sk.String(), sk.GoString())
}

func TestPublicKeyAndSignature_HexRoundTrip(t *testing.T) {
	sk := mustSecret(t, 42)
	pk := sk.PublicKey()
	require.Len(t, pk.Hex(), 2*PublicKeySize)

	back, err := ParsePublicKeyHex(pk.Hex())
	require.NoError(t, err)
	require.True(t, back.Equal(pk))
	require.Equal(t, pk.Hex(), back.Hex())

	sig, err := sk.Sign([DigestSize]byte{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, sig.Hex(), 2*SignatureSize)

	sigBack, err := ParseSignatureHex(sig.Hex())
	require.NoError(t, err)
	require.True(t, sigBack.Equal(sig))
	require.Equal(t, sig.Hex(), sigBack.Hex())
}

func TestParse_MalformedInputs(t *testing.T) {
	sk := mustSecret(t, 7)
	pkBytes := sk.PublicKey().Bytes()
	sig, err := sk.Sign([DigestSize]byte{9})
	require.NoError(t, err)
	sigBytes := sig.Bytes()

	_, err = ParsePublicKey(pkBytes[:PublicKeySize-1])
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePublicKey(append(append([]byte(nil), pkBytes...), 0))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParsePublicKeyHex("zz")
	require.ErrorIs(t, err, ErrMalformed)

	identity := make([]byte, PublicKeySize)
	identity[0] = 0xc0
	_, err = ParsePublicKey(identity)
	require.ErrorIs(t, err, ErrMalformed)

	corruptPK := append([]byte(nil), pkBytes...)
	corruptPK[20] ^= 0xff
	_, err = ParsePublicKey(corruptPK)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = ParseSignature(sigBytes[:10])
	require.ErrorIs(t, err, ErrMalformed)
	corruptSig := append([]byte(nil), sigBytes...)
	corruptSig[40] ^= 0xff
	_, err = ParseSignature(corruptSig)
	require.ErrorIs(t, err, ErrMalformed)
}

// offSubgroupG1 returns the encoding of a point on y^2 = x^3 + 4 that lies
// outside the prime-order subgroup.
func offSubgroupG1(t *testing.T) []byte {
	t.Helper()
	var p bls12381.G1Affine
	for i := uint64(1); i < 1000; i++ {
		p.X.SetUint64(i)
		var rhs, b fp.Element
		rhs.Square(&p.X).Mul(&rhs, &p.X)
		b.SetUint64(4)
		rhs.Add(&rhs, &b)
		if p.Y.Sqrt(&rhs) == nil {
			continue
		}
		if p.IsOnCurve() && !p.IsInSubGroup() {
			out := p.Bytes()
			return out[:]
		}
	}
	t.Fatal("no off-subgroup G1 point found")
	return nil
}

// offSubgroupG2 is the G2 counterpart, on the twist y^2 = x^3 + 4(1+u).
func offSubgroupG2(t *testing.T) []byte {
	t.Helper()
	var p bls12381.G2Affine
	for i := uint64(1); i < 1000; i++ {
		p.X.A0.SetUint64(i)
		p.X.A1.SetZero()
		rhs, b := p.X, p.X
		rhs.Square(&p.X).Mul(&rhs, &p.X)
		b.A0.SetUint64(4)
		b.A1.SetUint64(4)
		rhs.Add(&rhs, &b)
		if rhs.Legendre() != 1 {
			continue
		}
		p.Y.Sqrt(&rhs)
		if p.IsOnCurve() && !p.IsInSubGroup() {
			out := p.Bytes()
			return out[:]
		}
	}
	t.Fatal("no off-subgroup G2 point found")
	return nil
}

func TestParse_RejectsPointsOutsideSubgroup(t *testing.T) {
	sk := mustSecret(t, 7)
	digest := [DigestSize]byte{9}
	sig, err := sk.Sign(digest)
	require.NoError(t, err)

	badPK := offSubgroupG1(t)
	_, err = ParsePublicKey(badPK)
	require.ErrorIs(t, err, ErrMalformed)
	require.ErrorIs(t, err, ErrMalformedPublicKey)
	ok, err := VerifyHex(hex.EncodeToString(badPK), digest, sig.Hex())
	require.False(t, ok)
	require.ErrorIs(t, err, ErrMalformedPublicKey)

	badSig := offSubgroupG2(t)
	_, err = ParseSignature(badSig)
	require.ErrorIs(t, err, ErrMalformed)
	require.ErrorIs(t, err, ErrMalformedSignature)
	ok, err = VerifyHex(sk.PublicKey().Hex(), digest, hex.EncodeToString(badSig))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrMalformedSignature)
}
