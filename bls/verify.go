package bls

import (
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// Verify reports whether sig is a valid signature of digest under pk.
// It never panics; invalid points simply fail.
func Verify(pk PublicKey, digest [DigestSize]byte, sig Signature) bool {
	return verifyWithDST(pk.p, digest[:], sig, sigDST)
}

// VerifyHex decodes pk and sig and verifies. Decoding failures are returned
// as ErrMalformed so callers can tell them apart from a signature that is
// merely wrong.
func VerifyHex(pkHex string, digest [DigestSize]byte, sigHex string) (bool, error) {
	pk, err := ParsePublicKeyHex(pkHex)
	if err != nil {
		return false, err
	}
	sig, err := ParseSignatureHex(sigHex)
	if err != nil {
		return false, err
	}
	return Verify(pk, digest, sig), nil
}

// verifyWithDST checks e(pk, H(msg)) == e(g1, sig).
func verifyWithDST(pk bls12381.G1Affine, msg []byte, sig Signature, dst []byte) bool {
	if pk.IsInfinity() || !pk.IsInSubGroup() {
		return false
	}
	if sig.p.IsInfinity() || !sig.p.IsInSubGroup() {
		return false
	}
	h, err := bls12381.HashToG2(msg, dst)
	if err != nil {
		return false
	}
	_, _, g1, _ := bls12381.Generators()
	var negG1 bls12381.G1Affine
	negG1.Neg(&g1)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{pk, negG1},
		[]bls12381.G2Affine{h, sig.p},
	)
	return err == nil && ok
}
