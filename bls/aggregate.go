package bls

import (
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// AggregatePublicKey is the group sum of possession-verified public keys.
// Its only use is verifying an aggregate signature over a shared message.
type AggregatePublicKey struct {
	p bls12381.G1Affine
}

// AggregateSignatures returns the group sum of sigs. The result does not
// depend on the order of sigs.
func AggregateSignatures(sigs []Signature) (Signature, error) {
	if len(sigs) == 0 {
		return Signature{}, ErrEmptyAggregate
	}
	var acc bls12381.G2Jac
	acc.FromAffine(&sigs[0].p)
	for i := 1; i < len(sigs); i++ {
		acc.AddMixed(&sigs[i].p)
	}
	var out Signature
	out.p.FromJacobian(&acc)
	return out, nil
}

// AggregatePublicKeys returns the group sum of keys.
func AggregatePublicKeys(keys []PossessionVerifiedKey) (AggregatePublicKey, error) {
	if len(keys) == 0 {
		return AggregatePublicKey{}, ErrEmptyAggregate
	}
	var acc bls12381.G1Jac
	acc.FromAffine(&keys[0].pk.p)
	for i := 1; i < len(keys); i++ {
		acc.AddMixed(&keys[i].pk.p)
	}
	var out AggregatePublicKey
	out.p.FromJacobian(&acc)
	return out, nil
}

// Verify checks agg against digest in one pairing equation.
func (apk AggregatePublicKey) Verify(digest [DigestSize]byte, agg Signature) bool {
	return verifyWithDST(apk.p, digest[:], agg, sigDST)
}

// VerifyAggregate checks that agg is the aggregate of signatures over digest
// by the holders of keys. An empty key set never verifies, and neither does
// a zero-value PossessionVerifiedKey.
func VerifyAggregate(keys []PossessionVerifiedKey, digest [DigestSize]byte, agg Signature) bool {
	for _, k := range keys {
		if !k.pk.valid() {
			return false
		}
	}
	apk, err := AggregatePublicKeys(keys)
	if err != nil {
		return false
	}
	return apk.Verify(digest, agg)
}
