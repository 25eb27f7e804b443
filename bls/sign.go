package bls

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// DigestSize is the size of the message digests accepted by Sign and Verify.
const DigestSize = 32

var (
	sigDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")
	popDST = []byte("BLS_POP_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")
)

// Sign returns sk * H(digest). It is deterministic in (sk, digest).
func (sk *SecretKey) Sign(digest [DigestSize]byte) (Signature, error) {
	return sk.signWithDST(digest[:], sigDST)
}

// ProvePossession signs the compressed encoding of the key's own public key
// under the proof-of-possession tag.
func (sk *SecretKey) ProvePossession() (Signature, error) {
	if err := sk.check(); err != nil {
		return Signature{}, err
	}
	return sk.signWithDST(sk.pub.Bytes(), popDST)
}

func (sk *SecretKey) signWithDST(msg, dst []byte) (Signature, error) {
	if err := sk.check(); err != nil {
		return Signature{}, err
	}
	h, err := bls12381.HashToG2(msg, dst)
	if err != nil {
		return Signature{}, fmt.Errorf("bls: hash to G2: %w", err)
	}
	var sig Signature
	sig.p.ScalarMultiplication(&h, &sk.scalar)
	return sig, nil
}
