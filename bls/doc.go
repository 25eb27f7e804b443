// Package bls implements BLS12-381 signatures in the minimal-pubkey-size
// variant: public keys live in G1 (48 byte compressed), signatures in G2 (96
// byte compressed), and messages are hashed to G2 with the RFC 9380 SSWU
// random-oracle map.
//
// Signing uses the proof-of-possession ciphersuite. Aggregate verification
// only accepts PossessionVerifiedKey values, which can be obtained solely by
// checking a proof of possession, so rogue-key aggregation is rejected by
// construction.
//
// All decoding is fail-closed: wrong lengths, points off the curve, points
// outside the prime-order subgroup and the identity public key are reported
// as ErrMalformed.
package bls
