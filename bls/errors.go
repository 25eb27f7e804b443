package bls

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed reports an undecodable public key or signature.
	ErrMalformed = errors.New("bls: malformed input")
	// ErrMalformedPublicKey and ErrMalformedSignature narrow ErrMalformed to
	// the offending input.
	ErrMalformedPublicKey = fmt.Errorf("%w: public key", ErrMalformed)
	ErrMalformedSignature = fmt.Errorf("%w: signature", ErrMalformed)
	// ErrInvalidSecret reports a secret key that cannot be parsed or is out of range.
	ErrInvalidSecret = errors.New("bls: invalid secret key")
	// ErrInvalidKeyState reports signing with an unset or out-of-range key.
	ErrInvalidKeyState = errors.New("bls: invalid key state")
	// ErrEmptyAggregate reports aggregation over an empty input.
	ErrEmptyAggregate = errors.New("bls: empty aggregate")
	// ErrPossessionInvalid reports a proof of possession that does not verify.
	ErrPossessionInvalid = errors.New("bls: proof of possession invalid")
	// ErrRegistryFull reports a bounded PossessionRegistry at capacity.
	ErrRegistryFull = errors.New("bls: possession registry is full")
	// ErrPossessionUnproven reports a public key without an accepted proof of possession.
	ErrPossessionUnproven = errors.New("bls: public key has no accepted proof of possession")
)
