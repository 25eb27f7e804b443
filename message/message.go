// Package message builds the digest that the attestation service signs.
//
// The pre-image is
//
//	DomainSeparator || audio_hash || result_hash || algo_version || timestamp || nonce
//
// joined by FieldSeparator, UTF-8 encoded and hashed with SHA-256. The signed
// value is always the fixed-size digest, never the joined string.
//
// DomainSeparator MUST be bumped whenever the field list or the separator
// format changes.
package message

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"echorank.dev/attest/canon"
)

const (
	// DomainSeparator scopes every signature to this message format.
	DomainSeparator = "ECHORANK_V1"
	// FieldSeparator is placed between pre-image fields.
	FieldSeparator = "||"
	// DefaultAlgoVersion identifies the analyzer whose output is attested.
	// Signers and verifiers read it from configuration; this is the fallback.
	DefaultAlgoVersion = "SenseVoice-v1.0"

	NonceSize  = 16
	DigestSize = sha256.Size
)

var (
	ErrInvalidField = errors.New("message: invalid field")
	ErrInvalidNonce = errors.New("message: invalid nonce")
)

// Nonce is a per-message random value.
type Nonce [NonceSize]byte

// NewNonce reads NonceSize bytes from r, which should be crypto/rand.Reader.
func NewNonce(r io.Reader) (Nonce, error) {
	var n Nonce
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return Nonce{}, fmt.Errorf("message: read nonce: %w", err)
	}
	return n, nil
}

// ParseNonce decodes 32 hex characters.
func ParseNonce(s string) (Nonce, error) {
	if len(s) != 2*NonceSize {
		return Nonce{}, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidNonce, 2*NonceSize, len(s))
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return Nonce{}, fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	var n Nonce
	copy(n[:], b)
	return n, nil
}

func (n Nonce) String() string { return hex.EncodeToString(n[:]) }

// Digest is the value handed to the signer.
type Digest [DigestSize]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// SignedMessage is the tuple covered by an attestation signature.
type SignedMessage struct {
	DomainSep   string
	AudioHash   canon.ContentHash
	ResultHash  canon.ContentHash
	AlgoVersion string
	Timestamp   uint64
	Nonce       Nonce
}

// New returns a message under the current DomainSeparator.
func New(audioHash, resultHash canon.ContentHash, algoVersion string, timestamp uint64, nonce Nonce) SignedMessage {
	return SignedMessage{
		DomainSep:   DomainSeparator,
		AudioHash:   audioHash,
		ResultHash:  resultHash,
		AlgoVersion: algoVersion,
		Timestamp:   timestamp,
		Nonce:       nonce,
	}
}

// Preimage returns the joined UTF-8 bytes that Digest hashes.
func (m SignedMessage) Preimage() ([]byte, error) {
	if err := checkTextField("domain separator", m.DomainSep); err != nil {
		return nil, err
	}
	if err := checkTextField("algo version", m.AlgoVersion); err != nil {
		return nil, err
	}
	parts := []string{
		m.DomainSep,
		m.AudioHash.String(),
		m.ResultHash.String(),
		m.AlgoVersion,
		strconv.FormatUint(m.Timestamp, 10),
		m.Nonce.String(),
	}
	return []byte(strings.Join(parts, FieldSeparator)), nil
}

// Digest returns SHA-256 of the pre-image.
func (m SignedMessage) Digest() (Digest, error) {
	pre, err := m.Preimage()
	if err != nil {
		return Digest{}, err
	}
	return Digest(sha256.Sum256(pre)), nil
}

// checkTextField keeps the join unambiguous: free-text fields may not be
// empty or contain the separator token.
func checkTextField(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidField, name)
	}
	if strings.Contains(v, FieldSeparator) {
		return fmt.Errorf("%w: %s contains %q", ErrInvalidField, name, FieldSeparator)
	}
	return nil
}
