// Package canon holds the single canonical serialization of analysis results
// and the content hasher built on it.
//
// Every path that hashes, stores or logs a result MUST obtain its bytes from
// EncodeResult so that the same result hashes identically everywhere.
package canon

import (
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"echorank.dev/attest/model"
)

// EncodeResult returns the RFC 8785 canonical JSON encoding of r.
//
// Keys are sorted, strings are UTF-8, there is no insignificant whitespace and
// numbers use the ECMAScript shortest round-trip form. Invalid records are
// rejected with an error wrapping model.ErrInvalidResult.
func EncodeResult(r model.AnalysisResult) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return Canonicalize(r)
}

// HashResult is Sum(EncodeResult(r)).
func HashResult(r model.AnalysisResult) (ContentHash, error) {
	b, err := EncodeResult(r)
	if err != nil {
		return ContentHash{}, err
	}
	return Sum(b), nil
}

// Canonicalize marshals v with encoding/json and canonicalizes the output.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canon: canonicalize: %w", err)
	}
	return out, nil
}
