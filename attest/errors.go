package attest

import (
	"errors"

	"echorank.dev/attest/bls"
	"echorank.dev/attest/canon"
	"echorank.dev/attest/message"
	"echorank.dev/attest/model"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/Code rather than matching error strings.
// Error() strings are human-readable and may evolve.
type Kind string

const (
	KindConfig     Kind = "Config"
	KindValidation Kind = "Validation"
	KindMalformed  Kind = "Malformed"
	KindIntegrity  Kind = "Integrity"
	KindInternal   Kind = "Internal"
)

// Stable error codes.
const (
	CodeSecretKey       = "ATTEST-CFG-001"
	CodeOptions         = "ATTEST-CFG-002"
	CodeResult          = "ATTEST-VAL-001"
	CodeMessageField    = "ATTEST-VAL-002"
	CodePossession      = "ATTEST-VAL-003"
	CodeUnregisteredKey = "ATTEST-VAL-004"
	CodeHash            = "ATTEST-MAL-001"
	CodeNonce           = "ATTEST-MAL-002"
	CodeSignature       = "ATTEST-MAL-003"
	CodePublicKey       = "ATTEST-MAL-004"
	CodeSelfVerify      = "ATTEST-INT-001"
	CodeNonceSource     = "ATTEST-SYS-001"
	CodeSigner          = "ATTEST-SYS-002"
	CodeClock           = "ATTEST-SYS-003"
	CodeRegistryFull    = "ATTEST-VAL-005"
)

// Error is the structured error type of the attestation layer.
//
// Code names the violated rule. Message is intended for humans; do not match
// on it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func wrapError(kind Kind, code, msg string, cause error) error {
	if cause == nil {
		return newError(kind, code, msg)
	}
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of a structured error, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// Code returns the stable code of a structured error, or "" if unknown.
func Code(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// ModelCode maps err onto the boundary error codes of the model package.
func ModelCode(err error) model.ErrorCode {
	switch KindOf(err) {
	case KindValidation:
		return model.ErrValidation
	case KindMalformed:
		return model.ErrMalformed
	case KindIntegrity:
		return model.ErrIntegrity
	case KindConfig:
		return model.ErrUnavailable
	default:
		return model.ErrInternal
	}
}

// classify folds sentinel errors of the lower packages into the taxonomy.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, model.ErrInvalidResult):
		return wrapError(KindValidation, CodeResult, msg, err)
	case errors.Is(err, message.ErrInvalidField):
		return wrapError(KindValidation, CodeMessageField, msg, err)
	case errors.Is(err, message.ErrInvalidNonce):
		return wrapError(KindMalformed, CodeNonce, msg, err)
	case errors.Is(err, canon.ErrInvalidHash):
		return wrapError(KindMalformed, CodeHash, msg, err)
	case errors.Is(err, bls.ErrPossessionInvalid):
		return wrapError(KindValidation, CodePossession, msg, err)
	case errors.Is(err, bls.ErrRegistryFull):
		return wrapError(KindValidation, CodeRegistryFull, msg, err)
	case errors.Is(err, bls.ErrPossessionUnproven):
		return wrapError(KindValidation, CodeUnregisteredKey, msg, err)
	case errors.Is(err, bls.ErrInvalidSecret):
		return wrapError(KindConfig, CodeSecretKey, msg, err)
	case errors.Is(err, bls.ErrInvalidKeyState):
		return wrapError(KindInternal, CodeSigner, msg, err)
	case errors.Is(err, bls.ErrMalformedPublicKey):
		return wrapError(KindMalformed, CodePublicKey, msg, err)
	case errors.Is(err, bls.ErrMalformed):
		return wrapError(KindMalformed, CodeSignature, msg, err)
	default:
		return wrapError(KindInternal, CodeSigner, msg, err)
	}
}
