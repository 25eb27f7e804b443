// Package attest ties hashing, message construction and BLS signing into the
// attestation flow used by the transports.
//
// An Attestor is built once from the service signing key and is immutable
// afterwards. Every signature it produces is verified against its own public
// key before a record is returned; a failed self-check is reported as a
// KindIntegrity error and no record is emitted.
//
// Verification answers false for a well-formed request whose signature does
// not match. Inputs that cannot be decoded return a *Error carrying
// KindMalformed or KindValidation so that transports can report the reason
// alongside valid=false.
package attest
