// Package grpcapi exposes an attest.Attestor over gRPC.
//
// The service descriptor is written by hand against protobuf well-known
// types (see attestor.proto), so building the package requires no protoc
// step.
//
// Attest follows the HTTP API's input rules: content must be valid, non-empty
// base64 and the result must satisfy the analysis schema; both answer
// InvalidArgument otherwise. A full co-signer registry answers
// ResourceExhausted.
package grpcapi
