// Package model defines the fixed-schema boundary records of the attestation
// service.
//
// AnalysisResult is the only accepted shape for analyzer output; dynamically
// shaped input is converted once, at the boundary, by AnalysisResultFromMap.
// The remaining structs are the wire records used by the HTTP and gRPC layers
// and are intended for direct JSON serialization.
package model
