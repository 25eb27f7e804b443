package model

// Attestation is the per-request output record.
//
// Hashes, nonce, signature and public key are lowercase hex.
type Attestation struct {
	AudioHash   string `json:"audio_hash"`
	ResultHash  string `json:"result_hash"`
	MessageHash string `json:"message_hash"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key"`
	Timestamp   uint64 `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Algorithm   string `json:"algorithm"`
	AlgoVersion string `json:"algo_version"`
}

// VerifyRequest returns the fields needed to verify a.
func (a Attestation) VerifyRequest() VerifyRequest {
	return VerifyRequest{
		AudioHash:   a.AudioHash,
		ResultHash:  a.ResultHash,
		AlgoVersion: a.AlgoVersion,
		Timestamp:   a.Timestamp,
		Nonce:       a.Nonce,
		Signature:   a.Signature,
		PublicKey:   a.PublicKey,
	}
}

// VerifyRequest carries a candidate signature and the message fields it
// claims to cover. An empty AlgoVersion means the verifier's own version.
type VerifyRequest struct {
	AudioHash   string `json:"audio_hash"`
	ResultHash  string `json:"result_hash"`
	AlgoVersion string `json:"algo_version,omitempty"`
	Timestamp   uint64 `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key"`
}

// AggregateVerifyRequest checks one aggregate signature over a shared message.
// Every public key must have been registered with a proof of possession.
type AggregateVerifyRequest struct {
	AudioHash   string   `json:"audio_hash"`
	ResultHash  string   `json:"result_hash"`
	AlgoVersion string   `json:"algo_version,omitempty"`
	Timestamp   uint64   `json:"timestamp"`
	Nonce       string   `json:"nonce"`
	Signature   string   `json:"signature"`
	PublicKeys  []string `json:"public_keys"`
}

// VerifyResult is the transport answer to a verification request.
// ErrorKind is empty when the check ran to completion.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// KeyRegistration submits a public key together with its proof of possession.
type KeyRegistration struct {
	PublicKey         string `json:"public_key"`
	ProofOfPossession string `json:"proof_of_possession"`
}

// PublicKeyInfo describes the service signing key.
type PublicKeyInfo struct {
	PublicKey         string `json:"public_key"`
	ProofOfPossession string `json:"proof_of_possession"`
	Algorithm         string `json:"algorithm"`
	DomainSeparator   string `json:"domain_separator"`
	AlgoVersion       string `json:"algo_version"`
}
