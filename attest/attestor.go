package attest

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"echorank.dev/attest/bls"
	"echorank.dev/attest/canon"
	"echorank.dev/attest/message"
	"echorank.dev/attest/metrics"
	"echorank.dev/attest/model"
)

// Sink receives every attestation record the Attestor emits.
//
// Sinks run after the record is final. Their failures are logged and counted
// but never change the returned record.
type Sink interface {
	Name() string
	Record(ctx context.Context, att model.Attestation, result model.AnalysisResult) error
}

// Options configures an Attestor. Every field is optional.
type Options struct {
	// AlgoVersion names the analyzer version bound into each message.
	// Defaults to message.DefaultAlgoVersion.
	AlgoVersion string
	// Rand is the nonce source. Defaults to crypto/rand.Reader.
	Rand io.Reader
	// Now is the timestamp clock. Defaults to time.Now.
	Now func() time.Time

	Logger  *zap.Logger
	Metrics *metrics.Collectors
	Sinks   []Sink

	// Registry holds keys accepted for aggregate verification. The
	// Attestor adds its own key. When nil, a registry bounded by
	// MaxRegisteredKeys is created.
	Registry *bls.PossessionRegistry
	// MaxRegisteredKeys caps the default registry, own key included.
	// Defaults to DefaultMaxRegisteredKeys; negative means unbounded.
	MaxRegisteredKeys int
}

// DefaultMaxRegisteredKeys bounds co-signer registrations when Options
// leaves MaxRegisteredKeys unset.
const DefaultMaxRegisteredKeys = 1024

// Attestor signs and verifies attestation records with one service key.
// It is safe for concurrent use.
type Attestor struct {
	key         *bls.SecretKey
	pub         bls.PublicKey
	pop         bls.Signature
	algoVersion string
	rand        io.Reader
	now         func() time.Time
	log         *zap.Logger
	metrics     *metrics.Collectors
	sinks       []Sink
	registry    *bls.PossessionRegistry

	// selfCheck is bls.Verify outside of tests.
	selfCheck func(bls.PublicKey, [bls.DigestSize]byte, bls.Signature) bool
}

// New validates the key and options and returns an Attestor.
func New(key *bls.SecretKey, opts Options) (*Attestor, error) {
	if key == nil {
		return nil, newError(KindConfig, CodeSecretKey, "attest: signing key is not configured")
	}
	pop, err := key.ProvePossession()
	if err != nil {
		return nil, wrapError(KindConfig, CodeSecretKey, "attest: signing key is unusable", err)
	}
	pub := key.PublicKey()

	a := &Attestor{
		key:         key,
		pub:         pub,
		pop:         pop,
		algoVersion: opts.AlgoVersion,
		rand:        opts.Rand,
		now:         opts.Now,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		sinks:       append([]Sink(nil), opts.Sinks...),
		registry:    opts.Registry,
		selfCheck:   bls.Verify,
	}
	if a.algoVersion == "" {
		a.algoVersion = message.DefaultAlgoVersion
	}
	if _, err := message.New(canon.ContentHash{}, canon.ContentHash{}, a.algoVersion, 0, message.Nonce{}).Digest(); err != nil {
		return nil, wrapError(KindConfig, CodeOptions, "attest: invalid algo version", err)
	}
	if a.rand == nil {
		a.rand = rand.Reader
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.registry == nil {
		limit := opts.MaxRegisteredKeys
		if limit == 0 {
			limit = DefaultMaxRegisteredKeys
		}
		a.registry = bls.NewBoundedPossessionRegistry(limit)
	}
	vk, err := bls.VerifyPossession(pub, pop)
	if err != nil {
		return nil, wrapError(KindIntegrity, CodeSelfVerify, "attest: own proof of possession does not verify", err)
	}
	a.registry.Add(vk)
	return a, nil
}

// PublicKey returns the service verification key.
func (a *Attestor) PublicKey() bls.PublicKey { return a.pub }

// AlgoVersion returns the version string bound into new messages.
func (a *Attestor) AlgoVersion() string { return a.algoVersion }

// Registry returns the proof-of-possession registry used for aggregates.
func (a *Attestor) Registry() *bls.PossessionRegistry { return a.registry }

// PublicKeyInfo describes the signing key for clients.
func (a *Attestor) PublicKeyInfo() model.PublicKeyInfo {
	return model.PublicKeyInfo{
		PublicKey:         a.pub.Hex(),
		ProofOfPossession: a.pop.Hex(),
		Algorithm:         bls.Algorithm,
		DomainSeparator:   message.DomainSeparator,
		AlgoVersion:       a.algoVersion,
	}
}

// Attest hashes content and result, signs the resulting message digest and
// returns the record after checking the signature against the service key.
func (a *Attestor) Attest(ctx context.Context, content []byte, result model.AnalysisResult) (model.Attestation, error) {
	start := time.Now()
	att, err := a.attest(content, result)
	if err != nil {
		outcome := metrics.OutcomeError
		switch KindOf(err) {
		case KindValidation, KindMalformed:
			outcome = metrics.OutcomeRejected
		case KindIntegrity:
			outcome = metrics.OutcomeIntegrity
		}
		a.metrics.ObserveAttest(outcome, time.Since(start))
		return model.Attestation{}, err
	}
	a.metrics.ObserveAttest(metrics.OutcomeSigned, time.Since(start))
	a.log.Info("attestation signed",
		zap.String("audio_hash", att.AudioHash[:16]),
		zap.String("result_hash", att.ResultHash[:16]),
		zap.String("message_hash", att.MessageHash[:16]),
		zap.Uint64("timestamp", att.Timestamp),
	)
	a.record(ctx, att, result)
	return att, nil
}

func (a *Attestor) attest(content []byte, result model.AnalysisResult) (model.Attestation, error) {
	resultHash, err := canon.HashResult(result)
	if err != nil {
		return model.Attestation{}, classify("attest: invalid analysis result", err)
	}
	audioHash := canon.Sum(content)

	nonce, err := message.NewNonce(a.rand)
	if err != nil {
		return model.Attestation{}, wrapError(KindInternal, CodeNonceSource, "attest: nonce source failed", err)
	}
	now := a.now().Unix()
	if now < 0 {
		return model.Attestation{}, newError(KindInternal, CodeClock, "attest: clock is before the unix epoch")
	}
	msg := message.New(audioHash, resultHash, a.algoVersion, uint64(now), nonce)
	digest, err := msg.Digest()
	if err != nil {
		return model.Attestation{}, classify("attest: build message", err)
	}

	sig, err := a.key.Sign(digest)
	if err != nil {
		return model.Attestation{}, wrapError(KindInternal, CodeSigner, "attest: sign", err)
	}
	if !a.selfCheck(a.pub, digest, sig) {
		a.log.Error("signature failed self-verification",
			zap.String("message_hash", digest.String()),
			zap.String("public_key", a.pub.Hex()),
		)
		return model.Attestation{}, newError(KindIntegrity, CodeSelfVerify, "attest: signature failed self-verification")
	}

	return model.Attestation{
		AudioHash:   audioHash.String(),
		ResultHash:  resultHash.String(),
		MessageHash: digest.String(),
		Signature:   sig.Hex(),
		PublicKey:   a.pub.Hex(),
		Timestamp:   msg.Timestamp,
		Nonce:       nonce.String(),
		Algorithm:   bls.Algorithm,
		AlgoVersion: a.algoVersion,
	}, nil
}

func (a *Attestor) record(ctx context.Context, att model.Attestation, result model.AnalysisResult) {
	for _, s := range a.sinks {
		if err := s.Record(ctx, att, result); err != nil {
			a.metrics.ObserveSinkFailure(s.Name())
			a.log.Warn("attestation sink failed",
				zap.String("sink", s.Name()),
				zap.String("message_hash", att.MessageHash[:16]),
				zap.Error(err),
			)
		}
	}
}

// Verify rebuilds the message digest from the submitted fields and checks
// the signature. A well-formed request that does not verify returns
// (false, nil).
func (a *Attestor) Verify(ctx context.Context, req model.VerifyRequest) (bool, error) {
	ok, err := a.verify(req)
	a.metrics.ObserveVerify("single", verifyOutcome(ok, err))
	if err != nil {
		a.log.Debug("verification input rejected", zap.String("code", Code(err)), zap.Error(err))
	}
	return ok, err
}

func (a *Attestor) verify(req model.VerifyRequest) (bool, error) {
	digest, err := a.digestOf(req.AudioHash, req.ResultHash, req.AlgoVersion, req.Timestamp, req.Nonce)
	if err != nil {
		return false, err
	}
	pk, err := bls.ParsePublicKeyHex(req.PublicKey)
	if err != nil {
		return false, wrapError(KindMalformed, CodePublicKey, "attest: malformed public key", err)
	}
	sig, err := bls.ParseSignatureHex(req.Signature)
	if err != nil {
		return false, wrapError(KindMalformed, CodeSignature, "attest: malformed signature", err)
	}
	return bls.Verify(pk, digest, sig), nil
}

// VerifyAttestation checks a complete record. A message_hash that does not
// match the rebuilt digest fails verification.
func (a *Attestor) VerifyAttestation(ctx context.Context, att model.Attestation) (bool, error) {
	if att.MessageHash != "" {
		digest, err := a.digestOf(att.AudioHash, att.ResultHash, att.AlgoVersion, att.Timestamp, att.Nonce)
		if err != nil {
			a.metrics.ObserveVerify("single", metrics.OutcomeMalformed)
			return false, err
		}
		if digest.String() != strings.ToLower(strings.TrimSpace(att.MessageHash)) {
			a.metrics.ObserveVerify("single", metrics.OutcomeInvalid)
			return false, nil
		}
	}
	return a.Verify(ctx, att.VerifyRequest())
}

// VerifyAggregate checks one aggregate signature over a shared message.
// Every listed key must have been registered with a proof of possession;
// an unregistered key is a KindValidation error, not a false answer.
func (a *Attestor) VerifyAggregate(ctx context.Context, req model.AggregateVerifyRequest) (bool, error) {
	ok, err := a.verifyAggregate(req)
	a.metrics.ObserveVerify("aggregate", verifyOutcome(ok, err))
	return ok, err
}

func (a *Attestor) verifyAggregate(req model.AggregateVerifyRequest) (bool, error) {
	digest, err := a.digestOf(req.AudioHash, req.ResultHash, req.AlgoVersion, req.Timestamp, req.Nonce)
	if err != nil {
		return false, err
	}
	sig, err := bls.ParseSignatureHex(req.Signature)
	if err != nil {
		return false, wrapError(KindMalformed, CodeSignature, "attest: malformed aggregate signature", err)
	}
	pks := make([]bls.PublicKey, 0, len(req.PublicKeys))
	for i, s := range req.PublicKeys {
		pk, err := bls.ParsePublicKeyHex(s)
		if err != nil {
			return false, wrapError(KindMalformed, CodePublicKey, fmt.Sprintf("attest: malformed public key %d", i), err)
		}
		pks = append(pks, pk)
	}
	keys, err := a.registry.Resolve(pks)
	if err != nil {
		return false, classify("attest: aggregate key not registered", err)
	}
	return bls.VerifyAggregate(keys, digest, sig), nil
}

// RegisterKey accepts a co-signer key after checking its proof of possession.
func (a *Attestor) RegisterKey(ctx context.Context, reg model.KeyRegistration) (bls.PublicKey, error) {
	pk, err := bls.ParsePublicKeyHex(reg.PublicKey)
	if err != nil {
		return bls.PublicKey{}, wrapError(KindMalformed, CodePublicKey, "attest: malformed public key", err)
	}
	pop, err := bls.ParseSignatureHex(reg.ProofOfPossession)
	if err != nil {
		return bls.PublicKey{}, wrapError(KindMalformed, CodeSignature, "attest: malformed proof of possession", err)
	}
	if _, err := a.registry.Register(pk, pop); err != nil {
		return bls.PublicKey{}, classify("attest: proof of possession rejected", err)
	}
	a.log.Info("co-signer key registered", zap.String("public_key", pk.Hex()))
	return pk, nil
}

func (a *Attestor) digestOf(audioHex, resultHex, algoVersion string, ts uint64, nonceHex string) (message.Digest, error) {
	audioHash, err := canon.ParseContentHash(audioHex)
	if err != nil {
		return message.Digest{}, wrapError(KindMalformed, CodeHash, "attest: malformed audio hash", err)
	}
	resultHash, err := canon.ParseContentHash(resultHex)
	if err != nil {
		return message.Digest{}, wrapError(KindMalformed, CodeHash, "attest: malformed result hash", err)
	}
	nonce, err := message.ParseNonce(nonceHex)
	if err != nil {
		return message.Digest{}, wrapError(KindMalformed, CodeNonce, "attest: malformed nonce", err)
	}
	if algoVersion == "" {
		algoVersion = a.algoVersion
	}
	digest, err := message.New(audioHash, resultHash, algoVersion, ts, nonce).Digest()
	if err != nil {
		return message.Digest{}, classify("attest: build message", err)
	}
	return digest, nil
}

func verifyOutcome(ok bool, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeMalformed
	case ok:
		return metrics.OutcomeValid
	default:
		return metrics.OutcomeInvalid
	}
}

// VerifyResult converts a verification outcome into its transport form.
func VerifyResult(ok bool, err error) model.VerifyResult {
	if err == nil {
		return model.VerifyResult{Valid: ok}
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindInternal
	}
	return model.VerifyResult{Valid: false, ErrorKind: string(kind), Error: err.Error()}
}
