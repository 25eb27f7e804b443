package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"

	"echorank.dev/attest/canon"
	"echorank.dev/attest/model"
)

// Record is the archived form of one attestation.
type Record struct {
	Attestation model.Attestation    `json:"attestation"`
	Result      model.AnalysisResult `json:"result"`
}

// EncodeRecord returns the canonical bytes of rec.
func EncodeRecord(rec Record) ([]byte, error) {
	if err := rec.Result.Validate(); err != nil {
		return nil, err
	}
	return canon.Canonicalize(rec)
}

func DecodeRecord(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("archive: decode record: %w", err)
	}
	return rec, nil
}

// Sink archives every record it receives and indexes it by message hash.
type Sink struct {
	backend Backend
}

func NewSink(b Backend) *Sink { return &Sink{backend: b} }

func (s *Sink) Name() string { return "archive" }

func (s *Sink) Record(ctx context.Context, att model.Attestation, result model.AnalysisResult) error {
	_, err := s.Put(ctx, Record{Attestation: att, Result: result})
	return err
}

// Put stores rec and links its message hash.
func (s *Sink) Put(ctx context.Context, rec Record) (cid.Cid, error) {
	b, err := EncodeRecord(rec)
	if err != nil {
		return cid.Undef, err
	}
	id, err := s.backend.Put(ctx, b)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.backend.Link(ctx, rec.Attestation.MessageHash, id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Lookup returns the record archived under messageHash.
func (s *Sink) Lookup(ctx context.Context, messageHash string) (Record, cid.Cid, error) {
	id, err := s.backend.Resolve(ctx, messageHash)
	if err != nil {
		return Record{}, cid.Undef, err
	}
	b, err := s.backend.Get(ctx, id)
	if err != nil {
		return Record{}, cid.Undef, err
	}
	rec, err := DecodeRecord(b)
	if err != nil {
		return Record{}, cid.Undef, err
	}
	return rec, id, nil
}
