// Package archive keeps attestation records in content-addressed storage.
//
// Records are stored as RFC 8785 canonical JSON and keyed by a CIDv1 (raw
// codec, sha2-256 multihash) computed over exactly those bytes, so the same
// record always lands under the same identifier. A separate index maps each
// record's message hash to its CID.
package archive

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotFound    = errors.New("archive: not found")
	ErrInvalidCID  = errors.New("archive: invalid cid")
	ErrCIDMismatch = errors.New("archive: cid mismatch")
	ErrImmutable   = errors.New("archive: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is a content-addressable byte store.
//
// Contract:
//   - Put is idempotent and returns CIDOf(bytes).
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the CID is absent.
type Store interface {
	Put(ctx context.Context, bytes []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// Index maps message hashes to record CIDs.
type Index interface {
	Link(ctx context.Context, messageHash string, id cid.Cid) error
	Resolve(ctx context.Context, messageHash string) (cid.Cid, error)
}

// Backend is a Store that also carries the message hash index.
type Backend interface {
	Store
	Index
}

// CIDOf returns the CIDv1 (raw + sha2-256) of data.
func CIDOf(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseCID decodes s and requires the raw sha2-256 form used by this package.
func ParseCID(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errors.Join(ErrInvalidCID, err)
	}
	pref := id.Prefix()
	if pref.Version != 1 || pref.Codec != cid.Raw || pref.MhType != multihash.SHA2_256 {
		return cid.Undef, ErrInvalidCID
	}
	return id, nil
}

// verify checks that b hashes to id.
func verify(id cid.Cid, b []byte) error {
	got, err := CIDOf(b)
	if err != nil {
		return err
	}
	if got != id {
		return ErrCIDMismatch
	}
	return nil
}
