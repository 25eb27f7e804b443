// Package archivetest holds the conformance suite every archive backend must pass.
package archivetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"echorank.dev/attest/archive"
)

// NewBackend constructs a fresh, empty backend isolated from other tests.
type NewBackend func(t *testing.T) archive.Backend

func Run(t *testing.T, newBackend NewBackend) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		b := newBackend(t)
		want := []byte(`{"attestation":{},"result":{}}`)

		id, err := b.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := archive.CIDOf(want)
		if err != nil {
			t.Fatalf("CIDOf failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}
		got, err := b.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		b := newBackend(t)
		id1, err := b.Put(ctx, []byte("same bytes"))
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := b.Put(ctx, []byte("same bytes"))
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		b := newBackend(t)
		data := []byte("missing")
		id, err := archive.CIDOf(data)
		if err != nil {
			t.Fatalf("CIDOf failed: %v", err)
		}
		if ok, err := b.Has(ctx, id); err != nil || ok {
			t.Fatalf("Has on missing CID: ok=%v err=%v", ok, err)
		}
		if _, err := b.Get(ctx, id); !archive.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if _, err := b.Put(ctx, data); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if ok, err := b.Has(ctx, id); err != nil || !ok {
			t.Fatalf("Has after Put: ok=%v err=%v", ok, err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		b := newBackend(t)
		var undef cid.Cid
		if ok, _ := b.Has(ctx, undef); ok {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := b.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
		if err := b.Link(ctx, "ab12", undef); err == nil {
			t.Fatalf("Link should fail for undefined CID")
		}
	})

	t.Run("IndexLinkResolve", func(t *testing.T) {
		b := newBackend(t)
		id, err := b.Put(ctx, []byte("record"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		other, err := archive.CIDOf([]byte("other"))
		if err != nil {
			t.Fatalf("CIDOf failed: %v", err)
		}
		const hash = "653356db2eacf9c28ae8c5d15021c14b204d4f9eaeaee083a39df245a86150f0"

		if _, err := b.Resolve(ctx, hash); !archive.IsNotFound(err) {
			t.Fatalf("Resolve before Link: got %v want ErrNotFound", err)
		}
		if err := b.Link(ctx, hash, id); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
		if err := b.Link(ctx, hash, id); err != nil {
			t.Fatalf("Link not idempotent: %v", err)
		}
		if err := b.Link(ctx, hash, other); err == nil {
			t.Fatalf("relinking to a different CID must fail")
		}
		got, err := b.Resolve(ctx, hash)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got != id {
			t.Fatalf("Resolve: got %s want %s", got, id)
		}
	})
}
