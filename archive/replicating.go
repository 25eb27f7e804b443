package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Named associates a Backend with a stable name for reporting.
type Named struct {
	Name    string
	Backend Backend
}

// Replicating writes to every backend and reads from the first that has the
// object, in slice order.
type Replicating struct {
	Backends []Named
}

var _ Backend = Replicating{}

// PutAll writes b to every backend and returns the per-backend CIDs. Any
// backend returning a different CID yields ErrCIDMismatch.
func (r Replicating) PutAll(ctx context.Context, b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := CIDOf(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, errors.New("archive: no backends configured")
	}
	out := make(map[string]cid.Cid, len(r.Backends))
	for _, nb := range r.Backends {
		if nb.Backend == nil {
			return cid.Undef, nil, fmt.Errorf("archive: nil backend %q", nb.Name)
		}
		got, err := nb.Backend.Put(ctx, b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("archive: backend %q: %w", nb.Name, err)
		}
		out[nb.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r Replicating) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, b)
	return id, err
}

func (r Replicating) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, nb := range r.Backends {
		if nb.Backend == nil {
			continue
		}
		b, err := nb.Backend.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r Replicating) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, nb := range r.Backends {
		if nb.Backend == nil {
			continue
		}
		ok, err := nb.Backend.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r Replicating) Link(ctx context.Context, messageHash string, id cid.Cid) error {
	if len(r.Backends) == 0 {
		return errors.New("archive: no backends configured")
	}
	for _, nb := range r.Backends {
		if nb.Backend == nil {
			return fmt.Errorf("archive: nil backend %q", nb.Name)
		}
		if err := nb.Backend.Link(ctx, messageHash, id); err != nil {
			return fmt.Errorf("archive: backend %q: %w", nb.Name, err)
		}
	}
	return nil
}

func (r Replicating) Resolve(ctx context.Context, messageHash string) (cid.Cid, error) {
	for _, nb := range r.Backends {
		if nb.Backend == nil {
			continue
		}
		id, err := nb.Backend.Resolve(ctx, messageHash)
		if err == nil {
			return id, nil
		}
		if !IsNotFound(err) {
			return cid.Undef, err
		}
	}
	return cid.Undef, ErrNotFound
}
