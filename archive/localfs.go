package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"
)

// LocalFS is a filesystem Backend.
//
// Objects live under <root>/objects/<cid[:2]>/<cid> and are written once with
// read-only permissions. Index entries live under <root>/index/<hash[:2]>/<hash>
// and hold the CID string.
type LocalFS struct {
	root string
}

var _ Backend = (*LocalFS)(nil)

// NewLocalFS returns a store rooted at root, creating the directory if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	if root == "" {
		return nil, errors.New("archive: localfs root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalFS{root: root}, nil
}

func (l *LocalFS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, err := CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	if err := writeOnce(l.objectPath(id), b); err != nil {
		if errors.Is(err, ErrImmutable) {
			existing, rerr := l.Get(ctx, id)
			if rerr != nil || !bytes.Equal(existing, b) {
				return cid.Undef, ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}
	return id, nil
}

func (l *LocalFS) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	b, err := os.ReadFile(l.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *LocalFS) Has(_ context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	_, err := os.Stat(l.objectPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *LocalFS) Link(_ context.Context, messageHash string, id cid.Cid) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	path, err := l.indexPath(messageHash)
	if err != nil {
		return err
	}
	want := []byte(id.String())
	if err := writeOnce(path, want); err != nil {
		if errors.Is(err, ErrImmutable) {
			existing, rerr := os.ReadFile(path)
			if rerr != nil || !bytes.Equal(existing, want) {
				return ErrImmutable
			}
			return nil
		}
		return err
	}
	return nil
}

func (l *LocalFS) Resolve(_ context.Context, messageHash string) (cid.Cid, error) {
	path, err := l.indexPath(messageHash)
	if err != nil {
		return cid.Undef, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cid.Undef, ErrNotFound
		}
		return cid.Undef, err
	}
	return ParseCID(strings.TrimSpace(string(b)))
}

func (l *LocalFS) objectPath(id cid.Cid) string {
	s := id.String()
	return filepath.Join(l.root, "objects", s[:2], s)
}

func (l *LocalFS) indexPath(messageHash string) (string, error) {
	if len(messageHash) < 2 || strings.ContainsAny(messageHash, `/\.`) {
		return "", errors.New("archive: invalid message hash")
	}
	return filepath.Join(l.root, "index", messageHash[:2], messageHash), nil
}

// writeOnce creates path exclusively. An existing file yields ErrImmutable
// so callers can compare contents.
func writeOnce(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			return ErrImmutable
		}
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
