package archive

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process Backend. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
	index   map[string]cid.Cid
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: make(map[cid.Cid][]byte), index: make(map[string]cid.Cid)}
}

func (m *Memory) Put(_ context.Context, b []byte) (cid.Cid, error) {
	id, err := CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = append([]byte(nil), b...)
	return id, nil
}

func (m *Memory) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(_ context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok, nil
}

func (m *Memory) Link(_ context.Context, messageHash string, id cid.Cid) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.index[messageHash]; ok && existing != id {
		return ErrImmutable
	}
	m.index[messageHash] = id
	return nil
}

func (m *Memory) Resolve(_ context.Context, messageHash string) (cid.Cid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.index[messageHash]
	if !ok {
		return cid.Undef, ErrNotFound
	}
	return id, nil
}
