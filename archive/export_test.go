package archive

import (
	"context"
	"sync"
)

// fakeKV mimics the redis commands used by Redis.
type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeKV) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = append([]byte(nil), value...)
	return true, nil
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	if !ok {
		return nil, errKeyMissing
	}
	return append([]byte(nil), b...), nil
}

func (f *fakeKV) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeKV) Close() error { return nil }

// NewFakeRedis returns a Redis backend over an in-memory command set.
func NewFakeRedis(prefix string) (*Redis, map[string][]byte) {
	kv := &fakeKV{data: make(map[string][]byte)}
	return newRedis(kv, prefix), kv.data
}
