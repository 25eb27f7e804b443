package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/redis/go-redis/v9"
)

// kv is the subset of redis commands the backend needs.
type kv interface {
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// errKeyMissing is returned by kv.Get for an absent key.
var errKeyMissing = errors.New("archive: redis key missing")

type goRedis struct {
	client *redis.Client
}

func (g goRedis) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return g.client.SetNX(ctx, key, value, 0).Result()
}

func (g goRedis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := g.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errKeyMissing
	}
	return b, err
}

func (g goRedis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (g goRedis) Close() error { return g.client.Close() }

// RedisOptions configures a redis Backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key. Objects use <prefix>obj:<cid> and
	// index entries <prefix>idx:<message hash>.
	Prefix string
}

// Redis is a Backend over a redis server. Keys never expire.
type Redis struct {
	kv     kv
	prefix string
}

var _ Backend = (*Redis)(nil)

// NewRedis connects to the server and checks it with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("archive: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("archive: connect to redis %s: %w", opts.Addr, err)
	}
	return newRedis(goRedis{client: client}, opts.Prefix), nil
}

func newRedis(store kv, prefix string) *Redis {
	return &Redis{kv: store, prefix: prefix}
}

func (r *Redis) Close() error { return r.kv.Close() }

func (r *Redis) objectKey(id cid.Cid) string { return r.prefix + "obj:" + id.String() }

func (r *Redis) indexKey(messageHash string) string { return r.prefix + "idx:" + messageHash }

func (r *Redis) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, err := CIDOf(b)
	if err != nil {
		return cid.Undef, err
	}
	created, err := r.kv.SetNX(ctx, r.objectKey(id), b)
	if err != nil {
		return cid.Undef, fmt.Errorf("archive: redis put: %w", err)
	}
	if !created {
		existing, err := r.Get(ctx, id)
		if err != nil || !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
	}
	return id, nil
}

func (r *Redis) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	b, err := r.kv.Get(ctx, r.objectKey(id))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: redis get: %w", err)
	}
	if err := verify(id, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Redis) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	return r.kv.Exists(ctx, r.objectKey(id))
}

func (r *Redis) Link(ctx context.Context, messageHash string, id cid.Cid) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	want := []byte(id.String())
	created, err := r.kv.SetNX(ctx, r.indexKey(messageHash), want)
	if err != nil {
		return fmt.Errorf("archive: redis link: %w", err)
	}
	if !created {
		existing, err := r.kv.Get(ctx, r.indexKey(messageHash))
		if err != nil || !bytes.Equal(existing, want) {
			return ErrImmutable
		}
	}
	return nil
}

func (r *Redis) Resolve(ctx context.Context, messageHash string) (cid.Cid, error) {
	b, err := r.kv.Get(ctx, r.indexKey(messageHash))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			return cid.Undef, ErrNotFound
		}
		return cid.Undef, fmt.Errorf("archive: redis resolve: %w", err)
	}
	return ParseCID(string(b))
}
