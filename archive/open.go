package archive

import (
	"context"
	"fmt"

	"echorank.dev/attest/config"
)

// Open builds the backend named by cfg. It returns a nil Backend when
// archiving is disabled. The close function is never nil.
func Open(ctx context.Context, cfg config.Archive) (Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", config.ArchiveNone:
		return nil, noop, nil
	case config.ArchiveLocalFS:
		b, err := NewLocalFS(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil
	case config.ArchiveRedis:
		b, err := NewRedis(ctx, RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix})
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	default:
		return nil, noop, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
