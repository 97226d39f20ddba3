package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// guardedSource bounds every fetch by a timeout and reports all failures
// as ErrUnavailable.
type guardedSource struct {
	inner   StatusSource
	timeout time.Duration
}

func (g *guardedSource) Statuses(ctx context.Context) (Statuses, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	st, err := g.inner.Statuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return st, nil
}

// Closer releases resources held by a source stack.
type Closer func() error

// NewSource builds the full source stack: the site client, retry, the
// optional Redis cache, and the timeout guard. A Redis server that cannot be
// reached disables caching rather than failing.
func NewSource(ctx context.Context, cfg Config, resolve Resolver, log zerolog.Logger) (StatusSource, Closer) {
	var src StatusSource = NewClient(cfg, resolve)
	src = WithRetry(src, cfg.Retry)

	closer := Closer(func() error { return nil })
	if cfg.RedisURL != "" {
		cache, err := NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("status cache disabled")
		} else {
			src = WithCache(src, cache, cfg.CacheTTL, log)
			closer = cache.Close
		}
	}

	return &guardedSource{inner: src, timeout: cfg.Timeout}, closer
}
