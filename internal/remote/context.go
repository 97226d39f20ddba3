package remote

import "context"

type contextKey string

const bypassCacheKey contextKey = "remote_bypass_cache"

// WithBypassCache marks ctx so cached sources fetch fresh data and then
// refresh the cache.
func WithBypassCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassCacheKey, true)
}

// BypassCacheFrom reports whether ctx asks to skip cached reads.
func BypassCacheFrom(ctx context.Context) bool {
	v, _ := ctx.Value(bypassCacheKey).(bool)
	return v
}
