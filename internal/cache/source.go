package cache

import (
	"context"
	"time"
)

// Source is a byte-oriented upstream that a Store can resolve misses from.
// All operations are safe for concurrent use.
type Source interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value upstream. A zero TTL means the implementation's
	// default retention.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases all resources held by the source.
	Close() error
}

// SourceResolver adapts src into a Resolver for a Store[string, []byte].
func SourceResolver(src Source) Resolver[string, []byte] {
	return func(ctx context.Context, key string) ([]byte, error) {
		return src.Get(ctx, key)
	}
}
