package circuitbreaker

import (
	"context"
	"errors"

	"github.com/oriys/quasar/internal/cache"
)

// Resolver wraps next so that it is not called while b is open. Calls that
// are rejected return ErrOpen.
//
// cache.ErrNotFound counts as a success: the upstream answered. A cancelled
// or expired caller context is not held against the upstream either.
func Resolver[K comparable, V any](b *Breaker, next cache.Resolver[K, V]) cache.Resolver[K, V] {
	return func(ctx context.Context, key K) (V, error) {
		permit, ok := b.Allow()
		if !ok {
			var zero V
			return zero, ErrOpen
		}

		v, err := next(ctx, key)
		switch {
		case err == nil, errors.Is(err, cache.ErrNotFound):
			b.RecordSuccess(permit)
		case ctx.Err() != nil:
			b.Release(permit)
		default:
			b.RecordFailure(permit)
		}
		return v, err
	}
}
