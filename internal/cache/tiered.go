package cache

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/quasar/internal/logging"
)

// TieredSource reads from a fast L1 source (typically Redis) and falls
// through to L2 (typically PostgreSQL) on an L1 miss, populating L1 with the
// L2 value. Writes go to both layers.
type TieredSource struct {
	l1    Source
	l2    Source
	l1TTL time.Duration
}

// NewTieredSource creates a two-level source. l1TTL bounds how long values
// copied from L2 live in L1 (default 10s).
func NewTieredSource(l1, l2 Source, l1TTL time.Duration) *TieredSource {
	if l1TTL <= 0 {
		l1TTL = 10 * time.Second
	}
	return &TieredSource{l1: l1, l2: l2, l1TTL: l1TTL}
}

// Get returns the L1 value when present. L1 errors other than ErrNotFound
// are treated as a miss so an unavailable L1 degrades to L2 reads.
func (t *TieredSource) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := t.l1.Get(ctx, key)
	if err == nil {
		return val, nil
	}

	val, err = t.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := t.l1.Set(ctx, key, val, t.l1TTL); err != nil {
		logging.Op().Debug("tiered L1 backfill failed", "key", key, "error", err)
	}
	return val, nil
}

func (t *TieredSource) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, t.l1TTL); err != nil {
		logging.Op().Debug("tiered L1 write failed", "key", key, "error", err)
	}
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *TieredSource) Ping(ctx context.Context) error {
	if err := t.l1.Ping(ctx); err != nil {
		return err
	}
	return t.l2.Ping(ctx)
}

func (t *TieredSource) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
