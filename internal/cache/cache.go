// Package cache implements an in-memory FIFO cache that resolves misses
// through a caller-supplied Resolver.
//
// Entries are evicted in strict insertion order, either because the store
// grew past its capacity or because they outlived the configured TTL.
// Pruning is lazy: it runs at the start of every Get (and after a resolved
// value is stored) or when Prune is called explicitly. There is no background
// sweep goroutine.
//
// The package also ships byte-oriented Sources (in-memory, Redis, PostgreSQL
// and a tiered combination) that can be turned into a Resolver with
// SourceResolver.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Source when the key does not exist upstream.
var ErrNotFound = errors.New("cache: key not found")

// Resolver produces the value for a key that is not cached. It may block;
// the store does not impose a timeout and passes the caller's context
// through unchanged.
type Resolver[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Config is the immutable configuration of a Store.
//
// Preconditions (not checked): Capacity > 0 and 0 < Prune <= Capacity.
// A Prune larger than Capacity makes every capacity pass empty the store.
// TTL <= 0 disables expiry.
type Config struct {
	Capacity int
	Prune    int
	TTL      time.Duration
}

// Entry is a cached value and the time it was stored.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
}

// Eviction reasons reported to an Observer.
const (
	EvictCapacity = "capacity"
	EvictTTL      = "ttl"
)

// Observer receives store events. Implementations must be safe for
// concurrent use and must not call back into the store.
type Observer interface {
	Hit()
	Miss()
	Evicted(reason string, n int)
	Resolved(d time.Duration, err error)
	Size(n int)
}

type nopObserver struct{}

func (nopObserver) Hit()                          {}
func (nopObserver) Miss()                         {}
func (nopObserver) Evicted(string, int)           {}
func (nopObserver) Resolved(time.Duration, error) {}
func (nopObserver) Size(int)                      {}

// Clock supplies the current time. Tests swap in a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Size              int    `json:"size"`
	Hits              uint64 `json:"hits"`
	Misses            uint64 `json:"misses"`
	ResolveErrors     uint64 `json:"resolve_errors"`
	CapacityEvictions uint64 `json:"capacity_evictions"`
	Expirations       uint64 `json:"expirations"`
}
