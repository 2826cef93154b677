package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oriys/quasar/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Store is a FIFO cache in front of a Resolver. All methods are safe for
// concurrent use.
//
// The store mutex is held while pruning and looking up a key and while
// inserting a resolved value, but not while the resolver runs. By default
// concurrent misses for the same key are not deduplicated: each calls the
// resolver and the last value stored wins. WithCoalescing changes that.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	entries *orderedMap[K, V]
	// oldest is a lower bound on the InsertedAt of every stored entry. It lets
	// the TTL pass return early when nothing can have expired yet.
	oldest time.Time
	stats  Stats

	cfg      Config
	resolve  Resolver[K, V]
	clock    Clock
	observer Observer
	logger   *slog.Logger
	group    *singleflight.Group
}

// New creates a store that calls resolve on every miss. The configuration is
// stored verbatim; see Config for its preconditions.
func New[K comparable, V any](resolve Resolver[K, V], cfg Config, opts ...Option) *Store[K, V] {
	o := options{
		clock:    systemClock{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[K, V]{
		entries:  newOrderedMap[K, V](cfg.Capacity),
		oldest:   o.clock.Now(),
		cfg:      cfg,
		resolve:  resolve,
		clock:    o.clock,
		observer: o.observer,
		logger:   o.logger,
		group:    o.group,
	}
}

// Get returns the cached value for key, resolving and caching it on a miss.
//
// The store is pruned before the lookup, so an entry past its TTL is never
// returned. A resolver error is returned as-is and nothing is cached.
func (s *Store[K, V]) Get(ctx context.Context, key K) (V, error) {
	s.mu.Lock()
	capEvicted, expired := s.pruneLocked()
	e, ok := s.entries.get(key)
	if ok {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	s.mu.Unlock()
	s.reportPrune(capEvicted, expired)

	if ok {
		s.observer.Hit()
		return e.Value, nil
	}
	s.observer.Miss()

	if s.group == nil {
		return s.load(ctx, key)
	}

	v, err, _ := s.group.Do(flightKey(key), func() (any, error) {
		return s.load(ctx, key)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	val, _ := v.(V)
	return val, nil
}

// load calls the resolver and stores its result at the newest position.
func (s *Store[K, V]) load(ctx context.Context, key K) (V, error) {
	start := s.clock.Now()
	v, err := s.resolve(ctx, key)
	s.observer.Resolved(s.clock.Now().Sub(start), err)
	if err != nil {
		s.mu.Lock()
		s.stats.ResolveErrors++
		s.mu.Unlock()
		s.log().Debug("cache resolver failed", "key", key, "error", err)
		var zero V
		return zero, err
	}

	s.mu.Lock()
	s.entries.put(key, v, s.clock.Now())
	capEvicted, expired := s.pruneLocked()
	size := s.entries.len()
	s.mu.Unlock()

	s.reportPrune(capEvicted, expired)
	s.observer.Size(size)
	return v, nil
}

// Delete removes key from the store. Deleting a missing key is a no-op.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	s.entries.remove(key)
	size := s.entries.len()
	s.mu.Unlock()
	s.observer.Size(size)
}

// Clear removes every entry. Configuration is left untouched.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	s.entries.clear()
	s.mu.Unlock()
	s.observer.Size(0)
}

// Prune runs the capacity pass and then the TTL pass. Calling it twice
// without an insert in between is a no-op the second time.
func (s *Store[K, V]) Prune() {
	s.mu.Lock()
	capEvicted, expired := s.pruneLocked()
	s.mu.Unlock()
	s.reportPrune(capEvicted, expired)
}

// Len returns the number of stored entries, including any that are past
// their TTL but have not been pruned yet.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.len()
}

// Keys returns the stored keys from oldest to newest insertion.
func (s *Store[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.keys()
}

// Stats returns a snapshot of the store counters.
func (s *Store[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Size = s.entries.len()
	return st
}

// pruneLocked returns the number of entries removed by each pass.
func (s *Store[K, V]) pruneLocked() (capEvicted, expired int) {
	if s.entries.len() > s.cfg.Capacity {
		target := s.cfg.Capacity - s.cfg.Prune
		for s.entries.len() > 0 && s.entries.len() > target {
			s.entries.removeOldest()
			capEvicted++
		}
	}

	if s.cfg.TTL > 0 && s.entries.len() > 0 {
		now := s.clock.Now()
		threshold := now.Add(-s.cfg.TTL)
		if s.oldest.Before(threshold) {
			for n := s.entries.oldest(); n != nil; n = s.entries.oldest() {
				if !n.entry.InsertedAt.Before(threshold) {
					s.oldest = n.entry.InsertedAt
					break
				}
				s.entries.removeOldest()
				expired++
			}
			if s.entries.len() == 0 {
				s.oldest = now
			}
		}
	}

	s.stats.CapacityEvictions += uint64(capEvicted)
	s.stats.Expirations += uint64(expired)
	return capEvicted, expired
}

func (s *Store[K, V]) reportPrune(capEvicted, expired int) {
	if capEvicted == 0 && expired == 0 {
		return
	}
	if capEvicted > 0 {
		s.observer.Evicted(EvictCapacity, capEvicted)
	}
	if expired > 0 {
		s.observer.Evicted(EvictTTL, expired)
	}
	s.log().Debug("cache pruned", "capacity_evicted", capEvicted, "expired", expired)
}

func (s *Store[K, V]) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.Op()
}

// flightKey renders key for the singleflight group. String-typed keys are
// used as-is; anything else goes through %#v, which keeps keys of different
// dynamic types (e.g. "1" and 1 behind an interface) apart.
func flightKey[K comparable](key K) string {
	var zero K
	if _, ok := any(zero).(string); ok {
		return any(key).(string)
	}
	return fmt.Sprintf("%#v", key)
}
