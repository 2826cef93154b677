package cache

import (
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Option customizes a Store at construction time.
type Option func(*options)

type options struct {
	clock    Clock
	observer Observer
	logger   *slog.Logger
	group    *singleflight.Group
}

// WithClock overrides the time source used for insertion timestamps and
// TTL checks.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithObserver registers an event sink, typically a metrics collector.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger used for debug output. By default the store
// logs through the process-wide operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCoalescing makes concurrent misses for the same key share a single
// resolver call. Without it every missing Get calls the resolver and the
// last value stored wins.
//
// Waiters receive the leader's result, including an error caused by the
// leader's context being cancelled.
func WithCoalescing() Option {
	return func(o *options) {
		o.group = &singleflight.Group{}
	}
}
