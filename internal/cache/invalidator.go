package cache

import (
	"context"
	"sync"

	"github.com/oriys/quasar/internal/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel is the Redis Pub/Sub channel carrying keys that
// peer processes should drop from their local store.
const DefaultInvalidationChannel = "quasar:cache:invalidate"

// Deleter is the part of a Store an Invalidator needs.
type Deleter interface {
	Delete(key string)
}

// Invalidator keeps several quasar processes from serving a value after it
// was deleted on one of them. Each message on the channel is a key to
// delete from the local store.
type Invalidator struct {
	local   Deleter
	client  *redis.Client
	channel string

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewInvalidator creates an invalidator for local on channel (default
// DefaultInvalidationChannel).
func NewInvalidator(local Deleter, client *redis.Client, channel string) *Invalidator {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &Invalidator{local: local, client: client, channel: channel}
}

// Start subscribes and applies invalidations until ctx is cancelled or Close
// is called. It blocks.
func (i *Invalidator) Start(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		cancel()
		return
	}
	i.cancel = cancel
	i.mu.Unlock()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	logging.Op().Info("cache invalidator subscribed", "channel", i.channel)
	i.consume(subCtx, pubsub.Channel())
}

func (i *Invalidator) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			i.local.Delete(msg.Payload)
		}
	}
}

// Publish asks every subscribed process, including this one, to drop key.
func (i *Invalidator) Publish(ctx context.Context, key string) error {
	return i.client.Publish(ctx, i.channel, key).Err()
}

// Close stops the listener. It is safe to call more than once.
func (i *Invalidator) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if i.cancel != nil {
		i.cancel()
	}
	return nil
}
