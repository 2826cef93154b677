package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestInvalidator_ConsumeDeletesKeys(t *testing.T) {
	r := newCountingResolver()
	s := New(r.resolve, Config{Capacity: 10, Prune: 2})
	mustGet(t, s, "a")
	mustGet(t, s, "b")

	inv := NewInvalidator(s, nil, "")
	require.Equal(t, DefaultInvalidationChannel, inv.channel)

	ch := make(chan *redis.Message, 2)
	ch <- &redis.Message{Channel: inv.channel, Payload: "a"}
	ch <- &redis.Message{Channel: inv.channel, Payload: "unknown"}
	close(ch)

	inv.consume(context.Background(), ch)
	require.Equal(t, []string{"b"}, s.Keys())
}

func TestInvalidator_ConsumeStopsOnCancel(t *testing.T) {
	inv := NewInvalidator(New(newCountingResolver().resolve, Config{Capacity: 1, Prune: 1}), nil, "custom")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		inv.consume(ctx, make(chan *redis.Message))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancel")
	}
}

func TestInvalidator_CloseIdempotent(t *testing.T) {
	inv := NewInvalidator(New(newCountingResolver().resolve, Config{Capacity: 1, Prune: 1}), nil, "")
	require.NoError(t, inv.Close())
	require.NoError(t, inv.Close())

	// Start after Close returns immediately without subscribing.
	inv.Start(context.Background())
}
