package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(newMiniRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "loja-1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, StoreEvent{Type: EventRegisterOpened, StoreID: "loja-2"}))
	require.NoError(t, bus.Publish(ctx, StoreEvent{Type: EventOrderChanged, StoreID: "loja-1", OrderID: "o-1"}))

	select {
	case ev := <-events:
		assert.Equal(t, EventOrderChanged, ev.Type)
		assert.Equal(t, "o-1", ev.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestStoreChannel(t *testing.T) {
	assert.Equal(t, "caixapdv:store:loja-1:events", StoreChannel("loja-1"))
}

func TestCache_GetSet(t *testing.T) {
	rdb := newMiniRedis(t)
	c := NewCache(rdb, "test:")
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	ttl, err := rdb.TTL(ctx, "test:k").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, c.Set(ctx, "gen", []byte("1"), 0))
	ttl, err = rdb.TTL(ctx, "test:gen").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "zero ttl keeps the key")
}
