package redis

import (
	"context"

	"github.com/natija-hub/results-engine/internal/infrastructure/messaging"
)

// BusClient adapts Cache to the messaging.RedisClient interface so the
// Redis event bus can ride the same connection pool as the cache tier.
type BusClient struct {
	cache *Cache
}

// NewBusClient wraps a connected Cache for pub/sub use.
func NewBusClient(cache *Cache) *BusClient {
	return &BusClient{cache: cache}
}

// Publish implements messaging.RedisClient.
func (b *BusClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return b.cache.Publish(ctx, channel, message)
}

// Subscribe implements messaging.RedisClient. The returned channel is closed
// when the subscription ends; per-message receive errors are not surfaced by
// go-redis's channel API, so Err is always nil on delivered messages.
func (b *BusClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := b.cache.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close implements messaging.RedisClient. The underlying connection is owned
// by the Cache, so this is a no-op; close the Cache instead.
func (b *BusClient) Close() error {
	return nil
}
