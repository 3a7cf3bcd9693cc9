package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// StatusCache stores the JSON status snapshot per order.
type StatusCache struct {
	Client *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) ([]byte, bool, error) {
	b, err := c.Client.Get(ctx, OrderStatusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, len(b) > 0, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID string, snapshot []byte) error {
	return c.Client.Set(ctx, OrderStatusKey(orderID), snapshot, TTLStatusCache).Err()
}

func (c *StatusCache) Drop(ctx context.Context, orderID string) error {
	return c.Client.Del(ctx, OrderStatusKey(orderID)).Err()
}

// Marker records processed event ids for one consumer.
type Marker struct {
	Client  *redis.Client
	Service string
}

func (m *Marker) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, m.Client, DedupKey(m.Service, id))
}

func (m *Marker) Mark(ctx context.Context, id string) error {
	return m.Client.Set(ctx, DedupKey(m.Service, id), "1", TTLDedup).Err()
}
