package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// OrderCache keeps read-through copies of orders. A miss is (nil, nil).
type OrderCache struct {
	rdb redis.Cmdable
}

func NewOrderCache(rdb redis.Cmdable) *OrderCache { return &OrderCache{rdb: rdb} }

func (c *OrderCache) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode cached order: %w", err)
	}
	return &o, nil
}

func (c *OrderCache) Set(ctx context.Context, o *orders.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err()
}

// Idempotency maps client Idempotency-Key values to the order they created.
// A key is claimed with a pending marker before the order exists, so
// concurrent retries of one request cannot both create an order.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency { return &Idempotency{rdb: rdb} }

const idemPending = "pending"

// Claim reserves key for the caller. When claimed is false, orderID is the
// order a previous request created, or "" while that request is still running.
func (i *Idempotency) Claim(ctx context.Context, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := i.rdb.SetNX(ctx, k, idemPending, TTLIdemPending).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		v, err := i.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", false, err
		}
		if v == idemPending {
			return "", false, nil
		}
		return v, false, nil
	}
	return "", false, nil
}

// Complete records the order created under a claimed key.
func (i *Idempotency) Complete(ctx context.Context, key, orderID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Release drops a claim whose request failed so the client may retry.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}

// Dedup marks events as processed per consuming service.
type Dedup struct {
	rdb     redis.Cmdable
	service string
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup { return &Dedup{rdb: rdb, service: service} }

// First reports whether eventID is seen for the first time and marks it.
func (d *Dedup) First(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, eventID), "1", TTLDedup).Result()
}

// Forget clears the mark so a failed event can be processed again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, eventID)).Err()
}
