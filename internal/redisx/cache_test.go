package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderCache(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewOrderCache(rdb)
	ctx := context.Background()

	got, err := c.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	o := &orders.Order{
		ID:         "o-1",
		CustomerID: "alice",
		Status:     orders.StatusPending,
		Total:      decimal.RequireFromString("11.50"),
		Items:      []orders.LineItem{{CoffeeID: "espresso", Name: "Espresso", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")}},
		CreatedAt:  time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, o))
	assert.Equal(t, TTLOrderCache, mr.TTL(fmt.Sprintf(KeyOrder, "o-1")))

	got, err = c.Get(ctx, "o-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.True(t, got.Total.Equal(o.Total))
	require.Len(t, got.Items, 1)

	require.NoError(t, c.Invalidate(ctx, "o-1"))
	got, err = c.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	mr.Set(fmt.Sprintf(KeyOrder, "o-2"), "{broken")
	_, err = c.Get(ctx, "o-2")
	assert.Error(t, err)
}

func TestIdempotencyClaim(t *testing.T) {
	mr, rdb := newRedis(t)
	idem := NewIdempotency(rdb)
	ctx := context.Background()

	id, claimed, err := idem.Claim(ctx, "k-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, id)

	id, claimed, err = idem.Claim(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, claimed, "second caller sees the pending claim")
	assert.Empty(t, id)

	require.NoError(t, idem.Complete(ctx, "k-1", "o-1"))
	id, claimed, err = idem.Claim(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "o-1", id)

	mr.FastForward(TTLIdempotency + time.Second)
	_, claimed, err = idem.Claim(ctx, "k-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotencyReleaseAndPendingExpiry(t *testing.T) {
	mr, rdb := newRedis(t)
	idem := NewIdempotency(rdb)
	ctx := context.Background()

	_, claimed, err := idem.Claim(ctx, "k-2")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, idem.Release(ctx, "k-2"))

	_, claimed, err = idem.Claim(ctx, "k-2")
	require.NoError(t, err)
	assert.True(t, claimed, "released key can be claimed again")

	// an abandoned claim does not block the key for a whole day
	mr.FastForward(TTLIdemPending + time.Second)
	_, claimed, err = idem.Claim(ctx, "k-2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDedup(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewDedup(rdb, "loyalty")
	ctx := context.Background()

	first, err := d.First(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.First(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, first)

	assert.True(t, mr.Exists(fmt.Sprintf(KeyDedup, "loyalty", "ev-1")))

	require.NoError(t, d.Forget(ctx, "ev-1"))
	first, err = d.First(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	other := NewDedup(rdb, "audit")
	first, err = other.First(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first, "services dedup independently")
}
