package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTransactionRollsBack(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddCoffee("espresso", "Espresso", decimal.RequireFromString("3.50"), 10, 2))
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.Stock().GetForUpdate(ctx, "espresso")
		require.NoError(t, err)
		rec.Quantity = 1
		require.NoError(t, s.Stock().Save(ctx, rec))
		require.NoError(t, s.Stock().AppendEntry(ctx, stock.UpdateEntry{ID: "e-1", CoffeeID: "espresso"}))
		_, err = s.Loyalty().GetOrCreateForUpdate(ctx, "alice", time.Now())
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.Stock().Get(ctx, "espresso")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Quantity)
	entries, err := s.Stock().ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = s.Loyalty().Get(ctx, "alice")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRollbackRestoresEveryRepository(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, "alice", now)
	require.NoError(t, err)
	acc.Points = 50
	require.NoError(t, s.Loyalty().Save(ctx, acc))
	require.NoError(t, s.Promotions().Create(ctx, &promotions.Promotion{ID: "p-1", Code: "HALF", Active: true}))
	require.NoError(t, s.Orders().Create(ctx, &orders.Order{ID: "o-1", Status: orders.StatusPending}))
	require.NoError(t, s.Orders().AppendTracking(ctx, orders.TrackingEntry{ID: "t-1", OrderID: "o-1"}))
	boom := errors.New("boom")

	err = s.WithTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, "alice", now)
		require.NoError(t, err)
		acc.Points = 10
		require.NoError(t, s.Loyalty().Save(ctx, acc))
		acc.Points = 5
		require.NoError(t, s.Loyalty().Save(ctx, acc))
		require.NoError(t, s.Loyalty().AppendTransaction(ctx, loyalty.Transaction{ID: "lt-1", CustomerID: "alice"}))

		p, err := s.Promotions().GetForUpdate(ctx, "p-1")
		require.NoError(t, err)
		p.UsageCount = 1
		require.NoError(t, s.Promotions().Save(ctx, p))
		require.NoError(t, s.Promotions().Create(ctx, &promotions.Promotion{ID: "p-2", Code: "FREE"}))
		added, err := s.Promotions().AddRedemption(ctx, promotions.Redemption{PromotionID: "p-1", OrderID: "o-2"})
		require.NoError(t, err)
		require.True(t, added)

		o, err := s.Orders().GetForUpdate(ctx, "o-1")
		require.NoError(t, err)
		o.Status = orders.StatusPreparing
		require.NoError(t, s.Orders().Update(ctx, o))
		require.NoError(t, s.Orders().AppendTracking(ctx, orders.TrackingEntry{ID: "t-2", OrderID: "o-1"}))
		require.NoError(t, s.Orders().Create(ctx, &orders.Order{ID: "o-2", Status: orders.StatusPending}))
		require.NoError(t, s.Orders().AppendTracking(ctx, orders.TrackingEntry{ID: "t-3", OrderID: "o-2"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Loyalty().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points)
	txs, err := s.Loyalty().ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txs)

	p, err := s.Promotions().Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UsageCount)
	_, err = s.Promotions().GetByCode(ctx, "FREE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	added, err := s.Promotions().AddRedemption(ctx, promotions.Redemption{PromotionID: "p-1", OrderID: "o-2"})
	require.NoError(t, err)
	assert.True(t, added, "redemption from the failed transaction must be gone")

	o, err := s.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	hist, err := s.Orders().History(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "t-1", hist[0].ID)
	_, err = s.Orders().Get(ctx, "o-2")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	list, err := s.Orders().List(ctx, orders.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	hist, err = s.Orders().History(ctx, "o-2")
	require.NoError(t, err)
	assert.Empty(t, hist)

	require.NoError(t, s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.Orders().AppendTracking(ctx, orders.TrackingEntry{ID: "t-4", OrderID: "o-1"})
	}))
	hist, err = s.Orders().History(ctx, "o-1")
	require.NoError(t, err)
	assert.Len(t, hist, 2, "a committed transaction keeps its writes")
}

func TestNestedTransactionJoins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	outer := errors.New("outer")

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.WithTransaction(ctx, func(ctx context.Context) error {
			acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, "bob", time.Now())
			if err != nil {
				return err
			}
			acc.Points = 40
			return s.Loyalty().Save(ctx, acc)
		}))
		return outer
	})
	require.ErrorIs(t, err, outer)

	_, err = s.Loyalty().Get(ctx, "bob")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "inner work belongs to the outer transaction")
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, "alice", time.Now())
	require.NoError(t, err)
	acc.Points = 999

	got, err := s.Loyalty().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Points)
}

func TestDirectoryLookups(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.AddCoffee("latte", "Latte", decimal.RequireFromString("4.00"), 5, 1))
	s.AddCustomer(directory.Customer{ID: "alice", City: "Jakarta"})
	s.AddCafe(directory.Cafe{ID: "cafe-1", Name: "Kopi"})

	item, err := s.GetItem(ctx, "latte")
	require.NoError(t, err)
	assert.Equal(t, "Latte", item.Name)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("4")))

	c, err := s.GetCustomer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Jakarta", c.City)

	_, err = s.GetCafe(ctx, "cafe-2")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.GetItem(ctx, "mocha")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Error(t, s.AddCoffee("bad", "Bad", decimal.Zero, -1, 0))
}

func TestLeaderboardTieBreak(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, id, time.Now())
		require.NoError(t, err)
		acc.Points = 100
		if id == "c" {
			acc.Points = 200
		}
		acc.Tier = loyalty.TierFor(acc.Points)
		require.NoError(t, s.Loyalty().Save(ctx, acc))
	}

	board, err := s.Loyalty().Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{board[0].CustomerID, board[1].CustomerID, board[2].CustomerID})
}
