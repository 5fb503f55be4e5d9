package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock, nil)
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestWithTransactionCommitsAndJoins(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sqlSaveStock)).
		WithArgs("espresso", 4, true, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.WithTransaction(ctx, func(ctx context.Context) error {
			return s.Stock().Save(ctx, &stock.Record{CoffeeID: "espresso", Quantity: 4, Available: true, UpdatedAt: now})
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	mock, s := newMock(t)
	boom := apperr.Validation("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTransaction(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverErrorsAreMapped(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sqlSaveStock)).
		WithArgs(anyArgs(4)...).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		return s.Stock().Save(ctx, &stock.Record{CoffeeID: "espresso"})
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, apperr.Is(dbErr(errors.New("conn reset"), "x"), apperr.KindInternal))
	assert.True(t, apperr.Is(dbErr(&pgconn.PgError{Code: "23505"}, "x"), apperr.KindConflict))
	assert.NoError(t, dbErr(nil, "x"))
}

func TestStockRepo(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(sqlGetStockForUpdate)).
		WithArgs("espresso").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "stock_quantity", "min_stock_level", "available", "updated_at"}).
			AddRow("espresso", "Espresso", 10, 2, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(sqlGetStock)).
		WithArgs("mocha").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(sqlListStockUpdates + " WHERE coffee_id=$1 ORDER BY seq DESC LIMIT $2")).
		WithArgs("espresso", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "coffee_id", "cafe_id", "quantity_change", "new_stock_level", "reason", "updated_by", "created_at"}).
			AddRow("e-2", "espresso", "", -2, 8, stock.ReasonSale, "order:o-1", now).
			AddRow("e-1", "espresso", "cafe-1", 5, 10, stock.ReasonManual, "barista", now))
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertStockUpdate)).
		WithArgs("e-3", "espresso", "", 1, 9, stock.ReasonCancelled, "order:o-1", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.Stock().GetForUpdate(ctx, "espresso")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Quantity)
	assert.Equal(t, 2, rec.MinLevel)

	_, err = s.Stock().Get(ctx, "mocha")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	entries, err := s.Stock().ListEntries(ctx, stock.EntryFilter{CoffeeID: "espresso", Limit: 5})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, -2, entries[0].Delta)

	require.NoError(t, s.Stock().AppendEntry(ctx, stock.UpdateEntry{
		ID: "e-3", CoffeeID: "espresso", Delta: 1, NewLevel: 9,
		Reason: stock.ReasonCancelled, Actor: "order:o-1", CreatedAt: now,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoyaltyRepo(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()
	cols := []string{"user_id", "points", "level", "streak_days", "last_order_date", "created_at", "updated_at"}

	mock.ExpectExec(regexp.QuoteMeta(sqlEnsureAccount)).
		WithArgs("alice", "Bronze", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(sqlGetAccountLocked)).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("alice", 620, "Silver", 3, &now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(sqlLeaderboard)).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("bob", 1600, "Gold", 0, nil, now, now).
			AddRow("alice", 620, "Silver", 3, &now, now, now))

	acc, err := s.Loyalty().GetOrCreateForUpdate(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 620, acc.Points)
	assert.Equal(t, loyalty.TierSilver, acc.Tier)
	require.NotNil(t, acc.LastOrderDate)

	board, err := s.Loyalty().Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].CustomerID)
	assert.Nil(t, board[0].LastOrderDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepo(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()
	limit := 10
	cols := []string{"id", "title", "description", "promo_type", "promo_code", "discount_percentage", "max_discount",
		"discount_amount", "min_order_amount", "start_date", "end_date", "is_active", "usage_limit", "usage_count",
		"geo_targeted", "target_cities", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta(sqlGetPromotionByCode)).
		WithArgs("summer20").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("p-1", "Summer", "", "discount", "SUMMER20",
			decimal.NewNullDecimal(decimal.NewFromInt(20)), decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{},
			now.AddDate(0, 0, -1), now.AddDate(0, 0, 1), true, &limit, 3, true, []string{"Jakarta"}, now))
	mock.ExpectQuery(regexp.QuoteMeta(sqlGetPromotionByCode)).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertRedemption)).
		WithArgs("p-1", "o-1", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertPromotion)).
		WithArgs(anyArgs(17)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	p, err := s.Promotions().GetByCode(ctx, "summer20")
	require.NoError(t, err)
	assert.Equal(t, promotions.TypeDiscount, p.Type)
	require.NotNil(t, p.DiscountPercentage)
	assert.True(t, p.DiscountPercentage.Equal(decimal.NewFromInt(20)))
	assert.Nil(t, p.MaxDiscount)
	require.NotNil(t, p.UsageLimit)
	assert.Equal(t, 10, *p.UsageLimit)
	assert.Equal(t, []string{"Jakarta"}, p.TargetCities)

	_, err = s.Promotions().GetByCode(ctx, "NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	inserted, err := s.Promotions().AddRedemption(ctx, promotions.Redemption{PromotionID: "p-1", OrderID: "o-1", CreatedAt: now})
	require.NoError(t, err)
	assert.False(t, inserted)

	err = s.Promotions().Create(ctx, &promotions.Promotion{ID: "p-2", Code: "SUMMER20"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()
	cols := []string{"id", "customer_id", "cafe_id", "order_type", "table_number", "qr_code", "subtotal", "discount", "total",
		"promo_code", "promotion_id", "points_earned", "points_used", "status", "created_at", "updated_at",
		"preparation_start_time", "preparation_end_time", "ready_time", "estimated_ready_time"}
	itemCols := []string{"order_id", "coffee_id", "name", "quantity", "unit_price"}
	price := decimal.RequireFromString("3.50")
	total := decimal.RequireFromString("11.50")

	o := &orders.Order{
		ID: "o-1", CustomerID: "alice", Type: orders.TypeDineIn, Status: orders.StatusPending,
		Items: []orders.LineItem{
			{CoffeeID: "espresso", Name: "Espresso", Quantity: 2, UnitPrice: price},
			{CoffeeID: "cappuccino", Name: "Cappuccino", Quantity: 1, UnitPrice: decimal.RequireFromString("4.50")},
		},
		Subtotal: total, Total: total, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertOrder)).WithArgs(anyArgs(20)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertOrderItem)).WithArgs("o-1", 1, "espresso", "Espresso", 2, price).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertOrderItem)).WithArgs(anyArgs(6)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(sqlGetOrder)).WithArgs("o-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("o-1", "alice", "", "dine_in", "", "", total, decimal.Zero, total,
			"", "", 11, 0, "pending", now, now, nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(sqlOrderItems)).WithArgs([]string{"o-1"}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("o-1", "espresso", "Espresso", 2, price).
			AddRow("o-1", "cappuccino", "Cappuccino", 1, decimal.RequireFromString("4.50")))

	mock.ExpectQuery(regexp.QuoteMeta(sqlGetOrder)).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta(sqlUpdateOrder)).WithArgs(anyArgs(7)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.WithTransaction(ctx, func(ctx context.Context) error {
		return s.Orders().Create(ctx, o)
	}))

	got, err := s.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, orders.TypeDineIn, got.Type)
	assert.True(t, got.Total.Equal(total))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "cappuccino", got.Items[1].CoffeeID)
	assert.Nil(t, got.ReadyAt)

	_, err = s.Orders().Get(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = s.Orders().Update(ctx, &orders.Order{ID: "ghost"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderHistoryAndList(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(sqlOrderHistory)).WithArgs("o-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "status", "message", "estimated_time", "created_at"}).
			AddRow("t-2", "o-1", "confirmed", "Order status changed from pending to confirmed", nil, now).
			AddRow("t-1", "o-1", "pending", "Order placed", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta(sqlListOrders + " WHERE customer_id=$1 AND status=$2 ORDER BY seq DESC LIMIT $3")).
		WithArgs("alice", "pending", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	hist, err := s.Orders().History(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, orders.StatusConfirmed, hist[0].Status)

	list, err := s.Orders().List(ctx, orders.ListFilter{CustomerID: "alice", Status: orders.StatusPending, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory(t *testing.T) {
	mock, s := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(sqlGetCustomer)).WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "city"}).AddRow("alice", "Alice", "Jakarta"))
	mock.ExpectQuery(regexp.QuoteMeta(sqlGetCoffee)).WithArgs("mocha").WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCustomer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Jakarta", c.City)

	_, err = s.GetItem(ctx, "mocha")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
