package orders

import (
	"context"

	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/shopspring/decimal"
)

// Repository persists orders together with their tracking log.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate locks the order row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	// List returns newest first.
	List(ctx context.Context, f ListFilter) ([]Order, error)
	AppendTracking(ctx context.Context, e TrackingEntry) error
	// History returns the order's tracking entries, newest first.
	History(ctx context.Context, orderID string) ([]TrackingEntry, error)
}

// StockReserver is the part of the stock ledger orders depend on.
type StockReserver interface {
	Reserve(ctx context.Context, coffeeID string, qty int, orderID string) error
	Release(ctx context.Context, coffeeID string, qty int, orderID string) error
}

// PointsLedger is the part of the loyalty service orders depend on.
type PointsLedger interface {
	Earn(ctx context.Context, customerID string, points int, reason, orderID string) (loyalty.Result, error)
	Redeem(ctx context.Context, customerID string, points int, reason, orderID string) (loyalty.Result, error)
	Reverse(ctx context.Context, customerID string, points int, reason, orderID string) (loyalty.Result, error)
}

// PromotionRedeemer is the part of the promotion service orders depend on.
type PromotionRedeemer interface {
	Validate(ctx context.Context, code string, amount decimal.Decimal, city string) (promotions.Quote, error)
	Commit(ctx context.Context, promoID, orderID string) (promotions.Usage, error)
}
