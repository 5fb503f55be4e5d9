package orders

import (
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	TypeDineIn   OrderType = "dine_in"
	TypeTakeaway OrderType = "takeaway"
	TypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return true
	}
	return false
}

// LineItem is one cart line with its price frozen at order time.
type LineItem struct {
	CoffeeID  string          `json:"coffee_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID                   string          `json:"id"`
	CustomerID           string          `json:"customer_id"`
	CafeID               string          `json:"cafe_id,omitempty"`
	Type                 OrderType       `json:"order_type"`
	TableNumber          string          `json:"table_number,omitempty"`
	QRCode               string          `json:"qr_code,omitempty"`
	Items                []LineItem      `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Discount             decimal.Decimal `json:"discount_applied"`
	Total                decimal.Decimal `json:"total"`
	PromoCode            string          `json:"promo_code,omitempty"`
	PromotionID          string          `json:"promotion_id,omitempty"`
	PointsEarned         int             `json:"loyalty_points_earned"`
	PointsUsed           int             `json:"loyalty_points_used"`
	Status               Status          `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	PreparationStartedAt *time.Time      `json:"preparation_start_time,omitempty"`
	PreparationEndedAt   *time.Time      `json:"preparation_end_time,omitempty"`
	ReadyAt              *time.Time      `json:"ready_time,omitempty"`
	EstimatedReadyAt     *time.Time      `json:"estimated_ready_time,omitempty"`
}

// NewOrder builds a pending order and enforces total = subtotal - discount,
// with discount and total both non-negative.
func NewOrder(id, customerID string, typ OrderType, items []LineItem, discount decimal.Decimal, now time.Time) (*Order, error) {
	if id == "" || customerID == "" {
		return nil, apperr.Validation("order id and customer id are required")
	}
	if !typ.Valid() {
		return nil, apperr.Validation("invalid order type %q", typ)
	}
	if len(items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	subtotal := decimal.Zero
	for _, li := range items {
		if li.Quantity <= 0 {
			return nil, apperr.Validation("quantity for %s must be positive", li.CoffeeID)
		}
		if li.UnitPrice.IsNegative() {
			return nil, apperr.Validation("price for %s must not be negative", li.CoffeeID)
		}
		subtotal = subtotal.Add(li.Amount())
	}
	if discount.IsNegative() {
		return nil, apperr.Validation("discount must not be negative")
	}
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return nil, apperr.Validation("discount %s exceeds subtotal %s", discount.StringFixed(2), subtotal.StringFixed(2))
	}
	return &Order{
		ID:         id,
		CustomerID: customerID,
		Type:       typ,
		Items:      items,
		Subtotal:   subtotal,
		Discount:   discount,
		Total:      total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TrackingEntry is one immutable record of a status change.
type TrackingEntry struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Status        Status     `json:"status"`
	Message       string     `json:"message"`
	EstimatedTime *time.Time `json:"estimated_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ItemInput struct {
	CoffeeID string `json:"coffee_id"`
	Quantity int    `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerID   string
	CafeID       string
	Type         OrderType
	TableNumber  string
	QRCode       string
	Items        []ItemInput
	PromoCode    string
	RedeemPoints int
}

type TransitionRequest struct {
	Status        Status
	Message       string
	EstimatedTime *time.Time
}

type TransitionResult struct {
	Order          Order         `json:"order"`
	PreviousStatus Status        `json:"old_status"`
	Entry          TrackingEntry `json:"tracking_update"`
}

type ListFilter struct {
	CustomerID string
	Status     Status
	Limit      int
}

// TrackingView is an order with its live estimate and history, newest first.
type TrackingView struct {
	Order            Order           `json:"order"`
	EstimatedReadyAt *time.Time      `json:"estimated_ready_time,omitempty"`
	Updates          []TrackingEntry `json:"tracking_updates"`
}
