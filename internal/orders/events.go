package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockAdjusted      = "StockAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	CoffeeID string `json:"coffee_id"`
	Qty      int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID      string    `json:"order_id"`
	CustomerID   string    `json:"customer_id"`
	CafeID       string    `json:"cafe_id,omitempty"`
	Items        []ItemQty `json:"items"`
	Total        string    `json:"total"`
	PointsEarned int       `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	OldStatus  Status     `json:"old_status"`
	NewStatus  Status     `json:"new_status"`
	Message    string     `json:"message"`
	Estimated  *time.Time `json:"estimated_time,omitempty"`
	ChangedAt  time.Time  `json:"changed_at"`
}

type StockAdjustedPayload struct {
	CoffeeID    string `json:"coffee_id"`
	Delta       int    `json:"quantity_change"`
	NewQuantity int    `json:"new_quantity"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason"`
}

// Publisher is told about committed order changes. Delivery is best effort.
type Publisher interface {
	OrderCreated(ctx context.Context, o Order)
	OrderStatusChanged(ctx context.Context, res TransitionResult)
}

type nopPublisher struct{}

func (nopPublisher) OrderCreated(context.Context, Order)                  {}
func (nopPublisher) OrderStatusChanged(context.Context, TransitionResult) {}
