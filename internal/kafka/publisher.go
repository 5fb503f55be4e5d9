package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventVersion = 1

// Sink accepts encoded messages. *Producer is the production Sink.
type Sink interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) bool
}

// EventPublisher wraps committed domain changes in envelopes and hands them to a Sink.
type EventPublisher struct {
	out     Sink
	service string
	log     *zap.Logger
	now     func() time.Time
}

var (
	_ orders.Publisher = (*EventPublisher)(nil)
	_ stock.Notifier   = (*EventPublisher)(nil)
)

func NewEventPublisher(out Sink, service string, log *zap.Logger) *EventPublisher {
	return &EventPublisher{out: out, service: service, log: logger.OrNop(log).Named("events"), now: time.Now}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, o orders.Order) {
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, orders.ItemQty{CoffeeID: li.CoffeeID, Qty: li.Quantity})
	}
	p.emit(ctx, orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		CafeID:       o.CafeID,
		Items:        items,
		Total:        o.Total.StringFixed(2),
		PointsEarned: o.PointsEarned,
		CreatedAt:    o.CreatedAt,
	})
}

func (p *EventPublisher) OrderStatusChanged(ctx context.Context, res orders.TransitionResult) {
	p.emit(ctx, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, res.Order.ID, orders.OrderStatusChangedPayload{
		OrderID:    res.Order.ID,
		CustomerID: res.Order.CustomerID,
		OldStatus:  res.PreviousStatus,
		NewStatus:  res.Order.Status,
		Message:    res.Entry.Message,
		Estimated:  res.Entry.EstimatedTime,
		ChangedAt:  res.Entry.CreatedAt,
	})
}

func (p *EventPublisher) StockAdjusted(ctx context.Context, res stock.AdjustmentResult) {
	p.emit(ctx, orders.TopicStockAdjusted, orders.EventStockAdjusted, res.CoffeeID, orders.StockAdjustedPayload{
		CoffeeID:    res.CoffeeID,
		Delta:       res.Delta,
		NewQuantity: res.NewQuantity,
		Available:   res.Available,
		Reason:      res.Entry.Reason,
	})
}

func (p *EventPublisher) emit(ctx context.Context, topic, eventType, key string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    p.now().UTC(),
		Producer:      p.service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: key,
		Payload:       MustMarshal(payload),
	}
	ok := p.out.Publish(topic, orders.PartitionKey(key), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	)
	if !ok {
		p.log.Warn("event dropped", zap.String("topic", topic), zap.String("event_id", ev.EventID))
	}
}
