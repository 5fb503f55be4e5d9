package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/txn"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	defaultPrepTime  = 10 * time.Minute
)

// PointsPolicy converts spend into loyalty points and points into money.
type PointsPolicy struct {
	PointsPerUnit decimal.Decimal
	PointValue    decimal.Decimal
}

// PointsFor returns floor(total * PointsPerUnit).
func (p PointsPolicy) PointsFor(total decimal.Decimal) int {
	return int(total.Mul(p.PointsPerUnit).Floor().IntPart())
}

func (p PointsPolicy) ValueOf(points int) decimal.Decimal {
	return p.PointValue.Mul(decimal.NewFromInt(int64(points)))
}

type Deps struct {
	Orders     Repository
	Tx         txn.Manager
	Stock      StockReserver
	Loyalty    PointsLedger
	Promotions PromotionRedeemer
	Catalog    directory.Catalog
	Customers  directory.Customers
	Cafes      directory.Cafes
	Policy     PointsPolicy
	Publisher  Publisher
	PrepTime   time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Manager turns carts into orders and drives them through their lifecycle.
// Every multi-resource change runs inside one transaction.
type Manager struct {
	orders    Repository
	tx        txn.Manager
	stock     StockReserver
	loyalty   PointsLedger
	promos    PromotionRedeemer
	catalog   directory.Catalog
	customers directory.Customers
	cafes     directory.Cafes
	policy    PointsPolicy
	publisher Publisher
	prepTime  time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewManager(d Deps) *Manager {
	m := &Manager{
		orders:    d.Orders,
		tx:        d.Tx,
		stock:     d.Stock,
		loyalty:   d.Loyalty,
		promos:    d.Promotions,
		catalog:   d.Catalog,
		customers: d.Customers,
		cafes:     d.Cafes,
		policy:    d.Policy,
		publisher: d.Publisher,
		prepTime:  d.PrepTime,
		log:       logger.OrNop(d.Logger).Named("orders"),
		now:       d.Now,
	}
	if m.publisher == nil {
		m.publisher = nopPublisher{}
	}
	if m.prepTime <= 0 {
		m.prepTime = defaultPrepTime
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// CreateOrder reserves stock for every line, prices the cart, applies an
// optional promotion and points redemption, persists the order with its first
// tracking entry and credits loyalty points. Nothing is kept if any step fails.
func (m *Manager) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if req.CustomerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if req.Type == "" {
		req.Type = TypeDineIn
	}
	if !req.Type.Valid() {
		return nil, apperr.Validation("invalid order type %q", req.Type)
	}
	if req.RedeemPoints < 0 {
		return nil, apperr.Validation("redeem points must not be negative")
	}
	items, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}

	customer, err := m.customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if req.CafeID != "" {
		if _, err := m.cafes.GetCafe(ctx, req.CafeID); err != nil {
			return nil, err
		}
	}

	orderID := uuid.NewString()
	var created *Order
	err = m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		lines := make([]LineItem, 0, len(items))
		subtotal := decimal.Zero
		for _, it := range items {
			ci, err := m.catalog.GetItem(ctx, it.CoffeeID)
			if err != nil {
				return err
			}
			li := LineItem{CoffeeID: ci.ID, Name: ci.Name, Quantity: it.Quantity, UnitPrice: ci.Price}
			subtotal = subtotal.Add(li.Amount())
			lines = append(lines, li)
		}
		for _, li := range lockOrder(lines) {
			if err := m.stock.Reserve(ctx, li.CoffeeID, li.Quantity, orderID); err != nil {
				return err
			}
		}

		discount := decimal.Zero
		var promoID, promoCode string
		if code := strings.TrimSpace(req.PromoCode); code != "" {
			q, err := m.promos.Validate(ctx, code, subtotal, customer.City)
			if err != nil {
				return err
			}
			if _, err := m.promos.Commit(ctx, q.PromotionID, orderID); err != nil {
				return err
			}
			discount = q.Applied
			promoID, promoCode = q.PromotionID, code
		}

		if req.RedeemPoints > 0 {
			value := m.policy.ValueOf(req.RedeemPoints)
			if value.GreaterThan(subtotal.Sub(discount)) {
				return apperr.Validation("redeemed points are worth %s, more than the amount due %s",
					value.StringFixed(2), subtotal.Sub(discount).StringFixed(2))
			}
			if _, err := m.loyalty.Redeem(ctx, customer.ID, req.RedeemPoints, "Redeemed on order", orderID); err != nil {
				return err
			}
			discount = discount.Add(value)
		}

		now := m.now().UTC()
		o, err := NewOrder(orderID, customer.ID, req.Type, lines, discount, now)
		if err != nil {
			return err
		}
		o.CafeID = req.CafeID
		o.TableNumber = req.TableNumber
		o.QRCode = req.QRCode
		o.PromoCode = promoCode
		o.PromotionID = promoID
		o.PointsUsed = req.RedeemPoints
		o.PointsEarned = m.policy.PointsFor(o.Total)

		if err := m.orders.Create(ctx, o); err != nil {
			return err
		}
		if err := m.orders.AppendTracking(ctx, TrackingEntry{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Status:    StatusPending,
			Message:   "Order placed",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if o.PointsEarned > 0 {
			if _, err := m.loyalty.Earn(ctx, customer.ID, o.PointsEarned, "order", o.ID); err != nil {
				return err
			}
		}
		created = o
		return nil
	})
	if err != nil {
		m.logFailure("create order failed", err, zap.String("customer_id", req.CustomerID))
		return nil, err
	}

	m.log.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("customer_id", created.CustomerID),
		zap.String("total", created.Total.StringFixed(2)),
		zap.Int("points_earned", created.PointsEarned))
	m.publisher.OrderCreated(ctx, *created)
	return created, nil
}

// TransitionStatus moves an order along the status graph and records a
// tracking entry. Cancelling returns stock and undoes loyalty movements.
func (m *Manager) TransitionStatus(ctx context.Context, orderID string, req TransitionRequest) (*TransitionResult, error) {
	if orderID == "" {
		return nil, apperr.Validation("order id is required")
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", req.Status)
	}

	var res *TransitionResult
	err := m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := m.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, req.Status) {
			return apperr.InvalidTransition("cannot change order status from %s to %s", o.Status, req.Status)
		}

		prev := o.Status
		now := m.now().UTC()
		switch req.Status {
		case StatusPreparing:
			if o.PreparationStartedAt == nil {
				o.PreparationStartedAt = &now
			}
		case StatusReady:
			if o.ReadyAt == nil {
				o.ReadyAt = &now
			}
			if o.PreparationEndedAt == nil {
				o.PreparationEndedAt = &now
			}
		case StatusCancelled:
			if err := m.undo(ctx, o); err != nil {
				return err
			}
		}
		if req.EstimatedTime != nil {
			est := req.EstimatedTime.UTC()
			o.EstimatedReadyAt = &est
		}
		o.Status = req.Status
		o.UpdatedAt = now
		if err := m.orders.Update(ctx, o); err != nil {
			return err
		}

		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			msg = fmt.Sprintf("Order status changed from %s to %s", prev, req.Status)
		}
		entry := TrackingEntry{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			Status:        req.Status,
			Message:       msg,
			EstimatedTime: o.EstimatedReadyAt,
			CreatedAt:     now,
		}
		if err := m.orders.AppendTracking(ctx, entry); err != nil {
			return err
		}
		res = &TransitionResult{Order: *o, PreviousStatus: prev, Entry: entry}
		return nil
	})
	if err != nil {
		m.logFailure("transition failed", err, zap.String("order_id", orderID), zap.String("to", string(req.Status)))
		return nil, err
	}

	m.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(res.PreviousStatus)),
		zap.String("to", string(res.Order.Status)))
	m.publisher.OrderStatusChanged(ctx, *res)
	return res, nil
}

// undo returns reserved stock and reverses the order's loyalty movements.
func (m *Manager) undo(ctx context.Context, o *Order) error {
	for _, li := range lockOrder(o.Items) {
		if err := m.stock.Release(ctx, li.CoffeeID, li.Quantity, o.ID); err != nil {
			return err
		}
	}
	if o.PointsEarned > 0 {
		if _, err := m.loyalty.Reverse(ctx, o.CustomerID, o.PointsEarned, "Order cancelled", o.ID); err != nil {
			return err
		}
	}
	if o.PointsUsed > 0 {
		if _, err := m.loyalty.Earn(ctx, o.CustomerID, o.PointsUsed, "Refund for cancelled order", o.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) GetOrder(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, apperr.Validation("order id is required")
	}
	return m.orders.Get(ctx, id)
}

func (m *Manager) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	return m.orders.List(ctx, f)
}

// History returns the order's tracking entries, newest first.
func (m *Manager) History(ctx context.Context, orderID string) ([]TrackingEntry, error) {
	if _, err := m.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return m.orders.History(ctx, orderID)
}

// Tracking returns the order, its ready estimate and its history. Without an
// explicit estimate, preparation start plus the default preparation time is used.
func (m *Manager) Tracking(ctx context.Context, orderID string) (*TrackingView, error) {
	o, err := m.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	updates, err := m.orders.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	v := &TrackingView{Order: *o, Updates: updates}
	switch {
	case o.EstimatedReadyAt != nil:
		v.EstimatedReadyAt = o.EstimatedReadyAt
	case o.PreparationStartedAt != nil:
		est := o.PreparationStartedAt.Add(m.prepTime)
		v.EstimatedReadyAt = &est
	}
	return v, nil
}

func (m *Manager) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("kind", string(apperr.KindOf(err))))
	if apperr.Is(err, apperr.KindInternal) {
		m.log.Error(msg, fields...)
		return
	}
	m.log.Warn(msg, fields...)
}

// mergeItems validates cart lines and folds duplicates, keeping first-seen order.
// lockOrder returns the lines sorted by coffee id. Stock rows are always
// locked in this order so concurrent orders cannot deadlock on each other.
func lockOrder(lines []LineItem) []LineItem {
	out := append([]LineItem(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].CoffeeID < out[j].CoffeeID })
	return out
}

func mergeItems(in []ItemInput) ([]ItemInput, error) {
	idx := make(map[string]int, len(in))
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		id := strings.TrimSpace(it.CoffeeID)
		if id == "" {
			return nil, apperr.Validation("coffee id is required for every item")
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("quantity for %s must be positive", id)
		}
		if i, ok := idx[id]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[id] = len(out)
		out = append(out, ItemInput{CoffeeID: id, Quantity: it.Quantity})
	}
	return out, nil
}
