package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	handlerBase
	orders *orders.Manager
	cache  *redisx.OrderCache
	idem   *redisx.Idempotency
}

type itemReq struct {
	CoffeeID string `json:"coffee_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type createOrderReq struct {
	CustomerID   string    `json:"customer_id" validate:"required"`
	CafeID       string    `json:"cafe_id"`
	OrderType    string    `json:"order_type" validate:"omitempty,oneof=dine_in takeaway delivery"`
	TableNumber  string    `json:"table_number"`
	QRCode       string    `json:"qr_code"`
	Items        []itemReq `json:"items" validate:"required,min=1,dive"`
	PromoCode    string    `json:"promo_code"`
	RedeemPoints int       `json:"redeem_points" validate:"min=0"`
}

type transitionReq struct {
	Status        string     `json:"status" validate:"required"`
	Message       string     `json:"message"`
	EstimatedTime *time.Time `json:"estimated_time"`
}

type transitionResp struct {
	OrderID        string               `json:"order_id"`
	OldStatus      orders.Status        `json:"old_status"`
	NewStatus      orders.Status        `json:"new_status"`
	UpdatedAt      time.Time            `json:"updated_at"`
	TrackingUpdate orders.TrackingEntry `json:"tracking_update"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	claimed := false
	if key != "" && h.idem != nil {
		orderID, ok, err := h.idem.Claim(ctx, key)
		switch {
		case err != nil:
			h.log.Warn("idempotency claim failed", zap.String("key", key), zap.Error(err))
		case ok:
			claimed = true
		case orderID != "":
			o, err := h.orders.GetOrder(ctx, orderID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			writeData(w, http.StatusOK, o, "Order already created")
			return
		default:
			h.fail(w, r, apperr.Conflict("a request with this Idempotency-Key is still in progress"))
			return
		}
	}

	typ := orders.OrderType(req.OrderType)
	if typ == "" {
		typ = orders.TypeDineIn
	}
	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.ItemInput{CoffeeID: it.CoffeeID, Quantity: it.Quantity})
	}
	o, err := h.orders.CreateOrder(ctx, orders.CreateOrderRequest{
		CustomerID:   req.CustomerID,
		CafeID:       req.CafeID,
		Type:         typ,
		TableNumber:  req.TableNumber,
		QRCode:       req.QRCode,
		Items:        items,
		PromoCode:    req.PromoCode,
		RedeemPoints: req.RedeemPoints,
	})
	if err != nil {
		if claimed {
			if rerr := h.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
				h.log.Warn("idempotency release failed", zap.String("key", key), zap.Error(rerr))
			}
		}
		h.fail(w, r, err)
		return
	}
	if claimed {
		if err := h.idem.Complete(context.WithoutCancel(ctx), key, o.ID); err != nil {
			h.log.Warn("idempotency complete failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeData(w, http.StatusCreated, o, "Order created successfully")
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	if h.cache != nil {
		o, err := h.cache.Get(ctx, id)
		if err != nil {
			h.log.Warn("order cache read failed", zap.String("order_id", id), zap.Error(err))
		}
		if o != nil {
			writeData(w, http.StatusOK, o, "")
			return
		}
	}
	o, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, o); err != nil {
			h.log.Warn("order cache write failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	writeData(w, http.StatusOK, o, "")
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	q := r.URL.Query()
	list, err := h.orders.ListOrders(ctx, orders.ListFilter{
		CustomerID: q.Get("customer_id"),
		Status:     orders.Status(q.Get("status")),
		Limit:      limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, list)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	transition(h.handlerBase, h.orders, h.cache, w, r)
}

// transition serves both the order status route and the tracking update route.
func transition(h handlerBase, m *orders.Manager, cache *redisx.OrderCache, w http.ResponseWriter, r *http.Request) {
	var req transitionReq
	if !bind(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := m.TransitionStatus(ctx, id, orders.TransitionRequest{
		Status:        orders.Status(req.Status),
		Message:       req.Message,
		EstimatedTime: req.EstimatedTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cache != nil {
		if err := cache.Invalidate(ctx, id); err != nil {
			h.log.Warn("order cache invalidate failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	writeData(w, http.StatusOK, transitionResp{
		OrderID:        res.Order.ID,
		OldStatus:      res.PreviousStatus,
		NewStatus:      res.Order.Status,
		UpdatedAt:      res.Order.UpdatedAt,
		TrackingUpdate: res.Entry,
	}, "Order status updated successfully")
}
