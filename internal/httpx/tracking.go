package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/go-chi/chi/v5"
)

// TrackingHandler serves live order tracking and the stock ledger.
type TrackingHandler struct {
	handlerBase
	orders *orders.Manager
	stock  *stock.Ledger
	cache  *redisx.OrderCache
}

type stockUpdateReq struct {
	CoffeeID       string `json:"coffee_id" validate:"required"`
	QuantityChange int    `json:"quantity_change"`
	Reason         string `json:"reason"`
	CafeID         string `json:"cafe_id"`
	UpdatedBy      string `json:"updated_by"`
}

type qrData struct {
	OrderID     string    `json:"order_id"`
	TableNumber string    `json:"table_number,omitempty"`
	CafeID      string    `json:"cafe_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type qrResp struct {
	QRData      qrData `json:"qr_data"`
	QRCodeURL   string `json:"qr_code_url"`
	OrderID     string `json:"order_id"`
	TableNumber string `json:"table_number,omitempty"`
}

func (h *TrackingHandler) Register(r chi.Router) {
	r.Get("/tracking/orders/{id}/status", h.orderStatus)
	r.Post("/tracking/orders/{id}/update", h.updateOrder)
	r.Get("/tracking/orders/{id}/qr", h.orderQR)
	r.Get("/tracking/stock/updates", h.stockUpdates)
	r.Post("/tracking/stock/update", h.updateStock)
	r.Get("/stock/{coffeeID}", h.getStock)
}

func (h *TrackingHandler) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	v, err := h.orders.Tracking(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, v, "")
}

func (h *TrackingHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	transition(h.handlerBase, h.orders, h.cache, w, r)
}

// orderQR returns the data a table QR code encodes for the order.
func (h *TrackingHandler) orderQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	o, err := h.orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, qrResp{
		QRData: qrData{
			OrderID:     o.ID,
			TableNumber: o.TableNumber,
			CafeID:      o.CafeID,
			CreatedAt:   o.CreatedAt,
		},
		QRCodeURL:   "/api/tracking/orders/" + o.ID + "/qr.png",
		OrderID:     o.ID,
		TableNumber: o.TableNumber,
	}, "")
}

func (h *TrackingHandler) stockUpdates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	q := r.URL.Query()
	entries, err := h.stock.Entries(ctx, stock.EntryFilter{
		CoffeeID: q.Get("coffee_id"),
		CafeID:   q.Get("cafe_id"),
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, entries)
}

func (h *TrackingHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := h.stock.ApplyDelta(ctx, stock.Adjustment{
		CoffeeID: req.CoffeeID,
		CafeID:   req.CafeID,
		Delta:    req.QuantityChange,
		Reason:   req.Reason,
		Actor:    req.UpdatedBy,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res, "Stock updated successfully")
}

func (h *TrackingHandler) getStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	rec, err := h.stock.Get(ctx, chi.URLParam(r, "coffeeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec, "")
}
