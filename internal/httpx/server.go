// Package httpx exposes the order engine over a JSON HTTP API.
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 5 * time.Second

// Deps wires the handlers. Cache and Idempotency are optional.
type Deps struct {
	Orders      *orders.Manager
	Stock       *stock.Ledger
	Loyalty     *loyalty.Service
	Promotions  *promotions.Service
	Cache       *redisx.OrderCache
	Idempotency *redisx.Idempotency
	Logger      *zap.Logger
	Timeout     time.Duration
}

func NewRouter(log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware(logger.OrNop(log)), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// NewHandler builds the router with every API route mounted under /api.
func NewHandler(d Deps) http.Handler {
	log := logger.OrNop(d.Logger).Named("http")
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	base := handlerBase{responder: responder{log: log}, timeout: timeout}

	oh := &OrdersHandler{handlerBase: base, orders: d.Orders, cache: d.Cache, idem: d.Idempotency}
	th := &TrackingHandler{handlerBase: base, orders: d.Orders, stock: d.Stock, cache: d.Cache}
	lh := &LoyaltyHandler{handlerBase: base, loyalty: d.Loyalty}
	ph := &PromotionsHandler{handlerBase: base, promos: d.Promotions}

	r := NewRouter(log)
	r.Route("/api", func(r chi.Router) {
		oh.Register(r)
		th.Register(r)
		lh.Register(r)
		ph.Register(r)
	})
	return r
}

type handlerBase struct {
	responder
	timeout time.Duration
}

func (h handlerBase) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}
