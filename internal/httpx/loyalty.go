package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/go-chi/chi/v5"
)

type LoyaltyHandler struct {
	handlerBase
	loyalty *loyalty.Service
}

type pointsReq struct {
	Points      int    `json:"points" validate:"required,min=1"`
	Description string `json:"description"`
	OrderID     string `json:"order_id"`
}

type streakReq struct {
	Date *time.Time `json:"date"`
}

func (h *LoyaltyHandler) Register(r chi.Router) {
	r.Get("/loyalty/leaderboard", h.leaderboard)
	r.Get("/loyalty/{customerID}/points", h.points)
	r.Get("/loyalty/{customerID}/transactions", h.transactions)
	r.Post("/loyalty/{customerID}/earn", h.earn)
	r.Post("/loyalty/{customerID}/redeem", h.redeem)
	r.Post("/loyalty/{customerID}/streak", h.streak)
}

func (h *LoyaltyHandler) points(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sum, err := h.loyalty.Balance(ctx, chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum, "")
}

func (h *LoyaltyHandler) transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	txs, err := h.loyalty.Transactions(ctx, chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, txs)
}

func (h *LoyaltyHandler) earn(w http.ResponseWriter, r *http.Request) {
	var req pointsReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.loyalty.Earn(ctx, chi.URLParam(r, "customerID"), req.Points, req.Description, req.OrderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res, fmt.Sprintf("%d points earned successfully", req.Points))
}

func (h *LoyaltyHandler) redeem(w http.ResponseWriter, r *http.Request) {
	var req pointsReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.loyalty.Redeem(ctx, chi.URLParam(r, "customerID"), req.Points, req.Description, req.OrderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res, fmt.Sprintf("%d points redeemed successfully", req.Points))
}

func (h *LoyaltyHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 10)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	board, err := h.loyalty.Leaderboard(ctx, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, board)
}

// streak records an order day for the customer. Without a date, today is used.
func (h *LoyaltyHandler) streak(w http.ResponseWriter, r *http.Request) {
	var req streakReq
	if !bindOptional(w, r, &req) {
		return
	}
	asOf := time.Now()
	if req.Date != nil {
		asOf = *req.Date
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	acc, err := h.loyalty.UpdateStreak(ctx, chi.URLParam(r, "customerID"), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acc, "Streak updated")
}
