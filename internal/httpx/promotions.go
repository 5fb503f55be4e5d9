package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type PromotionsHandler struct {
	handlerBase
	promos *promotions.Service
}

type validatePromoReq struct {
	PromoCode    string          `json:"promo_code" validate:"required"`
	OrderAmount  decimal.Decimal `json:"order_amount"`
	UserLocation string          `json:"user_location"`
}

type createPromoReq struct {
	Title              string           `json:"title" validate:"required"`
	Description        string           `json:"description"`
	PromoType          string           `json:"promo_type" validate:"required,oneof=discount free_item loyalty_bonus"`
	PromoCode          string           `json:"promo_code"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	MaxDiscount        *decimal.Decimal `json:"max_discount"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	MinOrderAmount     *decimal.Decimal `json:"min_order_amount"`
	StartDate          time.Time        `json:"start_date" validate:"required"`
	EndDate            time.Time        `json:"end_date" validate:"required"`
	UsageLimit         *int             `json:"usage_limit" validate:"omitempty,min=1"`
	GeoTargeted        bool             `json:"geo_targeted"`
	TargetCities       []string         `json:"target_cities"`
}

func (h *PromotionsHandler) Register(r chi.Router) {
	r.Get("/promotions", h.list)
	r.Post("/promotions", h.create)
	r.Post("/promotions/validate", h.validate)
	r.Get("/promotions/{id}", h.get)
}

func (h *PromotionsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := q.Get("city")
	if city == "" {
		city = q.Get("user_location")
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	list, err := h.promos.ListActive(ctx, promotions.ListFilter{Type: promotions.Type(q.Get("type")), City: city})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, list)
}

func (h *PromotionsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	p, err := h.promos.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p, "")
}

func (h *PromotionsHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req validatePromoReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	q, err := h.promos.Validate(ctx, req.PromoCode, req.OrderAmount, req.UserLocation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, q, "Promo code is valid")
}

func (h *PromotionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPromoReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	p, err := h.promos.Create(ctx, promotions.CreateRequest{
		Title:              req.Title,
		Description:        req.Description,
		Type:               promotions.Type(req.PromoType),
		Code:               req.PromoCode,
		DiscountPercentage: req.DiscountPercentage,
		MaxDiscount:        req.MaxDiscount,
		DiscountAmount:     req.DiscountAmount,
		MinOrderAmount:     req.MinOrderAmount,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		UsageLimit:         req.UsageLimit,
		GeoTargeted:        req.GeoTargeted,
		TargetCities:       req.TargetCities,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p, "Promotion created successfully")
}
