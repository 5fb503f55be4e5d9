package promotions

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDiscount     Type = "discount"
	TypeFreeItem     Type = "free_item"
	TypeLoyaltyBonus Type = "loyalty_bonus"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDiscount, TypeFreeItem, TypeLoyaltyBonus:
		return true
	}
	return false
}

// Promotion is a discount offer. Percentage takes precedence over a flat amount.
type Promotion struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Type               Type             `json:"promo_type"`
	Code               string           `json:"promo_code,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	MaxDiscount        *decimal.Decimal `json:"max_discount,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	MinOrderAmount     *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartDate          time.Time        `json:"start_date"`
	EndDate            time.Time        `json:"end_date"`
	Active             bool             `json:"is_active"`
	UsageLimit         *int             `json:"usage_limit,omitempty"`
	UsageCount         int              `json:"usage_count"`
	GeoTargeted        bool             `json:"geo_targeted"`
	TargetCities       []string         `json:"target_cities,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Check runs the eligibility rules in order and returns the first failure.
func (p *Promotion) Check(amount decimal.Decimal, city string, now time.Time) error {
	if !p.Active {
		return apperr.New(apperr.KindInactive, "promotion is not active")
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return apperr.New(apperr.KindExpired, "promotion has expired")
	}
	if p.limitReached() {
		return apperr.New(apperr.KindLimitReached, "promotion usage limit reached")
	}
	if p.MinOrderAmount != nil && amount.LessThan(*p.MinOrderAmount) {
		return apperr.New(apperr.KindBelowMinimum,
			"minimum order amount of %s required", p.MinOrderAmount.StringFixed(2))
	}
	if p.GeoTargeted && !p.servesCity(city) {
		return apperr.New(apperr.KindLocationIneligible, "promotion not available in your location")
	}
	return nil
}

// Discount computes the promotion's nominal reduction for amount. A flat
// amount is returned as is, even when it exceeds amount; Quote.Applied is capped.
func (p *Promotion) Discount(amount decimal.Decimal) decimal.Decimal {
	d := decimal.Zero
	switch {
	case p.DiscountPercentage != nil:
		d = amount.Mul(*p.DiscountPercentage).Div(decimal.NewFromInt(100))
		if p.MaxDiscount != nil && d.GreaterThan(*p.MaxDiscount) {
			d = *p.MaxDiscount
		}
	case p.DiscountAmount != nil:
		d = *p.DiscountAmount
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2)
}

func (p *Promotion) limitReached() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

func (p *Promotion) servesCity(city string) bool {
	if city == "" {
		return false
	}
	for _, c := range p.TargetCities {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(city)) {
			return true
		}
	}
	return false
}

func (p *Promotion) usage() Usage {
	u := Usage{UsageCount: p.UsageCount}
	if p.UsageLimit != nil {
		left := *p.UsageLimit - p.UsageCount
		if left < 0 {
			left = 0
		}
		u.RemainingUses = &left
	}
	return u
}

// Quote is the result of a successful validation.
type Quote struct {
	PromotionID string          `json:"promotion_id"`
	Title       string          `json:"title"`
	Type        Type            `json:"promo_type"`
	Discount    decimal.Decimal `json:"discount_amount"`
	// Applied is the part of Discount that fits the amount: amount - FinalAmount.
	Applied     decimal.Decimal `json:"applied_discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// Redemption ties one promotion use to one order.
type Redemption struct {
	PromotionID string
	OrderID     string
	CreatedAt   time.Time
}

type Usage struct {
	UsageCount    int  `json:"usage_count"`
	RemainingUses *int `json:"remaining_uses"`
}

type CreateRequest struct {
	Title              string
	Description        string
	Type               Type
	Code               string
	DiscountPercentage *decimal.Decimal
	MaxDiscount        *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	MinOrderAmount     *decimal.Decimal
	StartDate          time.Time
	EndDate            time.Time
	UsageLimit         *int
	GeoTargeted        bool
	TargetCities       []string
}

type ListFilter struct {
	Type Type
	City string
}
