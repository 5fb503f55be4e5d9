package promotions

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/txn"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	repo Repository
	tx   txn.Manager
	log  *zap.Logger
	now  func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, tx txn.Manager, log *zap.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, tx: tx, log: logger.OrNop(log).Named("promotions"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate checks code against amount and city and quotes the discount.
// It never changes state; usage is counted only by Commit.
func (s *Service) Validate(ctx context.Context, code string, amount decimal.Decimal, city string) (Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Quote{}, apperr.Validation("promo code is required")
	}
	if amount.IsNegative() {
		return Quote{}, apperr.Validation("order amount must not be negative")
	}
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Quote{}, apperr.NotFound("invalid promo code")
		}
		return Quote{}, err
	}
	if err := p.Check(amount, city, s.now()); err != nil {
		return Quote{}, err
	}
	d := p.Discount(amount)
	final := decimal.Max(amount.Sub(d), decimal.Zero)
	return Quote{
		PromotionID: p.ID,
		Title:       p.Title,
		Type:        p.Type,
		Discount:    d,
		Applied:     amount.Sub(final),
		FinalAmount: final,
	}, nil
}

// Commit counts one use of the promotion for orderID. The usage limit is
// re-checked under the row lock. Committing the same order twice is a no-op.
func (s *Service) Commit(ctx context.Context, promoID, orderID string) (Usage, error) {
	if promoID == "" || orderID == "" {
		return Usage{}, apperr.Validation("promotion id and order id are required")
	}
	var u Usage
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, promoID)
		if err != nil {
			return err
		}
		inserted, err := s.repo.AddRedemption(ctx, Redemption{PromotionID: p.ID, OrderID: orderID, CreatedAt: s.now().UTC()})
		if err != nil {
			return err
		}
		if !inserted {
			u = p.usage()
			return nil
		}
		if p.limitReached() {
			return apperr.New(apperr.KindLimitReached, "promotion usage limit reached")
		}
		p.UsageCount++
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		u = p.usage()
		return nil
	})
	if err != nil {
		return Usage{}, err
	}
	s.log.Info("promotion used",
		zap.String("promotion_id", promoID),
		zap.String("order_id", orderID),
		zap.Int("usage_count", u.UsageCount))
	return u, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Promotion, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	p := &Promotion{
		ID:                 uuid.NewString(),
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		Type:               req.Type,
		Code:               strings.TrimSpace(req.Code),
		DiscountPercentage: req.DiscountPercentage,
		MaxDiscount:        req.MaxDiscount,
		DiscountAmount:     req.DiscountAmount,
		MinOrderAmount:     req.MinOrderAmount,
		StartDate:          req.StartDate.UTC(),
		EndDate:            req.EndDate.UTC(),
		Active:             true,
		UsageLimit:         req.UsageLimit,
		GeoTargeted:        req.GeoTargeted,
		TargetCities:       req.TargetCities,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("promotion created", zap.String("promotion_id", p.ID), zap.String("code", p.Code))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns running promotions. When a city is given, geo-targeted
// promotions are kept only if they serve it.
func (s *Service) ListActive(ctx context.Context, f ListFilter) ([]Promotion, error) {
	all, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]Promotion, 0, len(all))
	for _, p := range all {
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.City != "" && p.GeoTargeted && !p.servesCity(f.City) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return apperr.Validation("missing required field: title")
	}
	if !req.Type.Valid() {
		return apperr.Validation("invalid promo_type %q", req.Type)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return apperr.Validation("start_date and end_date are required")
	}
	if !req.EndDate.After(req.StartDate) {
		return apperr.Validation("end_date must be after start_date")
	}
	if pct := req.DiscountPercentage; pct != nil && (!pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100))) {
		return apperr.Validation("discount_percentage must be in (0, 100]")
	}
	for name, v := range map[string]*decimal.Decimal{
		"max_discount":     req.MaxDiscount,
		"discount_amount":  req.DiscountAmount,
		"min_order_amount": req.MinOrderAmount,
	} {
		if v != nil && v.IsNegative() {
			return apperr.Validation("%s must not be negative", name)
		}
	}
	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return apperr.Validation("usage_limit must be at least 1, omit it for unlimited use")
	}
	if req.GeoTargeted && len(req.TargetCities) == 0 {
		return apperr.Validation("target_cities is required for geo-targeted promotions")
	}
	return nil
}
