package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
)

type PromotionRepo struct{ s *Store }

func (s *Store) Promotions() *PromotionRepo { return &PromotionRepo{s: s} }

var _ promotions.Repository = (*PromotionRepo)(nil)

func (r *PromotionRepo) Create(ctx context.Context, p *promotions.Promotion) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if _, ok := r.s.st.promos[p.ID]; ok {
		return apperr.Conflict("promotion %s already exists", p.ID)
	}
	if p.Code != "" {
		for _, other := range r.s.st.promos {
			if strings.EqualFold(other.Code, p.Code) {
				return apperr.Conflict("promo code %s already exists", p.Code)
			}
		}
	}
	id := p.ID
	r.s.onRollback(ctx, func() { delete(r.s.st.promos, id) })
	r.s.st.promos[id] = clonePromotion(*p)
	return nil
}

func (r *PromotionRepo) Get(ctx context.Context, id string) (*promotions.Promotion, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	p, ok := r.s.st.promos[id]
	if !ok {
		return nil, apperr.NotFound("promotion %s not found", id)
	}
	p = clonePromotion(p)
	return &p, nil
}

func (r *PromotionRepo) GetByCode(ctx context.Context, code string) (*promotions.Promotion, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	for _, p := range r.s.st.promos {
		if p.Code != "" && strings.EqualFold(p.Code, code) {
			p = clonePromotion(p)
			return &p, nil
		}
	}
	return nil, apperr.NotFound("promo code %s not found", code)
}

func (r *PromotionRepo) GetForUpdate(ctx context.Context, id string) (*promotions.Promotion, error) {
	return r.Get(ctx, id)
}

func (r *PromotionRepo) Save(ctx context.Context, p *promotions.Promotion) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	prev, ok := r.s.st.promos[p.ID]
	if !ok {
		return apperr.NotFound("promotion %s not found", p.ID)
	}
	id := p.ID
	r.s.onRollback(ctx, func() { r.s.st.promos[id] = prev })
	r.s.st.promos[id] = clonePromotion(*p)
	return nil
}

func (r *PromotionRepo) ListActive(ctx context.Context, now time.Time) ([]promotions.Promotion, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make([]promotions.Promotion, 0)
	for _, p := range r.s.st.promos {
		if !p.Active || now.Before(p.StartDate) || now.After(p.EndDate) {
			continue
		}
		out = append(out, clonePromotion(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *PromotionRepo) AddRedemption(ctx context.Context, red promotions.Redemption) (bool, error) {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	k := redemptionKey{promoID: red.PromotionID, orderID: red.OrderID}
	if _, ok := r.s.st.redemptions[k]; ok {
		return false, nil
	}
	r.s.onRollback(ctx, func() { delete(r.s.st.redemptions, k) })
	r.s.st.redemptions[k] = red
	return true, nil
}

func clonePromotion(p promotions.Promotion) promotions.Promotion {
	p.TargetCities = append([]string(nil), p.TargetCities...)
	return p
}
