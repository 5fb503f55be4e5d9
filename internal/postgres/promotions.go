package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	promotionColumns = `id, title, description, promo_type, promo_code, discount_percentage, max_discount,
		discount_amount, min_order_amount, start_date, end_date, is_active, usage_limit, usage_count,
		geo_targeted, target_cities, created_at`
	sqlInsertPromotion = `INSERT INTO promotions(` + promotionColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	sqlGetPromotion       = `SELECT ` + promotionColumns + ` FROM promotions WHERE id=$1`
	sqlGetPromotionLocked = sqlGetPromotion + ` FOR UPDATE`
	sqlGetPromotionByCode = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE promo_code <> '' AND lower(promo_code)=lower($1)`
	sqlSavePromotion  = `UPDATE promotions SET is_active=$2, usage_count=$3 WHERE id=$1`
	sqlListPromotions = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE is_active AND start_date <= $1 AND end_date >= $1 ORDER BY created_at DESC, id`
	sqlInsertRedemption = `INSERT INTO promotion_redemptions(promotion_id, order_id, created_at)
		VALUES ($1,$2,$3) ON CONFLICT (promotion_id, order_id) DO NOTHING`
)

type PromotionRepo struct{ s *Store }

func (s *Store) Promotions() *PromotionRepo { return &PromotionRepo{s: s} }

var _ promotions.Repository = (*PromotionRepo)(nil)

func (r *PromotionRepo) Create(ctx context.Context, p *promotions.Promotion) error {
	cities := p.TargetCities
	if cities == nil {
		cities = []string{}
	}
	_, err := r.s.q(ctx).Exec(ctx, sqlInsertPromotion,
		p.ID, p.Title, p.Description, string(p.Type), p.Code,
		nullDec(p.DiscountPercentage), nullDec(p.MaxDiscount), nullDec(p.DiscountAmount), nullDec(p.MinOrderAmount),
		p.StartDate, p.EndDate, p.Active, p.UsageLimit, p.UsageCount,
		p.GeoTargeted, cities, p.CreatedAt)
	if err = dbErr(err, "create promotion"); apperr.Is(err, apperr.KindConflict) {
		return apperr.Conflict("promo code %s already exists", p.Code)
	}
	return err
}

func (r *PromotionRepo) Get(ctx context.Context, id string) (*promotions.Promotion, error) {
	return r.get(ctx, sqlGetPromotion, id, apperr.NotFound("promotion %s not found", id))
}

func (r *PromotionRepo) GetForUpdate(ctx context.Context, id string) (*promotions.Promotion, error) {
	return r.get(ctx, sqlGetPromotionLocked, id, apperr.NotFound("promotion %s not found", id))
}

func (r *PromotionRepo) GetByCode(ctx context.Context, code string) (*promotions.Promotion, error) {
	return r.get(ctx, sqlGetPromotionByCode, code, apperr.NotFound("promo code %s not found", code))
}

func (r *PromotionRepo) get(ctx context.Context, query, arg string, notFound *apperr.Error) (*promotions.Promotion, error) {
	p, err := scanPromotion(r.s.q(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, rowErr(err, "get promotion", notFound)
	}
	return p, nil
}

func scanPromotion(row pgx.Row) (*promotions.Promotion, error) {
	var (
		p                        promotions.Promotion
		typ                      string
		pct, maxD, amount, minOA decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &typ, &p.Code,
		&pct, &maxD, &amount, &minOA,
		&p.StartDate, &p.EndDate, &p.Active, &p.UsageLimit, &p.UsageCount,
		&p.GeoTargeted, &p.TargetCities, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = promotions.Type(typ)
	p.DiscountPercentage = decPtr(pct)
	p.MaxDiscount = decPtr(maxD)
	p.DiscountAmount = decPtr(amount)
	p.MinOrderAmount = decPtr(minOA)
	return &p, nil
}

func (r *PromotionRepo) Save(ctx context.Context, p *promotions.Promotion) error {
	ct, err := r.s.q(ctx).Exec(ctx, sqlSavePromotion, p.ID, p.Active, p.UsageCount)
	if err != nil {
		return dbErr(err, "save promotion")
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("promotion %s not found", p.ID)
	}
	return nil
}

func (r *PromotionRepo) ListActive(ctx context.Context, now time.Time) ([]promotions.Promotion, error) {
	rows, err := r.s.q(ctx).Query(ctx, sqlListPromotions, now)
	if err != nil {
		return nil, dbErr(err, "list promotions")
	}
	defer rows.Close()

	out := make([]promotions.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, dbErr(err, "scan promotion")
		}
		out = append(out, *p)
	}
	return out, dbErr(rows.Err(), "list promotions")
}

func (r *PromotionRepo) AddRedemption(ctx context.Context, red promotions.Redemption) (bool, error) {
	ct, err := r.s.q(ctx).Exec(ctx, sqlInsertRedemption, red.PromotionID, red.OrderID, red.CreatedAt)
	if err != nil {
		return false, dbErr(err, "add redemption")
	}
	return ct.RowsAffected() == 1, nil
}

func nullDec(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}
