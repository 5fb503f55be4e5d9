package promotions

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	Get(ctx context.Context, id string) (*Promotion, error)
	GetByCode(ctx context.Context, code string) (*Promotion, error)
	GetForUpdate(ctx context.Context, id string) (*Promotion, error)
	Save(ctx context.Context, p *Promotion) error
	// ListActive returns active promotions whose window contains now, newest first.
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)
	// AddRedemption reports false when the (promotion, order) pair already exists.
	AddRedemption(ctx context.Context, r Redemption) (bool, error)
}
