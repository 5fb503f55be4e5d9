package memory

import (
	"context"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
)

type StockRepo struct{ s *Store }

func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) Get(ctx context.Context, coffeeID string) (*stock.Record, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	c, ok := r.s.st.coffees[coffeeID]
	if !ok {
		return nil, apperr.NotFound("coffee item %s not found", coffeeID)
	}
	rec := c.stock
	return &rec, nil
}

// GetForUpdate relies on the transaction's store-wide lock.
func (r *StockRepo) GetForUpdate(ctx context.Context, coffeeID string) (*stock.Record, error) {
	return r.Get(ctx, coffeeID)
}

func (r *StockRepo) Save(ctx context.Context, rec *stock.Record) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	c, ok := r.s.st.coffees[rec.CoffeeID]
	if !ok {
		return apperr.NotFound("coffee item %s not found", rec.CoffeeID)
	}
	prev := c
	r.s.onRollback(ctx, func() { r.s.st.coffees[rec.CoffeeID] = prev })
	c.stock = *rec
	r.s.st.coffees[rec.CoffeeID] = c
	return nil
}

func (r *StockRepo) AppendEntry(ctx context.Context, e stock.UpdateEntry) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	n := len(r.s.st.stockEntries)
	r.s.onRollback(ctx, func() { r.s.st.stockEntries = r.s.st.stockEntries[:n] })
	r.s.st.stockEntries = append(r.s.st.stockEntries, e)
	return nil
}

func (r *StockRepo) ListEntries(ctx context.Context, f stock.EntryFilter) ([]stock.UpdateEntry, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make([]stock.UpdateEntry, 0)
	for i := len(r.s.st.stockEntries) - 1; i >= 0; i-- {
		e := r.s.st.stockEntries[i]
		if f.CoffeeID != "" && e.CoffeeID != f.CoffeeID {
			continue
		}
		if f.CafeID != "" && e.CafeID != f.CafeID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
