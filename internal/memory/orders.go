package memory

import (
	"context"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
)

type OrderRepo struct{ s *Store }

func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

var _ orders.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if _, ok := r.s.st.orders[o.ID]; ok {
		return apperr.Conflict("order %s already exists", o.ID)
	}
	id, n := o.ID, len(r.s.st.orderSeq)
	r.s.onRollback(ctx, func() {
		delete(r.s.st.orders, id)
		r.s.st.orderSeq = r.s.st.orderSeq[:n]
	})
	r.s.st.orders[id] = cloneOrder(*o)
	r.s.st.orderSeq = append(r.s.st.orderSeq, id)
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*orders.Order, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderRepo) Update(ctx context.Context, o *orders.Order) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	prev, ok := r.s.st.orders[o.ID]
	if !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	id := o.ID
	r.s.onRollback(ctx, func() { r.s.st.orders[id] = prev })
	r.s.st.orders[id] = cloneOrder(*o)
	return nil
}

func (r *OrderRepo) List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make([]orders.Order, 0)
	for i := len(r.s.st.orderSeq) - 1; i >= 0; i-- {
		o := r.s.st.orders[r.s.st.orderSeq[i]]
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *OrderRepo) AppendTracking(ctx context.Context, e orders.TrackingEntry) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	if _, ok := r.s.st.orders[e.OrderID]; !ok {
		return apperr.NotFound("order %s not found", e.OrderID)
	}
	id := e.OrderID
	prev, had := r.s.st.tracking[id]
	n := len(prev)
	r.s.onRollback(ctx, func() {
		if !had {
			delete(r.s.st.tracking, id)
			return
		}
		r.s.st.tracking[id] = r.s.st.tracking[id][:n]
	})
	r.s.st.tracking[id] = append(prev, e)
	return nil
}

func (r *OrderRepo) History(ctx context.Context, orderID string) ([]orders.TrackingEntry, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	entries := r.s.st.tracking[orderID]
	out := make([]orders.TrackingEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.LineItem(nil), o.Items...)
	return o
}
