package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
)

type LoyaltyRepo struct{ s *Store }

func (s *Store) Loyalty() *LoyaltyRepo { return &LoyaltyRepo{s: s} }

var _ loyalty.Repository = (*LoyaltyRepo)(nil)

func (r *LoyaltyRepo) GetOrCreateForUpdate(ctx context.Context, customerID string, now time.Time) (*loyalty.Account, error) {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	a, ok := r.s.st.accounts[customerID]
	if !ok {
		a = account{acc: *loyalty.NewAccount(customerID, now), seq: r.s.nextSeq()}
		r.s.st.accounts[customerID] = a
		r.s.onRollback(ctx, func() { delete(r.s.st.accounts, customerID) })
	}
	acc := cloneAccount(a.acc)
	return &acc, nil
}

func (r *LoyaltyRepo) Get(ctx context.Context, customerID string) (*loyalty.Account, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	a, ok := r.s.st.accounts[customerID]
	if !ok {
		return nil, apperr.NotFound("loyalty account for %s not found", customerID)
	}
	acc := cloneAccount(a.acc)
	return &acc, nil
}

func (r *LoyaltyRepo) Save(ctx context.Context, acc *loyalty.Account) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	a, ok := r.s.st.accounts[acc.CustomerID]
	if !ok {
		return apperr.NotFound("loyalty account for %s not found", acc.CustomerID)
	}
	prev := a
	id := acc.CustomerID
	r.s.onRollback(ctx, func() { r.s.st.accounts[id] = prev })
	a.acc = cloneAccount(*acc)
	r.s.st.accounts[id] = a
	return nil
}

func (r *LoyaltyRepo) AppendTransaction(ctx context.Context, t loyalty.Transaction) error {
	r.s.wlock(ctx)
	defer r.s.wunlock(ctx)
	n := len(r.s.st.loyaltyTx)
	r.s.onRollback(ctx, func() { r.s.st.loyaltyTx = r.s.st.loyaltyTx[:n] })
	r.s.st.loyaltyTx = append(r.s.st.loyaltyTx, t)
	return nil
}

func (r *LoyaltyRepo) ListTransactions(ctx context.Context, customerID string) ([]loyalty.Transaction, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	out := make([]loyalty.Transaction, 0)
	for i := len(r.s.st.loyaltyTx) - 1; i >= 0; i-- {
		if t := r.s.st.loyaltyTx[i]; t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *LoyaltyRepo) Leaderboard(ctx context.Context, limit int) ([]loyalty.Account, error) {
	r.s.rlock(ctx)
	defer r.s.runlock(ctx)
	all := make([]account, 0, len(r.s.st.accounts))
	for _, a := range r.s.st.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].acc.Points != all[j].acc.Points {
			return all[i].acc.Points > all[j].acc.Points
		}
		return all[i].seq < all[j].seq
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]loyalty.Account, 0, len(all))
	for _, a := range all {
		out = append(out, cloneAccount(a.acc))
	}
	return out, nil
}

func cloneAccount(a loyalty.Account) loyalty.Account {
	if a.LastOrderDate != nil {
		d := *a.LastOrderDate
		a.LastOrderDate = &d
	}
	return a
}
