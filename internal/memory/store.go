// Package memory is an in-process implementation of every repository the
// order engine uses. A transaction holds the store's write lock and replays
// an undo log when it fails.
package memory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/shopspring/decimal"
)

type coffee struct {
	price decimal.Decimal
	stock stock.Record
}

type account struct {
	acc loyalty.Account
	seq int64
}

type redemptionKey struct{ promoID, orderID string }

type state struct {
	coffees      map[string]coffee
	stockEntries []stock.UpdateEntry
	customers    map[string]directory.Customer
	cafes        map[string]directory.Cafe
	accounts     map[string]account
	loyaltyTx    []loyalty.Transaction
	promos       map[string]promotions.Promotion
	redemptions  map[redemptionKey]promotions.Redemption
	orders       map[string]orders.Order
	orderSeq     []string
	tracking     map[string][]orders.TrackingEntry
	seq          int64
}

type Store struct {
	mu   sync.RWMutex
	st   state
	undo []func()
}

func NewStore() *Store {
	return &Store{st: state{
		coffees:     make(map[string]coffee),
		customers:   make(map[string]directory.Customer),
		cafes:       make(map[string]directory.Cafe),
		accounts:    make(map[string]account),
		promos:      make(map[string]promotions.Promotion),
		redemptions: make(map[redemptionKey]promotions.Redemption),
		orders:      make(map[string]orders.Order),
		tracking:    make(map[string][]orders.TrackingEntry),
	}}
}

var (
	_ directory.Catalog   = (*Store)(nil)
	_ directory.Customers = (*Store)(nil)
	_ directory.Cafes     = (*Store)(nil)
)

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(*Store)
	return v == s
}

func (s *Store) rlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.RLock()
	}
}

func (s *Store) runlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.RUnlock()
	}
}

func (s *Store) wlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) wunlock(ctx context.Context) {
	if !s.inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithTransaction runs fn under the store's write lock. Nested calls join the
// outer transaction. On error every change made by fn is discarded.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return apperr.Internal(err, "transaction aborted")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.undo = s.undo[:0]
	err := fn(context.WithValue(ctx, txKey{}, s))
	if err != nil {
		for i := len(s.undo) - 1; i >= 0; i-- {
			s.undo[i]()
		}
	}
	clear(s.undo)
	s.undo = s.undo[:0]
	return err
}

// onRollback records how to revert a write made inside a transaction.
// Writes outside a transaction commit immediately.
func (s *Store) onRollback(ctx context.Context, fn func()) {
	if s.inTx(ctx) {
		s.undo = append(s.undo, fn)
	}
}

func (s *Store) nextSeq() int64 {
	s.st.seq++
	return s.st.seq
}

// AddCoffee registers a catalog item together with its stock record.
func (s *Store) AddCoffee(id, name string, price decimal.Decimal, quantity, minLevel int) error {
	rec, err := stock.NewRecord(id, name, quantity, minLevel)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.coffees[id] = coffee{price: price, stock: *rec}
	return nil
}

func (s *Store) AddCustomer(c directory.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.customers[c.ID] = c
}

func (s *Store) AddCafe(c directory.Cafe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cafes[c.ID] = c
}

func (s *Store) GetItem(ctx context.Context, id string) (directory.CoffeeItem, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	c, ok := s.st.coffees[id]
	if !ok {
		return directory.CoffeeItem{}, apperr.NotFound("coffee item %s not found", id)
	}
	return directory.CoffeeItem{ID: id, Name: c.stock.Name, Price: c.price}, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (directory.Customer, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	c, ok := s.st.customers[id]
	if !ok {
		return directory.Customer{}, apperr.NotFound("customer %s not found", id)
	}
	return c, nil
}

func (s *Store) GetCafe(ctx context.Context, id string) (directory.Cafe, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	c, ok := s.st.cafes[id]
	if !ok {
		return directory.Cafe{}, apperr.NotFound("cafe %s not found", id)
	}
	return c, nil
}
