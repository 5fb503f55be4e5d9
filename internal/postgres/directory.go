package postgres

import (
	"context"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
)

const (
	sqlGetCoffee   = `SELECT id, name, price FROM coffees WHERE id=$1`
	sqlGetCustomer = `SELECT id, name, city FROM users WHERE id=$1`
	sqlGetCafe     = `SELECT id, name, city FROM cafes WHERE id=$1`
)

var (
	_ directory.Catalog   = (*Store)(nil)
	_ directory.Customers = (*Store)(nil)
	_ directory.Cafes     = (*Store)(nil)
)

func (s *Store) GetItem(ctx context.Context, id string) (directory.CoffeeItem, error) {
	var it directory.CoffeeItem
	err := s.q(ctx).QueryRow(ctx, sqlGetCoffee, id).Scan(&it.ID, &it.Name, &it.Price)
	if err != nil {
		return directory.CoffeeItem{}, rowErr(err, "get coffee", apperr.NotFound("coffee item %s not found", id))
	}
	return it, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (directory.Customer, error) {
	var c directory.Customer
	err := s.q(ctx).QueryRow(ctx, sqlGetCustomer, id).Scan(&c.ID, &c.Name, &c.City)
	if err != nil {
		return directory.Customer{}, rowErr(err, "get customer", apperr.NotFound("customer %s not found", id))
	}
	return c, nil
}

func (s *Store) GetCafe(ctx context.Context, id string) (directory.Cafe, error) {
	var c directory.Cafe
	err := s.q(ctx).QueryRow(ctx, sqlGetCafe, id).Scan(&c.ID, &c.Name, &c.City)
	if err != nil {
		return directory.Cafe{}, rowErr(err, "get cafe", apperr.NotFound("cafe %s not found", id))
	}
	return c, nil
}
