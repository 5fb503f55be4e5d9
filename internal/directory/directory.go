// Package directory declares the lookups the order engine needs from the
// catalog, customer and café parts of the system.
package directory

import (
	"context"

	"github.com/shopspring/decimal"
)

type CoffeeItem struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

type Customer struct {
	ID   string
	Name string
	City string
}

type Cafe struct {
	ID   string
	Name string
	City string
}

// Catalog resolves coffee items to their current name and unit price.
// Implementations return an apperr NotFound error for unknown ids.
type Catalog interface {
	GetItem(ctx context.Context, id string) (CoffeeItem, error)
}

type Customers interface {
	GetCustomer(ctx context.Context, id string) (Customer, error)
}

type Cafes interface {
	GetCafe(ctx context.Context, id string) (Cafe, error)
}
