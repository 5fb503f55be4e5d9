// Package bootstrap opens the configured storage backend for the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-coffee-orders/internal/config"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/memory"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/postgres"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
	"github.com/ariefcatur/go-coffee-orders/internal/txn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Storage is one backend's repositories and transaction manager.
type Storage struct {
	Tx         txn.Manager
	Catalog    directory.Catalog
	Customers  directory.Customers
	Cafes      directory.Cafes
	Stock      stock.Repository
	Loyalty    loyalty.Repository
	Promotions promotions.Repository
	Orders     orders.Repository

	close func()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage connects the backend named by cfg.Driver. The memory driver
// starts with a small demo catalog.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*Storage, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			DSN:      cfg.PostgresDSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		s := postgres.NewStore(pool, log)
		return &Storage{
			Tx:         s,
			Catalog:    s,
			Customers:  s,
			Cafes:      s,
			Stock:      s.Stock(),
			Loyalty:    s.Loyalty(),
			Promotions: s.Promotions(),
			Orders:     s.Orders(),
			close:      pool.Close,
		}, nil
	case "memory":
		s := memory.NewStore()
		if err := seedDemo(s); err != nil {
			return nil, err
		}
		log.Warn("using in-memory storage, data is lost on restart")
		return &Storage{
			Tx:         s,
			Catalog:    s,
			Customers:  s,
			Cafes:      s,
			Stock:      s.Stock(),
			Loyalty:    s.Loyalty(),
			Promotions: s.Promotions(),
			Orders:     s.Orders(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func seedDemo(s *memory.Store) error {
	menu := []struct {
		id, name, price string
		qty, min        int
	}{
		{"espresso", "Espresso", "3.50", 100, 10},
		{"cappuccino", "Cappuccino", "4.50", 100, 10},
		{"latte", "Caffe Latte", "4.75", 100, 10},
		{"cold-brew", "Cold Brew", "5.00", 50, 5},
	}
	for _, m := range menu {
		if err := s.AddCoffee(m.id, m.name, decimal.RequireFromString(m.price), m.qty, m.min); err != nil {
			return err
		}
	}
	s.AddCafe(directory.Cafe{ID: "cafe-1", Name: "Kopi Kita", City: "Jakarta"})
	s.AddCustomer(directory.Customer{ID: "demo", Name: "Demo Customer", City: "Jakarta"})
	return nil
}
