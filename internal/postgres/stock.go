package postgres

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
)

const (
	sqlGetStock = `SELECT id, name, stock_quantity, min_stock_level, available, updated_at
		FROM coffees WHERE id=$1`
	sqlGetStockForUpdate = sqlGetStock + ` FOR UPDATE`
	sqlSaveStock         = `UPDATE coffees SET stock_quantity=$2, available=$3, updated_at=$4 WHERE id=$1`
	sqlInsertStockUpdate = `INSERT INTO stock_updates(id, coffee_id, cafe_id, quantity_change, new_stock_level, reason, updated_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	sqlListStockUpdates = `SELECT id, coffee_id, cafe_id, quantity_change, new_stock_level, reason, updated_by, created_at
		FROM stock_updates`
)

type StockRepo struct{ s *Store }

func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) Get(ctx context.Context, coffeeID string) (*stock.Record, error) {
	return r.get(ctx, sqlGetStock, coffeeID)
}

func (r *StockRepo) GetForUpdate(ctx context.Context, coffeeID string) (*stock.Record, error) {
	return r.get(ctx, sqlGetStockForUpdate, coffeeID)
}

func (r *StockRepo) get(ctx context.Context, query, coffeeID string) (*stock.Record, error) {
	var rec stock.Record
	err := r.s.q(ctx).QueryRow(ctx, query, coffeeID).
		Scan(&rec.CoffeeID, &rec.Name, &rec.Quantity, &rec.MinLevel, &rec.Available, &rec.UpdatedAt)
	if err != nil {
		return nil, rowErr(err, "get stock", apperr.NotFound("coffee item %s not found", coffeeID))
	}
	return &rec, nil
}

func (r *StockRepo) Save(ctx context.Context, rec *stock.Record) error {
	ct, err := r.s.q(ctx).Exec(ctx, sqlSaveStock, rec.CoffeeID, rec.Quantity, rec.Available, rec.UpdatedAt)
	if err != nil {
		return dbErr(err, "save stock")
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("coffee item %s not found", rec.CoffeeID)
	}
	return nil
}

func (r *StockRepo) AppendEntry(ctx context.Context, e stock.UpdateEntry) error {
	_, err := r.s.q(ctx).Exec(ctx, sqlInsertStockUpdate,
		e.ID, e.CoffeeID, e.CafeID, e.Delta, e.NewLevel, e.Reason, e.Actor, e.CreatedAt)
	return dbErr(err, "append stock update")
}

func (r *StockRepo) ListEntries(ctx context.Context, f stock.EntryFilter) ([]stock.UpdateEntry, error) {
	query := sqlListStockUpdates
	var (
		where string
		args  []any
	)
	if f.CoffeeID != "" {
		args = append(args, f.CoffeeID)
		where += " AND coffee_id=$" + strconv.Itoa(len(args))
	}
	if f.CafeID != "" {
		args = append(args, f.CafeID)
		where += " AND cafe_id=$" + strconv.Itoa(len(args))
	}
	if where != "" {
		query += " WHERE" + where[len(" AND"):]
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err, "list stock updates")
	}
	defer rows.Close()

	out := make([]stock.UpdateEntry, 0)
	for rows.Next() {
		var e stock.UpdateEntry
		if err := rows.Scan(&e.ID, &e.CoffeeID, &e.CafeID, &e.Delta, &e.NewLevel, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, dbErr(err, "scan stock update")
		}
		out = append(out, e)
	}
	return out, dbErr(rows.Err(), "list stock updates")
}
