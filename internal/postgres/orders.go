package postgres

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

const (
	orderColumns = `id, customer_id, cafe_id, order_type, table_number, qr_code, subtotal, discount, total,
		promo_code, promotion_id, points_earned, points_used, status, created_at, updated_at,
		preparation_start_time, preparation_end_time, ready_time, estimated_ready_time`
	sqlInsertOrder = `INSERT INTO orders(` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	sqlInsertOrderItem = `INSERT INTO order_items(order_id, line_no, coffee_id, name, quantity, unit_price)
		VALUES ($1,$2,$3,$4,$5,$6)`
	sqlGetOrder       = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	sqlGetOrderLocked = sqlGetOrder + ` FOR UPDATE`
	sqlOrderItems     = `SELECT order_id, coffee_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`
	sqlUpdateOrder = `UPDATE orders SET status=$2, updated_at=$3, preparation_start_time=$4,
		preparation_end_time=$5, ready_time=$6, estimated_ready_time=$7 WHERE id=$1`
	sqlListOrders     = `SELECT ` + orderColumns + ` FROM orders`
	sqlInsertTracking = `INSERT INTO order_tracking(id, order_id, status, message, estimated_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	sqlOrderHistory = `SELECT id, order_id, status, message, estimated_time, created_at
		FROM order_tracking WHERE order_id=$1 ORDER BY seq DESC`
)

type OrderRepo struct{ s *Store }

func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

var _ orders.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	q := r.s.q(ctx)
	_, err := q.Exec(ctx, sqlInsertOrder,
		o.ID, o.CustomerID, o.CafeID, string(o.Type), o.TableNumber, o.QRCode,
		o.Subtotal, o.Discount, o.Total, o.PromoCode, o.PromotionID, o.PointsEarned, o.PointsUsed,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
		o.PreparationStartedAt, o.PreparationEndedAt, o.ReadyAt, o.EstimatedReadyAt)
	if err != nil {
		return dbErr(err, "insert order")
	}
	for i, li := range o.Items {
		if _, err := q.Exec(ctx, sqlInsertOrderItem, o.ID, i+1, li.CoffeeID, li.Name, li.Quantity, li.UnitPrice); err != nil {
			return dbErr(err, "insert order item")
		}
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*orders.Order, error) {
	return r.get(ctx, sqlGetOrder, id)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return r.get(ctx, sqlGetOrderLocked, id)
}

func (r *OrderRepo) get(ctx context.Context, query, id string) (*orders.Order, error) {
	o, err := scanOrder(r.s.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, rowErr(err, "get order", apperr.NotFound("order %s not found", id))
	}
	list := []orders.Order{*o}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o           orders.Order
		typ, status string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CafeID, &typ, &o.TableNumber, &o.QRCode,
		&o.Subtotal, &o.Discount, &o.Total, &o.PromoCode, &o.PromotionID, &o.PointsEarned, &o.PointsUsed,
		&status, &o.CreatedAt, &o.UpdatedAt,
		&o.PreparationStartedAt, &o.PreparationEndedAt, &o.ReadyAt, &o.EstimatedReadyAt)
	if err != nil {
		return nil, err
	}
	o.Type = orders.OrderType(typ)
	o.Status = orders.Status(status)
	return &o, nil
}

// attachItems loads the line items of every order in list with one query.
func (r *OrderRepo) attachItems(ctx context.Context, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string]int, len(list))
	for i, o := range list {
		ids = append(ids, o.ID)
		byID[o.ID] = i
	}
	rows, err := r.s.q(ctx).Query(ctx, sqlOrderItems, ids)
	if err != nil {
		return dbErr(err, "load order items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			li      orders.LineItem
		)
		if err := rows.Scan(&orderID, &li.CoffeeID, &li.Name, &li.Quantity, &li.UnitPrice); err != nil {
			return dbErr(err, "scan order item")
		}
		if i, ok := byID[orderID]; ok {
			list[i].Items = append(list[i].Items, li)
		}
	}
	return dbErr(rows.Err(), "load order items")
}

func (r *OrderRepo) Update(ctx context.Context, o *orders.Order) error {
	ct, err := r.s.q(ctx).Exec(ctx, sqlUpdateOrder, o.ID, string(o.Status), o.UpdatedAt,
		o.PreparationStartedAt, o.PreparationEndedAt, o.ReadyAt, o.EstimatedReadyAt)
	if err != nil {
		return dbErr(err, "update order")
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("order %s not found", o.ID)
	}
	return nil
}

func (r *OrderRepo) List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	query := sqlListOrders
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conds = append(conds, "customer_id=$"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, "status=$"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err, "list orders")
	}
	out := make([]orders.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, dbErr(err, "scan order")
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "list orders")
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepo) AppendTracking(ctx context.Context, e orders.TrackingEntry) error {
	_, err := r.s.q(ctx).Exec(ctx, sqlInsertTracking,
		e.ID, e.OrderID, string(e.Status), e.Message, e.EstimatedTime, e.CreatedAt)
	return dbErr(err, "append tracking")
}

func (r *OrderRepo) History(ctx context.Context, orderID string) ([]orders.TrackingEntry, error) {
	rows, err := r.s.q(ctx).Query(ctx, sqlOrderHistory, orderID)
	if err != nil {
		return nil, dbErr(err, "order history")
	}
	defer rows.Close()

	out := make([]orders.TrackingEntry, 0)
	for rows.Next() {
		var (
			e      orders.TrackingEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.Message, &e.EstimatedTime, &e.CreatedAt); err != nil {
			return nil, dbErr(err, "scan tracking")
		}
		e.Status = orders.Status(status)
		out = append(out, e)
	}
	return out, dbErr(rows.Err(), "order history")
}
