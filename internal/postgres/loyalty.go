package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/jackc/pgx/v5"
)

const (
	accountColumns   = `user_id, points, level, streak_days, last_order_date, created_at, updated_at`
	sqlEnsureAccount = `INSERT INTO loyalty_accounts(user_id, points, level, streak_days, created_at, updated_at)
		VALUES ($1, 0, $2, 0, $3, $3) ON CONFLICT (user_id) DO NOTHING`
	sqlGetAccount       = `SELECT ` + accountColumns + ` FROM loyalty_accounts WHERE user_id=$1`
	sqlGetAccountLocked = sqlGetAccount + ` FOR UPDATE`
	sqlSaveAccount      = `UPDATE loyalty_accounts
		SET points=$2, level=$3, streak_days=$4, last_order_date=$5, updated_at=$6 WHERE user_id=$1`
	sqlInsertPointsTx = `INSERT INTO loyalty_transactions(id, user_id, transaction_type, points, description, order_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	sqlListPointsTx = `SELECT id, user_id, transaction_type, points, description, order_id, created_at
		FROM loyalty_transactions WHERE user_id=$1 ORDER BY seq DESC`
	sqlLeaderboard = `SELECT ` + accountColumns + ` FROM loyalty_accounts ORDER BY points DESC, seq ASC LIMIT $1`
)

type LoyaltyRepo struct{ s *Store }

func (s *Store) Loyalty() *LoyaltyRepo { return &LoyaltyRepo{s: s} }

var _ loyalty.Repository = (*LoyaltyRepo)(nil)

func (r *LoyaltyRepo) GetOrCreateForUpdate(ctx context.Context, customerID string, now time.Time) (*loyalty.Account, error) {
	if _, err := r.s.q(ctx).Exec(ctx, sqlEnsureAccount, customerID, string(loyalty.TierBronze), now); err != nil {
		return nil, dbErr(err, "open loyalty account")
	}
	return r.get(ctx, sqlGetAccountLocked, customerID)
}

func (r *LoyaltyRepo) Get(ctx context.Context, customerID string) (*loyalty.Account, error) {
	return r.get(ctx, sqlGetAccount, customerID)
}

func (r *LoyaltyRepo) get(ctx context.Context, query, customerID string) (*loyalty.Account, error) {
	acc, err := scanAccount(r.s.q(ctx).QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, rowErr(err, "get loyalty account", apperr.NotFound("loyalty account for %s not found", customerID))
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (*loyalty.Account, error) {
	var (
		a    loyalty.Account
		tier string
	)
	if err := row.Scan(&a.CustomerID, &a.Points, &tier, &a.StreakDays, &a.LastOrderDate, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Tier = loyalty.Tier(tier)
	return &a, nil
}

func (r *LoyaltyRepo) Save(ctx context.Context, a *loyalty.Account) error {
	ct, err := r.s.q(ctx).Exec(ctx, sqlSaveAccount,
		a.CustomerID, a.Points, string(a.Tier), a.StreakDays, a.LastOrderDate, a.UpdatedAt)
	if err != nil {
		return dbErr(err, "save loyalty account")
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("loyalty account for %s not found", a.CustomerID)
	}
	return nil
}

func (r *LoyaltyRepo) AppendTransaction(ctx context.Context, t loyalty.Transaction) error {
	_, err := r.s.q(ctx).Exec(ctx, sqlInsertPointsTx,
		t.ID, t.CustomerID, string(t.Type), t.Points, t.Reason, t.OrderID, t.CreatedAt)
	return dbErr(err, "append loyalty transaction")
}

func (r *LoyaltyRepo) ListTransactions(ctx context.Context, customerID string) ([]loyalty.Transaction, error) {
	rows, err := r.s.q(ctx).Query(ctx, sqlListPointsTx, customerID)
	if err != nil {
		return nil, dbErr(err, "list loyalty transactions")
	}
	defer rows.Close()

	out := make([]loyalty.Transaction, 0)
	for rows.Next() {
		var (
			t   loyalty.Transaction
			typ string
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &typ, &t.Points, &t.Reason, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, dbErr(err, "scan loyalty transaction")
		}
		t.Type = loyalty.TxType(typ)
		out = append(out, t)
	}
	return out, dbErr(rows.Err(), "list loyalty transactions")
}

func (r *LoyaltyRepo) Leaderboard(ctx context.Context, limit int) ([]loyalty.Account, error) {
	rows, err := r.s.q(ctx).Query(ctx, sqlLeaderboard, limit)
	if err != nil {
		return nil, dbErr(err, "leaderboard")
	}
	defer rows.Close()

	out := make([]loyalty.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, dbErr(err, "scan loyalty account")
		}
		out = append(out, *a)
	}
	return out, dbErr(rows.Err(), "leaderboard")
}
