// Package postgres implements the order engine's repositories on PostgreSQL.
// Transactions travel in the context; GetForUpdate methods take row locks.
package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DB is satisfied by *pgxpool.Pool and by pgxmock pools.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db  DB
	log *zap.Logger
}

func NewStore(db DB, log *zap.Logger) *Store {
	return &Store{db: db, log: logger.OrNop(log).Named("postgres")}
}

type txKey struct{}

// q returns the transaction carried by ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.db
}

// WithTransaction runs fn in a database transaction. A nested call joins the
// transaction already in ctx.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return dbErr(err, "begin transaction")
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return dbErr(err, "transaction")
	}
	if err := tx.Commit(ctx); err != nil {
		return dbErr(err, "commit")
	}
	return nil
}

// dbErr keeps typed errors and maps driver errors onto the error taxonomy.
func dbErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return apperr.Conflict("%s: concurrent update, retry the request", op)
		case "23505":
			return apperr.Conflict("%s: already exists", op)
		}
	}
	return apperr.Internal(err, op)
}

// rowErr maps pgx.ErrNoRows to notFound and everything else through dbErr.
func rowErr(err error, op string, notFound *apperr.Error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return dbErr(err, op)
}
