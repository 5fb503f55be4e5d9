package loyalty

import (
	"context"
	"time"
)

type Repository interface {
	// GetOrCreateForUpdate returns the customer's account, opening it at now if
	// none exists, locked for the rest of the surrounding transaction.
	GetOrCreateForUpdate(ctx context.Context, customerID string, now time.Time) (*Account, error)
	Get(ctx context.Context, customerID string) (*Account, error)
	Save(ctx context.Context, a *Account) error
	AppendTransaction(ctx context.Context, t Transaction) error
	// ListTransactions returns newest first.
	ListTransactions(ctx context.Context, customerID string) ([]Transaction, error)
	// Leaderboard orders by points descending, then account creation order.
	Leaderboard(ctx context.Context, limit int) ([]Account, error)
}
