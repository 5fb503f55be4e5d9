package stock

import "context"

// Repository persists stock records and their audit trail. GetForUpdate must
// lock the record for the rest of the surrounding transaction.
type Repository interface {
	Get(ctx context.Context, coffeeID string) (*Record, error)
	GetForUpdate(ctx context.Context, coffeeID string) (*Record, error)
	Save(ctx context.Context, r *Record) error
	AppendEntry(ctx context.Context, e UpdateEntry) error
	ListEntries(ctx context.Context, f EntryFilter) ([]UpdateEntry, error)
}

// Notifier is told about committed manual adjustments.
type Notifier interface {
	StockAdjusted(ctx context.Context, res AdjustmentResult)
}
