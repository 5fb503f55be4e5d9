package stock

import (
	"context"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/txn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultEntryLimit = 50

func errInvalid(msg string) error { return apperr.Validation("%s", msg) }

// Ledger owns per-item stock levels. Manual adjustments clamp at zero;
// reservations made for orders fail instead.
type Ledger struct {
	repo     Repository
	tx       txn.Manager
	log      *zap.Logger
	notifier Notifier
	now      func() time.Time
}

type Option func(*Ledger)

func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func NewLedger(repo Repository, tx txn.Manager, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{repo: repo, tx: tx, log: logger.OrNop(log).Named("stock"), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// ApplyDelta applies a signed change. The new level is max(0, current+delta).
func (l *Ledger) ApplyDelta(ctx context.Context, adj Adjustment) (AdjustmentResult, error) {
	if adj.CoffeeID == "" {
		return AdjustmentResult{}, apperr.Validation("coffee id is required")
	}
	if adj.Reason == "" {
		adj.Reason = ReasonManual
	}

	var res AdjustmentResult
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := l.repo.GetForUpdate(ctx, adj.CoffeeID)
		if err != nil {
			return err
		}
		oldQty, newQty := rec.apply(adj.Delta)
		entry, err := l.record(ctx, rec, adj.CafeID, adj.Delta, adj.Reason, adj.Actor)
		if err != nil {
			return err
		}
		res = AdjustmentResult{
			CoffeeID:    rec.CoffeeID,
			Name:        rec.Name,
			OldQuantity: oldQty,
			NewQuantity: newQty,
			Delta:       adj.Delta,
			Available:   rec.Available,
			Entry:       entry,
		}
		return nil
	})
	if err != nil {
		return AdjustmentResult{}, err
	}

	l.log.Info("stock adjusted",
		zap.String("coffee_id", res.CoffeeID),
		zap.Int("delta", res.Delta),
		zap.Int("new_quantity", res.NewQuantity),
		zap.Bool("available", res.Available))
	if l.notifier != nil {
		l.notifier.StockAdjusted(ctx, res)
	}
	return res, nil
}

// Reserve takes qty units for an order. It fails with InsufficientStock when
// qty exceeds the current level and leaves the level untouched.
func (l *Ledger) Reserve(ctx context.Context, coffeeID string, qty int, orderID string) error {
	if qty <= 0 {
		return apperr.Validation("quantity for %s must be positive", coffeeID)
	}
	return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := l.repo.GetForUpdate(ctx, coffeeID)
		if err != nil {
			return err
		}
		if qty > rec.Quantity {
			return apperr.New(apperr.KindInsufficientStock,
				"insufficient stock for %s: required %d, available %d", rec.Name, qty, rec.Quantity)
		}
		rec.apply(-qty)
		_, err = l.record(ctx, rec, "", -qty, ReasonSale, orderActor(orderID))
		return err
	})
}

// Release returns qty units previously reserved for an order.
func (l *Ledger) Release(ctx context.Context, coffeeID string, qty int, orderID string) error {
	if qty <= 0 {
		return apperr.Validation("quantity for %s must be positive", coffeeID)
	}
	return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := l.repo.GetForUpdate(ctx, coffeeID)
		if err != nil {
			return err
		}
		rec.apply(qty)
		_, err = l.record(ctx, rec, "", qty, ReasonCancelled, orderActor(orderID))
		return err
	})
}

func (l *Ledger) Get(ctx context.Context, coffeeID string) (*Record, error) {
	return l.repo.Get(ctx, coffeeID)
}

// Entries lists audit rows, newest first.
func (l *Ledger) Entries(ctx context.Context, f EntryFilter) ([]UpdateEntry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultEntryLimit
	}
	return l.repo.ListEntries(ctx, f)
}

func (l *Ledger) record(ctx context.Context, rec *Record, cafeID string, delta int, reason, actor string) (UpdateEntry, error) {
	now := l.now().UTC()
	rec.UpdatedAt = now
	if err := l.repo.Save(ctx, rec); err != nil {
		return UpdateEntry{}, err
	}
	entry := UpdateEntry{
		ID:        uuid.NewString(),
		CoffeeID:  rec.CoffeeID,
		CafeID:    cafeID,
		Delta:     delta,
		NewLevel:  rec.Quantity,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: now,
	}
	if err := l.repo.AppendEntry(ctx, entry); err != nil {
		return UpdateEntry{}, err
	}
	return entry, nil
}

func orderActor(orderID string) string {
	if orderID == "" {
		return ""
	}
	return "order:" + orderID
}
