package loyalty

import (
	"context"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/txn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLeaderboardLimit = 10

type Service struct {
	repo      Repository
	tx        txn.Manager
	customers directory.Customers
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds the loyalty service. customers may be nil, in which case
// customer ids are not checked.
func NewService(repo Repository, tx txn.Manager, customers directory.Customers, log *zap.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, tx: tx, customers: customers, log: logger.OrNop(log).Named("loyalty"), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Earn(ctx context.Context, customerID string, points int, reason, orderID string) (Result, error) {
	if points <= 0 {
		return Result{}, apperr.Validation("points must be positive")
	}
	if reason == "" {
		reason = "Points earned"
	}
	return s.move(ctx, customerID, TxEarned, points, reason, orderID)
}

// Redeem spends points. It fails with InsufficientPoints when points exceed the balance.
func (s *Service) Redeem(ctx context.Context, customerID string, points int, reason, orderID string) (Result, error) {
	if points <= 0 {
		return Result{}, apperr.Validation("points must be positive")
	}
	if reason == "" {
		reason = "Points redeemed"
	}
	return s.move(ctx, customerID, TxRedeemed, -points, reason, orderID)
}

// Reverse takes back up to points previously earned. The amount is capped at the
// current balance; a zero effective reversal records no transaction.
func (s *Service) Reverse(ctx context.Context, customerID string, points int, reason, orderID string) (Result, error) {
	if points <= 0 {
		return Result{}, apperr.Validation("points must be positive")
	}
	var res Result
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetOrCreateForUpdate(ctx, customerID, s.now().UTC())
		if err != nil {
			return err
		}
		if acc.Points < points {
			points = acc.Points
		}
		if points == 0 {
			res = Result{Account: *acc}
			return nil
		}
		res, err = s.apply(ctx, acc, TxReversed, -points, reason, orderID)
		return err
	})
	return res, err
}

func (s *Service) move(ctx context.Context, customerID string, typ TxType, delta int, reason, orderID string) (Result, error) {
	if err := s.checkCustomer(ctx, customerID); err != nil {
		return Result{}, err
	}
	var res Result
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetOrCreateForUpdate(ctx, customerID, s.now().UTC())
		if err != nil {
			return err
		}
		if delta < 0 && -delta > acc.Points {
			return apperr.New(apperr.KindInsufficientPoints,
				"insufficient points: requested %d, balance %d", -delta, acc.Points)
		}
		res, err = s.apply(ctx, acc, typ, delta, reason, orderID)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	s.log.Info("points moved",
		zap.String("customer_id", customerID),
		zap.String("type", string(typ)),
		zap.Int("points", delta),
		zap.Int("balance", res.Account.Points))
	return res, nil
}

func (s *Service) apply(ctx context.Context, acc *Account, typ TxType, delta int, reason, orderID string) (Result, error) {
	now := s.now().UTC()
	acc.add(delta, now)
	if err := s.repo.Save(ctx, acc); err != nil {
		return Result{}, err
	}
	t := Transaction{
		ID:         uuid.NewString(),
		CustomerID: acc.CustomerID,
		Type:       typ,
		Points:     delta,
		Reason:     reason,
		OrderID:    orderID,
		CreatedAt:  now,
	}
	if err := s.repo.AppendTransaction(ctx, t); err != nil {
		return Result{}, err
	}
	return Result{Account: *acc, Transaction: &t}, nil
}

// UpdateStreak records an order on asOf's calendar day (UTC).
func (s *Service) UpdateStreak(ctx context.Context, customerID string, asOf time.Time) (Account, error) {
	if err := s.checkCustomer(ctx, customerID); err != nil {
		return Account{}, err
	}
	var out Account
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetOrCreateForUpdate(ctx, customerID, s.now().UTC())
		if err != nil {
			return err
		}
		acc.updateStreak(asOf)
		acc.UpdatedAt = s.now().UTC()
		if err := s.repo.Save(ctx, acc); err != nil {
			return err
		}
		out = *acc
		return nil
	})
	return out, err
}

// Balance reports points, tier and distance to the next tier. Customers
// without an account yet read as an empty Bronze account.
func (s *Service) Balance(ctx context.Context, customerID string) (Summary, error) {
	if err := s.checkCustomer(ctx, customerID); err != nil {
		return Summary{}, err
	}
	acc, err := s.repo.Get(ctx, customerID)
	if apperr.Is(err, apperr.KindNotFound) {
		acc = NewAccount(customerID, s.now().UTC())
	} else if err != nil {
		return Summary{}, err
	}
	sum := Summary{Account: *acc}
	if next, missing, ok := NextTier(acc.Points); ok {
		sum.NextTier = next
		sum.PointsToNextTier = &missing
	}
	return sum, nil
}

func (s *Service) Transactions(ctx context.Context, customerID string) ([]Transaction, error) {
	if err := s.checkCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, customerID)
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	accs, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(accs))
	for i, a := range accs {
		out = append(out, LeaderboardEntry{Rank: i + 1, CustomerID: a.CustomerID, Points: a.Points, Tier: a.Tier})
	}
	return out, nil
}

func (s *Service) checkCustomer(ctx context.Context, customerID string) error {
	if customerID == "" {
		return apperr.Validation("customer id is required")
	}
	if s.customers == nil {
		return nil
	}
	_, err := s.customers.GetCustomer(ctx, customerID)
	return err
}
