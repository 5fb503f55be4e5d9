// Package streaks consumes order events and advances customers' order streaks.
package streaks

import (
	"context"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-coffee-orders/internal/kafka"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type StreakUpdater interface {
	UpdateStreak(ctx context.Context, customerID string, asOf time.Time) (loyalty.Account, error)
}

// Deduper marks event ids as processed. First reports true only once per id.
type Deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Loyalty StreakUpdater
	Dedup   Deduper
	Log     *zap.Logger
}

// HandleOrderCreated is installed as the consumer handler. Malformed and
// unrelated messages are acknowledged; transient failures are retried.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	log := logger.OrNop(s.Log)

	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Warn("skipping malformed envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		log.Warn("skipping malformed payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		first, err := s.Dedup.First(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			log.Debug("duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	asOf := p.CreatedAt
	if asOf.IsZero() {
		asOf = env.OccurredAt
	}
	acc, err := s.Loyalty.UpdateStreak(ctx, p.CustomerID, asOf)
	if err != nil {
		if apperr.Is(err, apperr.KindInternal) {
			if s.Dedup != nil && env.EventID != "" {
				_ = s.Dedup.Forget(ctx, env.EventID)
			}
			return err
		}
		log.Warn("streak not updated", zap.String("order_id", p.OrderID), zap.String("customer_id", p.CustomerID), zap.Error(err))
		return nil
	}
	log.Info("streak updated",
		zap.String("order_id", p.OrderID),
		zap.String("customer_id", p.CustomerID),
		zap.Int("streak_days", acc.StreakDays))
	return nil
}
