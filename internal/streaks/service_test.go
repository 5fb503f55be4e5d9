package streaks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-coffee-orders/internal/apperr"
	"github.com/ariefcatur/go-coffee-orders/internal/directory"
	kafkax "github.com/ariefcatur/go-coffee-orders/internal/kafka"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/memory"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var day0 = time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)

func message(eventID, eventType, customerID string, at time.Time) kafkago.Message {
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   at,
		Payload:      kafkax.MustMarshal(orders.OrderCreatedPayload{OrderID: "o-" + eventID, CustomerID: customerID, CreatedAt: at}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newService(t *testing.T) (*Service, *loyalty.Service) {
	t.Helper()
	st := memory.NewStore()
	st.AddCustomer(directory.Customer{ID: "alice"})
	svc := loyalty.NewService(st.Loyalty(), st, st, nil)
	mr := miniredis.RunT(t)
	rdb := redisx.New(redisx.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Loyalty: svc, Dedup: redisx.NewDedup(rdb, "loyalty-worker"), Log: zaptest.NewLogger(t)}, svc
}

func streak(t *testing.T, svc *loyalty.Service) int {
	t.Helper()
	sum, err := svc.Balance(context.Background(), "alice")
	require.NoError(t, err)
	return sum.Account.StreakDays
}

func TestHandleOrderCreated(t *testing.T) {
	h, svc := newService(t)
	ctx := context.Background()

	require.NoError(t, h.HandleOrderCreated(ctx, message("ev-1", orders.EventOrderCreated, "alice", day0)))
	require.NoError(t, h.HandleOrderCreated(ctx, message("ev-2", orders.EventOrderCreated, "alice", day0.AddDate(0, 0, 1))))
	assert.Equal(t, 2, streak(t, svc))
}

func TestDuplicateEventIsIgnored(t *testing.T) {
	h, svc := newService(t)
	ctx := context.Background()

	require.NoError(t, h.HandleOrderCreated(ctx, message("ev-1", orders.EventOrderCreated, "alice", day0)))
	require.NoError(t, h.HandleOrderCreated(ctx, message("ev-2", orders.EventOrderCreated, "alice", day0.AddDate(0, 0, 1))))
	require.NoError(t, h.HandleOrderCreated(ctx, message("ev-2", orders.EventOrderCreated, "alice", day0.AddDate(0, 0, 1))))
	assert.Equal(t, 2, streak(t, svc))
}

func TestIgnoredMessages(t *testing.T) {
	h, svc := newService(t)
	ctx := context.Background()

	assert.NoError(t, h.HandleOrderCreated(ctx, kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, h.HandleOrderCreated(ctx, message("ev-1", orders.EventOrderStatusChanged, "alice", day0)))
	assert.NoError(t, h.HandleOrderCreated(ctx, message("ev-2", orders.EventOrderCreated, "ghost", day0)))
	assert.Equal(t, 0, streak(t, svc))
}

type failingUpdater struct{ calls int }

func (f *failingUpdater) UpdateStreak(context.Context, string, time.Time) (loyalty.Account, error) {
	f.calls++
	return loyalty.Account{}, apperr.Internal(errors.New("db down"), "update streak")
}

func TestTransientFailureIsRetried(t *testing.T) {
	h, _ := newService(t)
	up := &failingUpdater{}
	h.Loyalty = up
	ctx := context.Background()
	msg := message("ev-1", orders.EventOrderCreated, "alice", day0)

	assert.Error(t, h.HandleOrderCreated(ctx, msg))
	assert.Error(t, h.HandleOrderCreated(ctx, msg), "dedup mark is cleared so the retry runs")
	assert.Equal(t, 2, up.calls)
}
