package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mu      sync.Mutex
	pending []kafka.Message
	commits []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		m := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.commits))
	for _, m := range f.commits {
		out = append(out, m.Offset)
	}
	return out
}

func newTestConsumer(t *testing.T, r reader, workers int) *Consumer {
	return &Consumer{r: r, workers: workers, backoff: time.Millisecond, maxBackoff: 5 * time.Millisecond, log: zaptest.NewLogger(t)}
}

func run(t *testing.T, c *Consumer, h Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop")
		}
	})
	return cancel
}

func TestFailedMessageIsRetriedBeforeLaterOffsetsCommit(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "t", Partition: 0, Offset: 5},
		{Topic: "t", Partition: 0, Offset: 6},
	}}
	var mu sync.Mutex
	calls := map[int64]int{}
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[m.Offset]++
		if m.Offset == 5 && calls[5] == 1 {
			return errors.New("database unavailable")
		}
		return nil
	}
	run(t, newTestConsumer(t, r, 4), h)

	require.Eventually(t, func() bool { return len(r.committed()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{5, 6}, r.committed())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls[5])
	assert.Equal(t, 1, calls[6])
}

func TestStuckPartitionDoesNotBlockOthers(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "t", Partition: 0, Offset: 1},
		{Topic: "t", Partition: 0, Offset: 2},
		{Topic: "t", Partition: 1, Offset: 10},
	}}
	h := func(_ context.Context, m kafka.Message) error {
		if m.Partition == 0 {
			return errors.New("still failing")
		}
		return nil
	}
	cancel := run(t, newTestConsumer(t, r, 2), h)

	require.Eventually(t, func() bool { return len(r.committed()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.Equal(t, []int64{10}, r.committed(), "partition 0 offsets stay uncommitted")
}
