package kafka_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/events"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/event"
	"github.com/bibbank/bib/services/deposit-service/internal/infrastructure/kafka"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, topic string, messages ...pkgkafka.Message) error
	topics      []string
	messages    []pkgkafka.Message
}

func (m *mockProducer) Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error {
	if m.publishFunc != nil {
		if err := m.publishFunc(ctx, topic, messages...); err != nil {
			return err
		}
	}
	m.topics = append(m.topics, topic)
	m.messages = append(m.messages, messages...)
	return nil
}

// memoryOutbox is an in-memory Outbox; entries leave only when publish succeeds.
type memoryOutbox struct {
	mu      sync.Mutex
	pending []events.OutboxEntry
}

func (o *memoryOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

func (o *memoryOutbox) Drain(ctx context.Context, limit int, publish func(context.Context, []events.OutboxEntry) error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := min(limit, len(o.pending))
	if n == 0 {
		return 0, nil
	}
	if err := publish(ctx, o.pending[:n]); err != nil {
		return 0, err
	}
	o.pending = o.pending[n:]
	return n, nil
}

func entries(t *testing.T, n int) []events.OutboxEntry {
	t.Helper()
	out := make([]events.OutboxEntry, 0, n)
	for range n {
		e, err := events.NewOutboxEntry(event.NewInterestPosted(testutil.TestAccountID, testutil.TestTenantID,
			testutil.Dec("41.10"), "USD", testutil.Date(2025, 1, 31)))
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func newRelay(outbox kafka.Outbox, producer kafka.Producer) *kafka.OutboxRelay {
	return kafka.NewOutboxRelay(outbox, producer, kafka.RelayOptions{
		Topic:     "deposit.events",
		BatchSize: 2,
		Interval:  10 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOutboxRelay_Flush(t *testing.T) {
	t.Run("drains every batch", func(t *testing.T) {
		outbox := &memoryOutbox{pending: entries(t, 5)}
		producer := &mockProducer{}

		n, err := newRelay(outbox, producer).Flush(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 5, n)
		assert.Empty(t, outbox.pending)
		require.Len(t, producer.messages, 5)
		assert.Equal(t, []string{"deposit.events", "deposit.events", "deposit.events"}, producer.topics)

		msg := producer.messages[0]
		assert.Equal(t, testutil.TestAccountID, string(msg.Key))
		assert.Equal(t, "deposit.interest.posted", msg.Headers["event_type"])
		assert.Equal(t, "DepositAccount", msg.Headers["aggregate_type"])
		assert.Equal(t, testutil.TestTenantID, msg.Headers["tenant_id"])
	})

	t.Run("keeps entries when the broker fails", func(t *testing.T) {
		outbox := &memoryOutbox{pending: entries(t, 3)}
		producer := &mockProducer{
			publishFunc: func(context.Context, string, ...pkgkafka.Message) error { return errors.New("broker down") },
		}

		_, err := newRelay(outbox, producer).Flush(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deposit.events")
		assert.Len(t, outbox.pending, 3)
	})
}

func TestOutboxRelay_Run(t *testing.T) {
	outbox := &memoryOutbox{pending: entries(t, 1)}
	producer := &mockProducer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- newRelay(outbox, producer).Run(ctx) }()

	require.Eventually(t, func() bool { return outbox.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
