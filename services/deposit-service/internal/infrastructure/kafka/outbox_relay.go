package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/bib/pkg/events"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
)

// Producer is the part of pkg/kafka.Producer the relay uses.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// Outbox hands out unpublished entries and marks them published when publish succeeds.
type Outbox interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, []events.OutboxEntry) error) (int, error)
}

// RelayOptions tune the polling loop.
type RelayOptions struct {
	Topic     string
	BatchSize int
	Interval  time.Duration
}

// OutboxRelay forwards outbox entries to Kafka, keyed by aggregate so an account's
// events stay ordered within a partition.
type OutboxRelay struct {
	outbox    Outbox
	producer  Producer
	opts      RelayOptions
	logger    *slog.Logger
	published metric.Int64Counter
}

// NewOutboxRelay wires dependencies.
func NewOutboxRelay(outbox Outbox, producer Producer, opts RelayOptions, logger *slog.Logger) *OutboxRelay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	counter, err := otel.Meter("github.com/bibbank/bib/services/deposit-service/kafka").
		Int64Counter("deposit.outbox.published", metric.WithDescription("Outbox entries relayed to Kafka"))
	if err != nil {
		logger.Warn("outbox counter unavailable", "error", err)
	}
	return &OutboxRelay{outbox: outbox, producer: producer, opts: opts, logger: logger, published: counter}
}

// Run polls the outbox until ctx is cancelled. Publish failures are logged and retried
// on the next tick.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", "topic", r.opts.Topic, "interval", r.opts.Interval)
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush relays batches until the outbox is empty and returns how many entries it sent.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.outbox.Drain(ctx, r.opts.BatchSize, r.publish)
		total += n
		if err != nil {
			return total, err
		}
		if n < r.opts.BatchSize {
			return total, nil
		}
	}
}

func (r *OutboxRelay) publish(ctx context.Context, entries []events.OutboxEntry) error {
	messages := make([]pkgkafka.Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, pkgkafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				"event_id":       e.ID,
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
				"tenant_id":      e.TenantID,
				"occurred_at":    e.CreatedAt.Format(time.RFC3339Nano),
			},
		})
	}
	if err := r.producer.Publish(ctx, r.opts.Topic, messages...); err != nil {
		return fmt.Errorf("failed to publish outbox to topic %s: %w", r.opts.Topic, err)
	}
	if r.published != nil {
		r.published.Add(ctx, int64(len(messages)))
	}
	r.logger.DebugContext(ctx, "relayed outbox entries", "count", len(messages), "topic", r.opts.Topic)
	return nil
}
