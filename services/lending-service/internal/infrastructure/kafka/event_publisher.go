package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bib/pkg/events"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
)

// Producer is the part of pkg/kafka.Producer the adapters use.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// KafkaEventPublisher implements port.EventPublisher by writing events to Kafka.
type KafkaEventPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaEventPublisher creates a publisher targeting the given Kafka producer and topic.
func NewKafkaEventPublisher(producer Producer, topic string, logger *slog.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish wraps each event in an outbox envelope and sends the batch, keyed by
// aggregate so a loan's events stay ordered within a partition.
func (p *KafkaEventPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	messages := make([]pkgkafka.Message, 0, len(evts))
	for _, evt := range evts {
		entry, err := events.NewOutboxEntry(evt)
		if err != nil {
			return fmt.Errorf("build outbox entry: %w", err)
		}

		p.logger.DebugContext(ctx, "publishing domain event",
			"event_type", entry.EventType,
			"aggregate_id", entry.AggregateID,
			"tenant_id", entry.TenantID,
			"topic", p.topic,
			"payload_size", len(entry.Payload),
		)

		messages = append(messages, pkgkafka.Message{
			Key:   []byte(entry.AggregateID),
			Value: entry.Payload,
			Headers: map[string]string{
				"event_id":       entry.ID,
				"event_type":     entry.EventType,
				"aggregate_type": entry.AggregateType,
				"tenant_id":      entry.TenantID,
				"occurred_at":    entry.CreatedAt.Format(time.RFC3339Nano),
			},
		})
	}

	if len(messages) == 0 {
		return nil
	}

	if err := p.producer.Publish(ctx, p.topic, messages...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", p.topic, err)
	}
	return nil
}
