package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config configures the audit producer.
type Config struct {
	// Brokers is the Kafka broker list. Empty disables auditing.
	Brokers []string `env:"AUTH0_KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"AUTH0_KAFKA_TOPIC" envDefault:"yubiapp.audit"`
}

// Producer writes audit events to a Kafka topic. A nil *Producer is valid and
// drops everything, so callers never branch on whether auditing is enabled.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewProducer builds a producer, or returns nil when no brokers are
// configured.
func NewProducer(cfg Config, log *slog.Logger) *Producer {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Error("audit publish failed", slog.Int("count", len(messages)), slog.Any("error", err))
				}
			},
		},
		log: log,
	}
}

// Publish enqueues an event, keyed by user id so one user's events stay
// ordered within a partition.
func (p *Producer) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("audit marshal failed", slog.String("type", ev.Type), slog.Any("error", err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.UserID),
		Value: data,
		Time:  ev.Time,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("audit publish failed", slog.String("type", ev.Type), slog.Any("error", err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close audit producer: %w", err)
	}
	return nil
}
