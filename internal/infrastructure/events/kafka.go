package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one message per recorded estimate, keyed by estimate id.
type Publisher struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{w: w, topic: topic, logger: logger.With(slog.String("component", "kafka-publisher"))}
}

func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: payload, Time: time.Now()}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("estimate published", "topic", p.topic, "key", key, "bytes", len(payload))
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
