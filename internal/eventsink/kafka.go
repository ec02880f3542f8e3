// Package eventsink forwards lifecycle events from the in-process bus to Kafka.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/credit-marketplace/internal/core/events"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type keyed interface {
	Key() string
}

type KafkaForwarder struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

func NewKafkaForwarder(brokers []string, topic string, timeout time.Duration, logger *slog.Logger) *KafkaForwarder {
	return newKafkaForwarder(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}, timeout, logger)
}

func newKafkaForwarder(w messageWriter, timeout time.Duration, logger *slog.Logger) *KafkaForwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaForwarder{writer: w, timeout: timeout, logger: logger}
}

// Register subscribes the forwarder to every lifecycle event.
func (f *KafkaForwarder) Register(bus *events.EventBus) {
	for _, t := range events.LifecycleEventTypes {
		bus.Subscribe(t, f.Handle)
	}
}

// Handle is an events.Handler.
func (f *KafkaForwarder) Handle(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	key := event.EventID()
	if k, ok := event.(keyed); ok && k.Key() != "" {
		key = k.Key()
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	})
	if err != nil {
		return fmt.Errorf("write event %s to kafka: %w", event.EventID(), err)
	}

	f.logger.Debug("event forwarded to kafka", "event_type", event.EventType(), "event_id", event.EventID())
	return nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
