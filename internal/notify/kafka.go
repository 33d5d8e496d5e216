package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes messages as JSON keyed by kind.
type KafkaNotifier struct {
	writer  MessageWriter
	logger  *slog.Logger
	timeout time.Duration
}

// NewKafkaWriter returns an async writer: WriteMessages only enqueues, and
// delivery failures are reported to logger from the completion callback.
func NewKafkaWriter(topic string, logger *slog.Logger, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver notifications",
					"error", err, "topic", topic, "count", len(msgs))
			}
		},
	}
}

func NewKafkaNotifier(writer MessageWriter, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  writer,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, msg Message) {
	km, err := encode(msg)
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to encode notification", "error", err)
		return
	}

	// The caller's request may finish before the broker answers.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, km); err != nil {
		k.logger.ErrorContext(ctx, "failed to publish notification",
			"error", err, "message_id", msg.ID, "kind", string(msg.Kind))
	}
}

func (k *KafkaNotifier) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

func encode(msg Message) (kafka.Message, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal notification: %w", err)
	}
	return kafka.Message{
		Key:   []byte(msg.Kind),
		Value: payload,
		Time:  msg.CreatedAt,
	}, nil
}
