package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type mockWriter struct {
	msgs   []kafkaGo.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaNotifier_PublishesJSON(t *testing.T) {
	w := &mockWriter{}
	n := NewKafkaNotifier(w, discardLogger())
	msg := NewMessage(KindAddFailed, 11)

	n.Notify(context.Background(), msg)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("add-failed"), w.msgs[0].Key)

	var decoded Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, "error adding product", decoded.Text)
	assert.Equal(t, int64(11), decoded.ProductID)
}

func TestNewKafkaWriter_DeliveryFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	w := NewKafkaWriter("cart-notifications", logger, "127.0.0.1:1")
	require.True(t, w.Async, "publishing must not wait on the broker")
	require.NotNil(t, w.Completion)

	w.Completion([]kafkaGo.Message{{}, {}}, nil)
	assert.Zero(t, buf.Len())

	w.Completion([]kafkaGo.Message{{}, {}}, errors.New("broker down"))
	assert.Contains(t, buf.String(), "failed to deliver notifications")
	assert.Contains(t, buf.String(), "broker down")
	assert.Contains(t, buf.String(), `"count":2`)
}

func TestKafkaNotifier_WriteErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	w := &mockWriter{err: errors.New("broker down")}
	n := NewKafkaNotifier(w, slog.New(slog.NewTextHandler(&buf, nil)))

	n.Notify(context.Background(), NewMessage(KindUpdateFailed, 1))

	assert.Contains(t, buf.String(), "failed to publish notification")
	assert.Contains(t, buf.String(), "broker down")
}

func TestKafkaNotifier_Close(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewKafkaNotifier(w, discardLogger()).Close())
	assert.True(t, w.closed)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestKafkaNotifier_Integration(t *testing.T) {
	broker, cleanup := setupKafka(t)
	defer cleanup()

	topic := "cart-notifications"
	createTopic(t, broker, topic)

	writer := NewKafkaWriter(topic, discardLogger(), broker)
	n := NewKafkaNotifier(writer, discardLogger())
	defer n.Close()

	msg := NewMessage(KindStockExceeded, 42)
	n.Notify(context.Background(), msg)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(got.Value, &decoded))
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, KindStockExceeded, decoded.Kind)
}
