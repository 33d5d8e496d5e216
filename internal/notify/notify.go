package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindStockExceeded Kind = "stock-exceeded"
	KindAddFailed     Kind = "add-failed"
	KindRemoveFailed  Kind = "remove-failed"
	KindUpdateFailed  Kind = "update-failed"
)

var texts = map[Kind]string{
	KindStockExceeded: "requested quantity out of stock",
	KindAddFailed:     "error adding product",
	KindRemoveFailed:  "error removing product",
	KindUpdateFailed:  "error changing product quantity",
}

// Text returns the user-facing message for a kind.
func (k Kind) Text() string {
	return texts[k]
}

type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(kind Kind, productID int64) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      kind.Text(),
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier is a fire-and-forget sink for user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) {
	n.logger.WarnContext(ctx, msg.Text,
		"message_id", msg.ID,
		"kind", string(msg.Kind),
		"product_id", msg.ProductID,
	)
}

// Multi delivers every message to each notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) {
	for _, n := range m {
		n.Notify(ctx, msg)
	}
}
