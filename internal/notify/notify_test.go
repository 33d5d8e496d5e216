package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []Message
}

func (r *recorder) Notify(_ context.Context, msg Message) {
	r.got = append(r.got, msg)
}

func TestNewMessage_Texts(t *testing.T) {
	cases := map[Kind]string{
		KindStockExceeded: "requested quantity out of stock",
		KindAddFailed:     "error adding product",
		KindRemoveFailed:  "error removing product",
		KindUpdateFailed:  "error changing product quantity",
	}
	for kind, text := range cases {
		msg := NewMessage(kind, 42)
		assert.Equal(t, text, msg.Text)
		assert.Equal(t, kind, msg.Kind)
		assert.Equal(t, int64(42), msg.ProductID)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewMessage(KindAddFailed, 1)
	b := NewMessage(KindAddFailed, 1)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLogNotifier_WritesWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NewLogNotifier(logger).Notify(context.Background(), NewMessage(KindStockExceeded, 7))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "requested quantity out of stock", entry["msg"])
	assert.Equal(t, "stock-exceeded", entry["kind"])
	assert.Equal(t, float64(7), entry["product_id"])
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	msg := NewMessage(KindRemoveFailed, 3)

	Multi{a, b}.Notify(context.Background(), msg)

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	assert.Equal(t, msg, a.got[0])
	assert.Equal(t, msg, b.got[0])
}
