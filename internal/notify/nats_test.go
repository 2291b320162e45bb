package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNATSPublisher runs against a live server when NATS_URL is set.
func TestNATSPublisher(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub, err := Connect(url, logger)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe(SubjectInvoiceStatusChanged, msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	err = pub.InvoiceStatusChanged(context.Background(), InvoiceStatusChanged{
		RecordID:        "rec_1",
		StripeInvoiceID: "in_1",
		Status:          "paid",
		EventType:       "invoice.paid",
	})
	require.NoError(t, err)

	select {
	case m := <-msgs:
		var got InvoiceStatusChanged
		require.NoError(t, json.Unmarshal(m.Data, &got))
		assert.Equal(t, "in_1", got.StripeInvoiceID)
		assert.Equal(t, "paid", got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	require.NoError(t, r.InvoiceSent(ctx, InvoiceSent{StripeInvoiceID: "in_1"}))
	require.NoError(t, r.InvoiceStatusChanged(ctx, InvoiceStatusChanged{StripeInvoiceID: "in_1"}))

	sent, changed := r.Snapshot()
	assert.Len(t, sent, 1)
	assert.Len(t, changed, 1)

	r.Err = assert.AnError
	assert.ErrorIs(t, r.InvoiceSent(ctx, InvoiceSent{}), assert.AnError)
}
