package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w *fakeWriter) *KafkaPublisher {
	return newKafkaPublisher(w, config.KafkaConfig{
		OrdersTopic:   "orders",
		PaymentsTopic: "payments",
	}, logging.NewNopLogger())
}

func TestKafkaPublisher_OrderStatusChanged(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)

	ctx := logging.WithRequestID(context.Background(), "req-1")
	order := &models.Order{ID: "order-1", UserID: "user-1", Status: models.OrderStatusPaid}
	require.NoError(t, p.PublishOrderStatusChanged(ctx, order, models.OrderStatusPaymentPending))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, []byte("order-1"), msg.Key)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeOrderStatusChanged, event.Type)
	assert.Equal(t, "req-1", event.CorrelationID)
	assert.NotEmpty(t, event.ID)

	var data map[string]string
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "payment_pending", data["previous_status"])
	assert.Equal(t, "paid", data["new_status"])
}

func TestKafkaPublisher_PaymentStatusChanged(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)

	payment := &models.Payment{
		GatewayPaymentID: "pay-1",
		OrderID:          "order-1",
		Amount:           decimal.RequireFromString("2999.99"),
		Status:           models.PaymentStatusPaid,
	}
	require.NoError(t, p.PublishPaymentStatusChanged(context.Background(), payment, models.PaymentStatusAuthorized))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "payments", w.messages[0].Topic)
	assert.Equal(t, []byte("order-1"), w.messages[0].Key)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: fmt.Errorf("broker down")}
	p := newTestPublisher(w)

	err := p.PublishOrderCreated(context.Background(), &models.Order{ID: "order-1"})
	assert.Error(t, err)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestMockEventPublisher_Count(t *testing.T) {
	m := NewMockEventPublisher()
	ctx := context.Background()
	order := &models.Order{ID: "order-1"}

	_ = m.PublishOrderCreated(ctx, order)
	_ = m.PublishOrderStatusChanged(ctx, order, models.OrderStatusPending)
	_ = m.PublishOrderStatusChanged(ctx, order, models.OrderStatusPaymentPending)

	assert.Equal(t, 1, m.Count(EventTypeOrderCreated))
	assert.Equal(t, 2, m.Count(EventTypeOrderStatusChanged))
	assert.Equal(t, 0, m.Count(EventTypePaymentStatusChanged))
}
