package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type fakeReader struct {
	messages []kafka.Message
	errs     []error
	cancel   context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

type recordingHandler struct {
	received []string
}

func (h *recordingHandler) HandleNotification(ctx context.Context, n *models.GatewayNotification) {
	h.received = append(h.received, n.PaymentID)
}

func TestNotificationConsumer_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		errs:   []error{fmt.Errorf("transient")},
		messages: []kafka.Message{
			{Value: []byte(`{"PaymentId":"pay-1","ChangeType":1}`)},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"ChangeType":1}`)},
			{Value: []byte(`{"PaymentId":"pay-2","ChangeType":2}`)},
			{Value: []byte(`{"PaymentId":"pay-3","ChangeType":"2"}`)},
		},
	}
	handler := &recordingHandler{}
	consumer := &NotificationConsumer{reader: reader, handler: handler, logger: logging.NewNopLogger()}

	err := consumer.Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"pay-1", "pay-2", "pay-3"}, handler.received)
}
