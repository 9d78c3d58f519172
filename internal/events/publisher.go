package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
	_ Publisher = (*MockEventPublisher)(nil)
)

// EventType represents the type of domain event.
type EventType string

const (
	EventTypeOrderCreated         EventType = "order.created"
	EventTypeOrderStatusChanged   EventType = "order.status_changed"
	EventTypePaymentStatusChanged EventType = "payment.status_changed"
)

// Publisher emits order and payment lifecycle events. Callers treat
// failures as non-fatal.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	PublishPaymentStatusChanged(ctx context.Context, payment *models.Payment, previous models.PaymentStatus) error
	Close() error
}

// Event is the envelope written to Kafka.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to Kafka, keyed by order ID.
type KafkaPublisher struct {
	writer        messageWriter
	ordersTopic   string
	paymentsTopic string
	logger        *logging.LoggerV2
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg, logger)
}

func newKafkaPublisher(w messageWriter, cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	return &KafkaPublisher{
		writer:        w,
		ordersTopic:   cfg.OrdersTopic,
		paymentsTopic: cfg.PaymentsTopic,
		logger:        logger,
	}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.ordersTopic, newEvent(ctx, EventTypeOrderCreated, order.ID, data))
}

func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	p.logger.Debug("Publishing order status changed event", logging.Fields{
		"order_id":        order.ID,
		"previous_status": previous,
		"new_status":      order.Status,
	})

	data, err := json.Marshal(struct {
		UserID         string             `json:"user_id"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
		NewStatus      models.OrderStatus `json:"new_status"`
	}{order.UserID, previous, order.Status})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.ordersTopic, newEvent(ctx, EventTypeOrderStatusChanged, order.ID, data))
}

func (p *KafkaPublisher) PublishPaymentStatusChanged(ctx context.Context, payment *models.Payment, previous models.PaymentStatus) error {
	data, err := json.Marshal(struct {
		PaymentID      string               `json:"payment_id"`
		Amount         string               `json:"amount"`
		PreviousStatus models.PaymentStatus `json:"previous_status,omitempty"`
		NewStatus      models.PaymentStatus `json:"new_status"`
	}{payment.GatewayPaymentID, payment.Amount.StringFixed(2), previous, payment.Status})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.paymentsTopic, newEvent(ctx, EventTypePaymentStatusChanged, payment.OrderID, data))
}

func newEvent(ctx context.Context, eventType EventType, orderID string, data []byte) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       orderID,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		CorrelationID: logging.RequestIDFrom(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, event *Event) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
	})
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NopPublisher drops every event. Used when order events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *models.Order) error { return nil }
func (NopPublisher) PublishOrderStatusChanged(context.Context, *models.Order, models.OrderStatus) error {
	return nil
}
func (NopPublisher) PublishPaymentStatusChanged(context.Context, *models.Payment, models.PaymentStatus) error {
	return nil
}
func (NopPublisher) Close() error { return nil }

// MockEventPublisher records events in memory for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []*Event
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{Events: make([]*Event, 0)}
}

func (m *MockEventPublisher) record(eventType EventType, orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, &Event{Type: eventType, OrderID: orderID})
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.record(EventTypeOrderCreated, order.ID)
	return nil
}

func (m *MockEventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	m.record(EventTypeOrderStatusChanged, order.ID)
	return nil
}

func (m *MockEventPublisher) PublishPaymentStatusChanged(ctx context.Context, payment *models.Payment, previous models.PaymentStatus) error {
	m.record(EventTypePaymentStatusChanged, payment.OrderID)
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

// Count returns how many events of the given type were recorded.
func (m *MockEventPublisher) Count(eventType EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
