package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// NotificationHandler reconciles a gateway notification. It never fails.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n *models.GatewayNotification)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NotificationConsumer replays gateway notifications relayed onto Kafka
// through the same reconciliation path as the webhook.
type NotificationConsumer struct {
	reader  messageReader
	handler NotificationHandler
	logger  *logging.LoggerV2
}

// NewNotificationConsumer creates a consumer-group reader on the notifications topic.
func NewNotificationConsumer(cfg config.KafkaConfig, handler NotificationHandler, logger *logging.LoggerV2) *NotificationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.NotificationsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return &NotificationConsumer{reader: reader, handler: handler, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting notification consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

// Close releases the reader.
func (c *NotificationConsumer) Close() error {
	return c.reader.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var n models.GatewayNotification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		c.logger.Error("Failed to unmarshal notification", logging.Fields{"error": err.Error()})
		return
	}
	if n.PaymentID == "" {
		c.logger.Warn("Dropping notification without payment id", logging.Fields{"offset": msg.Offset})
		return
	}

	c.handler.HandleNotification(ctx, &n)
}
