package service

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:        {models.OrderStatusPaymentPending, models.OrderStatusCancelled},
	models.OrderStatusPaymentPending: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:           {models.OrderStatusProcessing, models.OrderStatusRefunded},
	models.OrderStatusProcessing:     {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:        {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:      {models.OrderStatusRefunded},
	models.OrderStatusCancelled:      {},
	models.OrderStatusRefunded:       {},
}

// CanTransition reports whether from -> to is in the transition table.
// Self-transitions are never allowed.
func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanReach reports whether a payment-driven transition can take an order in
// from to target, including the pending -> payment_pending walk.
func CanReach(from, target models.OrderStatus) bool {
	if from == target || CanTransition(from, target) {
		return true
	}
	return from == models.OrderStatusPending && CanTransition(models.OrderStatusPaymentPending, target)
}

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(s models.OrderStatus) []models.OrderStatus {
	out := make([]models.OrderStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// OrderStateMachine applies order status transitions.
type OrderStateMachine struct {
	orders    repository.OrderRepository
	cache     repository.OrderCache
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.LoggerV2
}

func NewOrderStateMachine(
	orders repository.OrderRepository,
	cache repository.OrderCache,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logging.LoggerV2,
) *OrderStateMachine {
	return &OrderStateMachine{
		orders:    orders,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Transition moves order to target, updating order in place on success.
// It fails with errors.ErrIllegalTransition when the move is not allowed,
// including target equal to the current status.
func (sm *OrderStateMachine) Transition(ctx context.Context, order *models.Order, target models.OrderStatus) error {
	from := order.Status
	if !CanTransition(from, target) {
		sm.metrics.OrderTransition(string(from), string(target), false)
		return errors.Newf(errors.ErrIllegalTransition, "cannot transition order from %s to %s", from, target)
	}

	if err := sm.orders.UpdateStatus(ctx, order.ID, from, target); err != nil {
		sm.metrics.OrderTransition(string(from), string(target), false)
		return err
	}
	sm.metrics.OrderTransition(string(from), string(target), true)

	order.Status = target
	order.UpdatedAt = time.Now().UTC()

	log := sm.logger.WithContext(ctx)
	log.Info("Order status changed", logging.Fields{
		"order_id":        order.ID,
		"previous_status": from,
		"new_status":      target,
	})

	if err := sm.cache.Delete(ctx, order.ID); err != nil {
		log.Warn("Failed to invalidate cached order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	if err := sm.publisher.PublishOrderStatusChanged(ctx, order, from); err != nil {
		log.Warn("Failed to publish order status changed event", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	return nil
}

// TransitionLenient drives the order toward target on behalf of a payment
// status change. Failures are logged and swallowed. A pending order is
// first moved to payment_pending when target is not directly reachable.
// It reports whether order reached target.
func (sm *OrderStateMachine) TransitionLenient(ctx context.Context, order *models.Order, target models.OrderStatus) bool {
	if order.Status == target {
		return true
	}

	if !CanTransition(order.Status, target) && CanReach(order.Status, target) {
		if !sm.tryTransition(ctx, order, models.OrderStatusPaymentPending) {
			return false
		}
	}
	return sm.tryTransition(ctx, order, target)
}

func (sm *OrderStateMachine) tryTransition(ctx context.Context, order *models.Order, target models.OrderStatus) bool {
	from := order.Status
	if err := sm.Transition(ctx, order, target); err != nil {
		sm.logger.WithContext(ctx).Warn("Skipping order transition", logging.Fields{
			"order_id":      order.ID,
			"from_status":   from,
			"target_status": target,
			"error":         err.Error(),
		})
		return false
	}
	return true
}
