package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// OrderService handles order business logic outside the payment flow.
type OrderService struct {
	orders       repository.OrderRepository
	payments     repository.PaymentRepository
	locker       repository.OrderLocker
	cache        repository.OrderCache
	stateMachine *OrderStateMachine
	publisher    events.Publisher
	logger       *logging.LoggerV2
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	locker repository.OrderLocker,
	cache repository.OrderCache,
	stateMachine *OrderStateMachine,
	publisher events.Publisher,
	logger *logging.LoggerV2,
) *OrderService {
	return &OrderService{
		orders:       orders,
		payments:     payments,
		locker:       locker,
		cache:        cache,
		stateMachine: stateMachine,
		publisher:    publisher,
		logger:       logger,
	}
}

// CreateOrder creates a pending order owned by the caller.
func (s *OrderService) CreateOrder(ctx context.Context, caller models.Caller, req *models.CreateOrderRequest) (*models.Order, error) {
	req.UserID = caller.UserID
	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}
	log := s.logger.WithContext(ctx)

	order := BuildOrder(req, time.Now().UTC())
	if err := s.orders.Create(ctx, order); err != nil {
		log.Error("Failed to create order", logging.Fields{
			"user_id": order.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	if err := s.cache.Set(ctx, order); err != nil {
		log.Warn("Failed to cache order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		log.Warn("Failed to publish order created event", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	log.Info("Order created successfully", logging.Fields{
		"order_id":   order.ID,
		"item_count": len(order.Items),
		"total":      order.Total.StringFixed(2),
	})
	return order, nil
}

// GetOrder returns an order visible to the caller. Reads may be served from cache.
func (s *OrderService) GetOrder(ctx context.Context, caller models.Caller, id string) (*models.Order, error) {
	order, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).Warn("Order cache unavailable", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		order = nil
	}

	if order == nil {
		order, err = s.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, order); err != nil {
			s.logger.WithContext(ctx).Warn("Failed to cache order", logging.Fields{
				"order_id": id,
				"error":    err.Error(),
			})
		}
	}

	if !caller.CanAccess(order.UserID) {
		return nil, errors.New(errors.ErrForbidden, "not allowed to view this order")
	}
	return order, nil
}

// ListOrders returns the caller's orders.
func (s *OrderService) ListOrders(ctx context.Context, caller models.Caller) ([]*models.Order, error) {
	return s.orders.ListByUserID(ctx, caller.UserID)
}

// UpdateStatus is the manual admin path. Illegal transitions are surfaced.
func (s *OrderService) UpdateStatus(ctx context.Context, caller models.Caller, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, errors.New(errors.ErrForbidden, "only administrators can change order status")
	}
	if err := ValidateUpdateOrderStatusRequest(req); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.stateMachine.Transition(ctx, order, req.Status); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels an order. Customers may only cancel before payment.
// Orders with a live payment must be cancelled through the payment first.
func (s *OrderService) CancelOrder(ctx context.Context, caller models.Caller, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		return nil, errors.New(errors.ErrForbidden, "not allowed to cancel this order")
	}

	unlock, err := s.locker.Lock(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", order.ID, err)
	}
	defer unlock()

	order, err = s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !order.IsPayable() {
		return nil, errors.New(errors.ErrForbidden, "orders can only be cancelled before payment")
	}
	active, err := s.payments.HasActionable(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, errors.New(errors.ErrInvalidState, "order has an active payment; cancel it via /api/payment/cancel")
	}

	if err := s.stateMachine.Transition(ctx, order, models.OrderStatusCancelled); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Order cancelled", logging.Fields{
		"order_id": order.ID,
		"user_id":  caller.UserID,
	})
	return order, nil
}
