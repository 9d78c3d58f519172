package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

var _ events.NotificationHandler = (*PaymentService)(nil)

// PaymentService orchestrates gateway calls, payment records and order status.
type PaymentService struct {
	orders       repository.OrderRepository
	payments     repository.PaymentRepository
	gateway      clients.GatewayClient
	stateMachine *OrderStateMachine
	locker       repository.OrderLocker
	publisher    events.Publisher
	metrics      *metrics.Metrics
	logger       *logging.LoggerV2
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	gateway clients.GatewayClient,
	stateMachine *OrderStateMachine,
	locker repository.OrderLocker,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *logging.LoggerV2,
) *PaymentService {
	return &PaymentService{
		orders:       orders,
		payments:     payments,
		gateway:      gateway,
		stateMachine: stateMachine,
		locker:       locker,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

// Authorize charges the card for the order total and records the attempt.
// A Payment row is created for every gateway answer, including denials.
func (s *PaymentService) Authorize(ctx context.Context, caller models.Caller, req *models.AuthorizePaymentRequest) (*models.AuthorizeResult, error) {
	if err := ValidateAuthorizeRequest(req); err != nil {
		return nil, err
	}
	log := s.logger.WithContext(ctx)

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		return nil, errors.New(errors.ErrForbidden, "not allowed to pay for this order")
	}
	if err := checkPayable(order); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", order.ID, err)
	}
	defer unlock()

	// State may have moved while waiting for the lock.
	order, err = s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(order); err != nil {
		return nil, err
	}
	active, err := s.payments.HasActionable(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, errors.New(errors.ErrInvalidState, "order already has an active payment")
	}

	log.Info("Authorizing payment", logging.Fields{
		"order_id":     order.ID,
		"user_id":      caller.UserID,
		"amount":       order.Total.StringFixed(2),
		"installments": req.Installments,
		"capture":      req.Capture,
	})

	result, err := s.gateway.Authorize(ctx, &models.AuthorizeGatewayRequest{
		OrderID:      order.ID,
		AmountMinor:  models.MinorUnits(order.Total),
		Currency:     order.Currency,
		Installments: req.Installments,
		Capture:      req.Capture,
		CreditCard:   req.CreditCard,
		Customer:     req.Customer,
	})
	if err != nil {
		log.Error("Gateway authorization failed", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return nil, err
	}
	if result.PaymentID == "" {
		return nil, errors.Unreachable("authorize", fmt.Errorf("gateway response carried no payment id"))
	}

	status := GatewayStatusToPaymentStatus(result.Status)
	now := time.Now().UTC()
	payment := &models.Payment{
		ID:                uuid.NewString(),
		GatewayPaymentID:  result.PaymentID,
		OrderID:           order.ID,
		Amount:            order.Total,
		Status:            status,
		Method:            models.PaymentMethodCreditCard,
		CardBrand:         req.CreditCard.Brand,
		AuthorizationCode: result.AuthorizationCode,
		TransactionID:     result.TID,
		ProofOfSale:       result.ProofOfSale,
		ReturnCode:        result.ReturnCode,
		ReturnMessage:     result.ReturnMessage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		log.Error("Failed to record gateway payment", logging.Fields{
			"order_id":   order.ID,
			"payment_id": result.PaymentID,
			"status":     status,
			"error":      err.Error(),
		})
		return nil, err
	}
	s.paymentChanged(ctx, "authorize", payment, "")

	if target, ok := PaymentStatusToOrderStatus(status); ok {
		s.stateMachine.TransitionLenient(ctx, order, target)
	}

	return &models.AuthorizeResult{
		PaymentID:  result.PaymentID,
		Status:     result.Status,
		Authorized: result.Status == models.GatewayStatusAuthorized || result.Status == models.GatewayStatusConfirmed,
		Captured:   result.Status == models.GatewayStatusConfirmed,
		Message:    authorizeMessage(result.Status),
	}, nil
}

// Capture settles an authorized payment. Admin only.
func (s *PaymentService) Capture(ctx context.Context, caller models.Caller, req *models.CapturePaymentRequest) (*models.CaptureResult, error) {
	if !caller.IsAdmin() {
		return nil, errors.New(errors.ErrForbidden, "only administrators can capture payments")
	}
	if err := ValidatePaymentAction(req.PaymentID, req.Amount); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByGatewayID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusAuthorized {
		return nil, errors.New(errors.ErrInvalidState, "only authorized payments can be captured")
	}

	unlock, err := s.locker.Lock(ctx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", payment.OrderID, err)
	}
	defer unlock()

	payment, err = s.payments.GetByGatewayID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusAuthorized {
		return nil, errors.New(errors.ErrInvalidState, "only authorized payments can be captured")
	}
	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanReach(order.Status, models.OrderStatusPaid) {
		return nil, errors.Newf(errors.ErrInvalidState, "cannot capture payment for order in status %s", order.Status)
	}

	result, err := s.gateway.Capture(ctx, payment.GatewayPaymentID, minorUnitsPtr(req.Amount))
	if err != nil {
		s.logger.WithContext(ctx).Error("Gateway capture failed", logging.Fields{
			"payment_id": payment.GatewayPaymentID,
			"error":      err.Error(),
		})
		return nil, err
	}

	status := GatewayStatusToPaymentStatus(result.Status)
	if err := s.applyPaymentStatus(ctx, "capture", payment, status); err != nil {
		return nil, err
	}
	if status == models.PaymentStatusPaid {
		s.stateMachine.TransitionLenient(ctx, order, models.OrderStatusPaid)
	}

	res := &models.CaptureResult{
		PaymentID: payment.GatewayPaymentID,
		Status:    result.Status,
		Captured:  status == models.PaymentStatusPaid,
		Message:   "payment captured",
	}
	if !res.Captured {
		res.Message = "payment not captured"
	}
	if result.CapturedAmount != nil {
		amount := models.MajorUnits(*result.CapturedAmount)
		res.CapturedAmount = &amount
	}
	return res, nil
}

// Cancel voids an authorization or refunds a captured payment.
func (s *PaymentService) Cancel(ctx context.Context, caller models.Caller, req *models.CancelPaymentRequest) (*models.CancelResult, error) {
	if err := ValidatePaymentAction(req.PaymentID, req.Amount); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByGatewayID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		return nil, errors.New(errors.ErrForbidden, "not allowed to cancel this payment")
	}
	if !payment.IsCancellable() {
		return nil, errors.New(errors.ErrInvalidState, "payment cannot be cancelled")
	}

	// Cancel and refund are told apart by what was attempted.
	wasCaptured := payment.Status == models.PaymentStatusPaid

	result, err := s.gateway.Cancel(ctx, payment.GatewayPaymentID, minorUnitsPtr(req.Amount))
	if err != nil {
		s.logger.WithContext(ctx).Error("Gateway cancel failed", logging.Fields{
			"payment_id": payment.GatewayPaymentID,
			"error":      err.Error(),
		})
		return nil, err
	}

	status := GatewayStatusToPaymentStatus(result.Status)
	if err := s.applyPaymentStatus(ctx, "cancel", payment, status); err != nil {
		return nil, err
	}

	target, message := models.OrderStatusCancelled, "authorization cancelled"
	if wasCaptured {
		target, message = models.OrderStatusRefunded, "payment refunded"
	}
	s.stateMachine.TransitionLenient(ctx, order, target)

	return &models.CancelResult{
		PaymentID: payment.GatewayPaymentID,
		Status:    result.Status,
		Cancelled: status == models.PaymentStatusVoided || status == models.PaymentStatusRefunded,
		Message:   message,
	}, nil
}

// HandleNotification reconciles a payment from the gateway's authoritative
// status. It never fails; problems are logged.
func (s *PaymentService) HandleNotification(ctx context.Context, n *models.GatewayNotification) {
	log := s.logger.WithContext(ctx).With(logging.Fields{
		"payment_id":  n.PaymentID,
		"change_type": string(n.ChangeType),
	})

	if n.PaymentID == "" {
		log.Warn("Ignoring notification without payment id")
		s.metrics.WebhookNotification("invalid")
		return
	}

	payment, err := s.payments.GetByGatewayID(ctx, n.PaymentID)
	if errors.Is(err, errors.ErrNotFound) {
		log.Info("Ignoring notification for unknown payment")
		s.metrics.WebhookNotification("unknown_payment")
		return
	}
	if err != nil {
		log.Error("Failed to load payment for notification", logging.Fields{"error": err.Error()})
		s.metrics.WebhookNotification("error")
		return
	}

	result, err := s.gateway.QueryStatus(ctx, n.PaymentID)
	if err != nil {
		log.Error("Failed to query gateway status", logging.Fields{"error": err.Error()})
		s.metrics.WebhookNotification("error")
		return
	}

	status := GatewayStatusToPaymentStatus(result.Status)
	if status != payment.Status {
		if err := s.applyPaymentStatus(ctx, "webhook", payment, status); err != nil {
			s.metrics.WebhookNotification("error")
			return
		}
	}

	if target, ok := PaymentStatusToOrderStatus(status); ok {
		s.advanceOrder(ctx, payment.OrderID, target)
	}

	log.Info("Notification reconciled", logging.Fields{"status": status})
	s.metrics.WebhookNotification("reconciled")
}

// ListOrderPayments returns every payment attempt for an order.
func (s *PaymentService) ListOrderPayments(ctx context.Context, caller models.Caller, orderID string) ([]*models.Payment, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(order.UserID) {
		return nil, errors.New(errors.ErrForbidden, "not allowed to view this order")
	}
	return s.payments.ListByOrderID(ctx, order.ID)
}

// applyPaymentStatus persists status when it differs from the stored one.
func (s *PaymentService) applyPaymentStatus(ctx context.Context, source string, payment *models.Payment, status models.PaymentStatus) error {
	if payment.Status == status {
		return nil
	}
	if err := s.payments.UpdateStatus(ctx, payment.GatewayPaymentID, status); err != nil {
		s.logger.WithContext(ctx).Error("Failed to update payment status", logging.Fields{
			"payment_id": payment.GatewayPaymentID,
			"status":     status,
			"source":     source,
			"error":      err.Error(),
		})
		return err
	}

	previous := payment.Status
	payment.Status = status
	payment.UpdatedAt = time.Now().UTC()
	s.paymentChanged(ctx, source, payment, previous)
	return nil
}

func (s *PaymentService) paymentChanged(ctx context.Context, source string, payment *models.Payment, previous models.PaymentStatus) {
	s.metrics.PaymentStatusChanged(source, string(payment.Status))
	if err := s.publisher.PublishPaymentStatusChanged(ctx, payment, previous); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to publish payment status changed event", logging.Fields{
			"payment_id": payment.GatewayPaymentID,
			"error":      err.Error(),
		})
	}
}

// advanceOrder loads the order and moves it toward target when it is not
// already there. Failures are logged only.
func (s *PaymentService) advanceOrder(ctx context.Context, orderID string, target models.OrderStatus) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to load order for status update", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return
	}
	if order.Status == target {
		return
	}
	s.stateMachine.TransitionLenient(ctx, order, target)
}

func checkPayable(order *models.Order) error {
	if !order.IsPayable() {
		return errors.Newf(errors.ErrInvalidState, "order cannot be paid in status %s", order.Status)
	}
	if !order.Total.IsPositive() {
		return errors.New(errors.ErrInvalidState, "order total must be positive")
	}
	return nil
}

func minorUnitsPtr(amount *decimal.Decimal) *int64 {
	if amount == nil {
		return nil
	}
	v := models.MinorUnits(*amount)
	return &v
}

func authorizeMessage(status models.GatewayStatus) string {
	switch status {
	case models.GatewayStatusAuthorized:
		return "payment authorized"
	case models.GatewayStatusConfirmed:
		return "payment confirmed"
	case models.GatewayStatusDenied, models.GatewayStatusAborted, models.GatewayStatusVoided:
		return "payment denied"
	default:
		return "payment pending"
	}
}
