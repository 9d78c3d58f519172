package service

import "github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"

var gatewayToPayment = map[models.GatewayStatus]models.PaymentStatus{
	models.GatewayStatusNotFinished: models.PaymentStatusPending,
	models.GatewayStatusAuthorized:  models.PaymentStatusAuthorized,
	models.GatewayStatusConfirmed:   models.PaymentStatusPaid,
	models.GatewayStatusDenied:      models.PaymentStatusDenied,
	models.GatewayStatusVoided:      models.PaymentStatusVoided,
	models.GatewayStatusRefunded:    models.PaymentStatusRefunded,
	models.GatewayStatusPending:     models.PaymentStatusPending,
	models.GatewayStatusAborted:     models.PaymentStatusAborted,
	models.GatewayStatusScheduled:   models.PaymentStatusScheduled,
}

// GatewayStatusToPaymentStatus maps a gateway status to the local payment
// status. Unrecognized input maps to pending.
func GatewayStatusToPaymentStatus(s models.GatewayStatus) models.PaymentStatus {
	if ps, ok := gatewayToPayment[s]; ok {
		return ps
	}
	return models.PaymentStatusPending
}

// PaymentStatusToOrderStatus returns the order status a payment status
// drives the order to. ok is false when the order keeps its status.
func PaymentStatusToOrderStatus(s models.PaymentStatus) (status models.OrderStatus, ok bool) {
	switch s {
	case models.PaymentStatusAuthorized:
		return models.OrderStatusPaymentPending, true
	case models.PaymentStatusPaid:
		return models.OrderStatusPaid, true
	case models.PaymentStatusDenied, models.PaymentStatusVoided, models.PaymentStatusAborted:
		return models.OrderStatusCancelled, true
	case models.PaymentStatusRefunded:
		return models.OrderStatusRefunded, true
	default:
		return "", false
	}
}
