package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// BuildOrder snapshots the requested items and computes the order total.
func BuildOrder(req *models.CreateOrderRequest, now time.Time) *models.Order {
	currency := req.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	order := &models.Order{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Status:    models.OrderStatusPending,
		Currency:  currency,
		Items:     make([]models.OrderItem, 0, len(req.Items)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
		})
	}
	order.CalculateTotal()
	return order
}
