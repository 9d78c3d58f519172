package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// Ensure implementations satisfy their interfaces.
var (
	_ OrderRepository   = (*PostgresOrderRepository)(nil)
	_ PaymentRepository = (*PostgresPaymentRepository)(nil)
	_ OrderCache        = (*RedisOrderCache)(nil)
	_ OrderCache        = NopOrderCache{}
	_ OrderLocker       = (*RedisOrderLocker)(nil)
	_ OrderLocker       = (*LocalOrderLocker)(nil)
)

// OrderRepository persists orders. Missing orders are reported as errors.ErrNotFound.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus moves the order from one status to another only if it is
	// still in from. A stale from yields errors.ErrIllegalTransition.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	ListByUserID(ctx context.Context, userID string) ([]*models.Order, error)
}

// PaymentRepository persists payment attempts keyed by the gateway payment ID.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, gatewayID string, status models.PaymentStatus) error
	ListByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error)
	// HasActionable reports whether the order has a payment in a blocking status.
	HasActionable(ctx context.Context, orderID string) (bool, error)
}

// OrderCache defines caching operations for orders.
// A miss is (nil, nil).
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
}

// OrderLocker serializes work on a single order across requests.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}

// NopOrderCache is used when order caching is disabled.
type NopOrderCache struct{}

func (NopOrderCache) Get(context.Context, string) (*models.Order, error) { return nil, nil }
func (NopOrderCache) Set(context.Context, *models.Order) error          { return nil }
func (NopOrderCache) Delete(context.Context, string) error              { return nil }
