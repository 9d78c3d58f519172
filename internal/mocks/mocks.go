// Package mocks provides test doubles for the storefront dependencies.
package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

var (
	_ clients.GatewayClient        = (*MockGatewayClient)(nil)
	_ repository.OrderRepository   = (*MemoryOrderRepository)(nil)
	_ repository.PaymentRepository = (*MemoryPaymentRepository)(nil)
	_ repository.OrderCache        = (*MemoryOrderCache)(nil)
)

// MockGatewayClient is a testify mock of the card gateway.
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) Authorize(ctx context.Context, req *models.AuthorizeGatewayRequest) (*models.GatewayPaymentResult, error) {
	args := m.Called(ctx, req)
	return result(args)
}

func (m *MockGatewayClient) Capture(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	return result(args)
}

func (m *MockGatewayClient) Cancel(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	return result(args)
}

func (m *MockGatewayClient) QueryStatus(ctx context.Context, paymentID string) (*models.GatewayPaymentResult, error) {
	args := m.Called(ctx, paymentID)
	return result(args)
}

func result(args mock.Arguments) (*models.GatewayPaymentResult, error) {
	var r *models.GatewayPaymentResult
	if v := args.Get(0); v != nil {
		r = v.(*models.GatewayPaymentResult)
	}
	return r, args.Error(1)
}

// MemoryOrderRepository is an in-memory OrderRepository with the same
// compare-and-set semantics as the Postgres one.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]models.Order
	// UpdateCalls counts successful status updates.
	UpdateCalls int
}

func NewMemoryOrderRepository(orders ...*models.Order) *MemoryOrderRepository {
	r := &MemoryOrderRepository{orders: make(map[string]models.Order)}
	for _, o := range orders {
		r.orders[o.ID] = *o
	}
	return r
}

func (r *MemoryOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "order not found")
	}
	return &o, nil
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *MemoryOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "order not found")
	}
	if o.Status != from {
		return errors.Newf(errors.ErrIllegalTransition, "order is %s, expected %s", o.Status, from)
	}
	o.Status = to
	r.orders[id] = o
	r.UpdateCalls++
	return nil
}

func (r *MemoryOrderRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Status returns the stored status of an order.
func (r *MemoryOrderRepository) Status(id string) models.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

// MemoryPaymentRepository is an in-memory PaymentRepository enforcing
// gateway ID uniqueness and one blocking payment per order.
type MemoryPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]models.Payment
	// Writes counts successful Create and UpdateStatus calls.
	Writes int
}

func NewMemoryPaymentRepository(payments ...*models.Payment) *MemoryPaymentRepository {
	r := &MemoryPaymentRepository{payments: make(map[string]models.Payment)}
	for _, p := range payments {
		r.payments[p.GatewayPaymentID] = *p
	}
	return r
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.GatewayPaymentID]; exists {
		return errors.New(errors.ErrInvalidState, "duplicate payment")
	}
	if p.BlocksNewAuthorization() && r.hasBlocking(p.OrderID) {
		return errors.New(errors.ErrInvalidState, "order already has an active payment")
	}
	r.payments[p.GatewayPaymentID] = *p
	r.Writes++
	return nil
}

func (r *MemoryPaymentRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[gatewayID]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "payment not found")
	}
	return &p, nil
}

func (r *MemoryPaymentRepository) UpdateStatus(ctx context.Context, gatewayID string, status models.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[gatewayID]
	if !ok {
		return errors.New(errors.ErrNotFound, "payment not found")
	}
	p.Status = status
	r.payments[gatewayID] = p
	r.Writes++
	return nil
}

func (r *MemoryPaymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Payment, 0)
	for _, p := range r.payments {
		if p.OrderID == orderID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GatewayPaymentID < out[j].GatewayPaymentID })
	return out, nil
}

func (r *MemoryPaymentRepository) HasActionable(ctx context.Context, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasBlocking(orderID), nil
}

func (r *MemoryPaymentRepository) hasBlocking(orderID string) bool {
	for _, p := range r.payments {
		if p.OrderID == orderID && p.BlocksNewAuthorization() {
			return true
		}
	}
	return false
}

// Count returns the number of stored payments.
func (r *MemoryPaymentRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

// MemoryOrderCache is an in-memory OrderCache.
type MemoryOrderCache struct {
	mu     sync.Mutex
	orders map[string]models.Order
}

func NewMemoryOrderCache() *MemoryOrderCache {
	return &MemoryOrderCache{orders: make(map[string]models.Order)}
}

func (c *MemoryOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *MemoryOrderCache) Set(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.ID] = *order
	return nil
}

func (c *MemoryOrderCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	return nil
}

// Has reports whether id is cached.
func (c *MemoryOrderCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.orders[id]
	return ok
}
