package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func validAuthorizeRequest() *models.AuthorizePaymentRequest {
	return &models.AuthorizePaymentRequest{
		OrderID: "order-1",
		CreditCard: models.CreditCard{
			CardNumber:     "4551870000000183",
			Holder:         "Maria Silva",
			ExpirationDate: "12/2030",
			SecurityCode:   "123",
			Brand:          models.CardBrandVisa,
		},
	}
}

func TestValidateAuthorizeRequest_Valid(t *testing.T) {
	req := validAuthorizeRequest()
	require.NoError(t, ValidateAuthorizeRequest(req))
	assert.Equal(t, 1, req.Installments, "installments default to 1")
}

func TestValidateAuthorizeRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.AuthorizePaymentRequest)
		field  string
	}{
		{"missing order", func(r *models.AuthorizePaymentRequest) { r.OrderID = "" }, "order_id"},
		{"short card", func(r *models.AuthorizePaymentRequest) { r.CreditCard.CardNumber = "411111111111111" }, "credit_card.card_number"},
		{"letters in card", func(r *models.AuthorizePaymentRequest) { r.CreditCard.CardNumber = "4111a11111111111" }, "credit_card.card_number"},
		{"short holder", func(r *models.AuthorizePaymentRequest) { r.CreditCard.Holder = "Al" }, "credit_card.holder"},
		{"bad expiration format", func(r *models.AuthorizePaymentRequest) { r.CreditCard.ExpirationDate = "12/30" }, "credit_card.expiration_date"},
		{"month 13", func(r *models.AuthorizePaymentRequest) { r.CreditCard.ExpirationDate = "13/2030" }, "credit_card.expiration_date"},
		{"month 00", func(r *models.AuthorizePaymentRequest) { r.CreditCard.ExpirationDate = "00/2030" }, "credit_card.expiration_date"},
		{"short cvv", func(r *models.AuthorizePaymentRequest) { r.CreditCard.SecurityCode = "12" }, "credit_card.security_code"},
		{"long cvv", func(r *models.AuthorizePaymentRequest) { r.CreditCard.SecurityCode = "12345" }, "credit_card.security_code"},
		{"unknown brand", func(r *models.AuthorizePaymentRequest) { r.CreditCard.Brand = "Maestro" }, "credit_card.brand"},
		{"too many installments", func(r *models.AuthorizePaymentRequest) { r.Installments = 13 }, "installments"},
		{"negative installments", func(r *models.AuthorizePaymentRequest) { r.Installments = -1 }, "installments"},
		{"customer without name", func(r *models.AuthorizePaymentRequest) { r.Customer = &models.Customer{} }, "customer.name"},
		{"bad identity type", func(r *models.AuthorizePaymentRequest) {
			r.Customer = &models.Customer{Name: "Maria", IdentityType: "RG"}
		}, "customer.identity_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validAuthorizeRequest()
			tt.mutate(req)

			err := ValidateAuthorizeRequest(req)

			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateAuthorizeRequest_FourDigitCVVAndSpacedCard(t *testing.T) {
	req := validAuthorizeRequest()
	req.CreditCard.SecurityCode = "1234"
	req.CreditCard.CardNumber = "4551 8700 0000 0183"
	req.Customer = &models.Customer{Name: "Maria", IdentityType: "CPF", Identity: "12345678909"}

	require.NoError(t, ValidateAuthorizeRequest(req))
	assert.Equal(t, "4551870000000183", req.CreditCard.CardNumber)
}

func TestValidatePaymentAction(t *testing.T) {
	positive := decimal.RequireFromString("10.50")
	zero := decimal.Zero
	negative := decimal.RequireFromString("-1")

	assert.NoError(t, ValidatePaymentAction("pay-1", nil))
	assert.NoError(t, ValidatePaymentAction("pay-1", &positive))
	assert.Error(t, ValidatePaymentAction("", nil))
	assert.Error(t, ValidatePaymentAction("pay-1", &zero))
	assert.Error(t, ValidatePaymentAction("pay-1", &negative))
}

func TestValidateCreateOrderRequest(t *testing.T) {
	valid := &models.CreateOrderRequest{
		UserID: "user-1",
		Items:  []models.CreateOrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	}
	assert.NoError(t, ValidateCreateOrderRequest(valid))

	assert.Error(t, ValidateCreateOrderRequest(&models.CreateOrderRequest{UserID: "user-1"}))
	assert.Error(t, ValidateCreateOrderRequest(&models.CreateOrderRequest{
		UserID: "user-1",
		Items:  []models.CreateOrderItem{{ProductID: "p-1", Quantity: 0}},
	}))
	assert.Error(t, ValidateCreateOrderRequest(&models.CreateOrderRequest{
		UserID: "user-1",
		Items:  []models.CreateOrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}},
	}))
}

func TestValidateUpdateOrderStatusRequest(t *testing.T) {
	assert.NoError(t, ValidateUpdateOrderStatusRequest(&models.UpdateOrderStatusRequest{Status: models.OrderStatusShipped}))
	assert.Error(t, ValidateUpdateOrderStatusRequest(&models.UpdateOrderStatusRequest{}))
	assert.Error(t, ValidateUpdateOrderStatusRequest(&models.UpdateOrderStatusRequest{Status: "lost"}))
}
