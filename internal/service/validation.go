package service

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const (
	minInstallments = 1
	maxInstallments = 12
)

var (
	cardNumberPattern   = regexp.MustCompile(`^\d{16}$`)
	expirationPattern   = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)
	securityCodePattern = regexp.MustCompile(`^\d{3,4}$`)
)

// ValidateAuthorizeRequest validates an authorize request and applies
// defaults. It never looks at persisted state.
func ValidateAuthorizeRequest(req *models.AuthorizePaymentRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return errors.NewValidationError("order_id", "order ID is required")
	}

	if err := validateCreditCard(&req.CreditCard); err != nil {
		return err
	}

	if req.Installments == 0 {
		req.Installments = minInstallments
	}
	if req.Installments < minInstallments || req.Installments > maxInstallments {
		return errors.NewValidationError("installments", "installments must be between 1 and 12")
	}

	if req.Customer != nil {
		if err := validateCustomer(req.Customer); err != nil {
			return err
		}
	}
	return nil
}

func validateCreditCard(card *models.CreditCard) error {
	card.CardNumber = strings.ReplaceAll(card.CardNumber, " ", "")
	if !cardNumberPattern.MatchString(card.CardNumber) {
		return errors.NewValidationError("credit_card.card_number", "card number must have 16 digits")
	}

	if len(strings.TrimSpace(card.Holder)) < 3 {
		return errors.NewValidationError("credit_card.holder", "holder name must have at least 3 characters")
	}

	if !expirationPattern.MatchString(card.ExpirationDate) {
		return errors.NewValidationError("credit_card.expiration_date", "expiration date must be MM/YYYY")
	}

	if !securityCodePattern.MatchString(card.SecurityCode) {
		return errors.NewValidationError("credit_card.security_code", "security code must have 3 or 4 digits")
	}

	if !card.Brand.Valid() {
		return errors.NewValidationError("credit_card.brand", "unsupported card brand")
	}
	return nil
}

func validateCustomer(c *models.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.NewValidationError("customer.name", "customer name is required")
	}
	if c.IdentityType != "" && c.IdentityType != "CPF" && c.IdentityType != "CNPJ" {
		return errors.NewValidationError("customer.identity_type", "identity type must be CPF or CNPJ")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return errors.NewValidationError("customer.email", "invalid email")
	}
	return nil
}

// ValidatePaymentAction validates capture and cancel inputs.
func ValidatePaymentAction(paymentID string, amount *decimal.Decimal) error {
	if strings.TrimSpace(paymentID) == "" {
		return errors.NewValidationError("payment_id", "payment ID is required")
	}
	if amount != nil && !amount.IsPositive() {
		return errors.NewValidationError("amount", "amount must be positive")
	}
	return nil
}

// ValidateCreateOrderRequest validates an order creation request.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if req.UserID == "" {
		return errors.NewValidationError("user_id", "user ID is required")
	}
	if len(req.Items) == 0 {
		return errors.NewValidationError("items", "at least one item is required")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return errors.NewValidationError("items", "product ID is required for item")
		}
		if item.Quantity <= 0 {
			return errors.NewValidationError("items", "quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return errors.NewValidationError("items", "unit price cannot be negative")
		}
	}
	return nil
}

// ValidateUpdateOrderStatusRequest validates a status update request.
func ValidateUpdateOrderStatusRequest(req *models.UpdateOrderStatusRequest) error {
	if req.Status == "" {
		return errors.NewValidationError("status", "status is required")
	}
	if _, ok := models.ParseOrderStatus(string(req.Status)); !ok {
		return errors.NewValidationError("status", "invalid order status")
	}
	return nil
}
