package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the local mirror of the gateway payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusDenied     PaymentStatus = "denied"
	PaymentStatusVoided     PaymentStatus = "voided"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusAborted    PaymentStatus = "aborted"
	PaymentStatusScheduled  PaymentStatus = "scheduled"
)

// PaymentMethod discriminates how a payment was made.
type PaymentMethod string

const PaymentMethodCreditCard PaymentMethod = "credit_card"

// Payment is one attempted gateway transaction for an order.
// Everything except Status is written once at creation.
type Payment struct {
	ID                string          `json:"id"`
	GatewayPaymentID  string          `json:"payment_id"`
	OrderID           string          `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PaymentStatus   `json:"status"`
	Method            PaymentMethod   `json:"method"`
	CardBrand         CardBrand       `json:"card_brand,omitempty"`
	AuthorizationCode string          `json:"authorization_code,omitempty"`
	TransactionID     string          `json:"tid,omitempty"`
	ProofOfSale       string          `json:"proof_of_sale,omitempty"`
	ReturnCode        string          `json:"return_code,omitempty"`
	ReturnMessage     string          `json:"return_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BlockingPaymentStatuses are the statuses that prevent a new authorization
// on the same order: still in flight at the gateway, or already settled.
var BlockingPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusAuthorized,
	PaymentStatusScheduled,
	PaymentStatusPaid,
}

// BlocksNewAuthorization reports whether p prevents another authorize call.
func (p *Payment) BlocksNewAuthorization() bool {
	for _, s := range BlockingPaymentStatuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

// IsCancellable reports whether the payment can be voided or refunded.
func (p *Payment) IsCancellable() bool {
	return p.Status == PaymentStatusAuthorized || p.Status == PaymentStatusPaid
}

// CardBrand is a card network accepted by the gateway.
type CardBrand string

const (
	CardBrandVisa      CardBrand = "Visa"
	CardBrandMaster    CardBrand = "Master"
	CardBrandAmex      CardBrand = "Amex"
	CardBrandElo       CardBrand = "Elo"
	CardBrandAura      CardBrand = "Aura"
	CardBrandJCB       CardBrand = "JCB"
	CardBrandDiners    CardBrand = "Diners"
	CardBrandDiscover  CardBrand = "Discover"
	CardBrandHipercard CardBrand = "Hipercard"
)

var cardBrands = map[CardBrand]bool{
	CardBrandVisa: true, CardBrandMaster: true, CardBrandAmex: true,
	CardBrandElo: true, CardBrandAura: true, CardBrandJCB: true,
	CardBrandDiners: true, CardBrandDiscover: true, CardBrandHipercard: true,
}

// Valid reports whether b is a supported brand.
func (b CardBrand) Valid() bool { return cardBrands[b] }

// CreditCard holds raw card data. Never log it.
type CreditCard struct {
	CardNumber     string    `json:"card_number"`
	Holder         string    `json:"holder"`
	ExpirationDate string    `json:"expiration_date"`
	SecurityCode   string    `json:"security_code"`
	Brand          CardBrand `json:"brand"`
}

// Customer identifies the buyer to the gateway.
type Customer struct {
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Identity     string `json:"identity,omitempty"`
	IdentityType string `json:"identity_type,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
}

// AuthorizePaymentRequest is the inbound authorize body.
type AuthorizePaymentRequest struct {
	OrderID      string     `json:"order_id"`
	CreditCard   CreditCard `json:"credit_card"`
	Installments int        `json:"installments"`
	Capture      bool       `json:"capture"`
	Customer     *Customer  `json:"customer,omitempty"`
}

// CapturePaymentRequest is the inbound capture body. Amount is in major units.
type CapturePaymentRequest struct {
	PaymentID string           `json:"payment_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// CancelPaymentRequest is the inbound cancel/refund body. Amount is in major units.
type CancelPaymentRequest struct {
	PaymentID string           `json:"payment_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// GatewayNotification is the body the gateway posts to the webhook.
// ChangeType is opaque (1 recurrence, 2 transaction, 3 boleto) and kept raw;
// the gateway sends it as a number or a string. Only PaymentID drives
// reconciliation.
type GatewayNotification struct {
	PaymentID          string          `json:"PaymentId"`
	ChangeType         json.RawMessage `json:"ChangeType,omitempty"`
	RecurrentPaymentID string          `json:"RecurrentPaymentId,omitempty"`
}

// AuthorizeResult is returned to the authorize caller.
type AuthorizeResult struct {
	PaymentID  string        `json:"payment_id"`
	Status     GatewayStatus `json:"status"`
	Authorized bool          `json:"authorized"`
	Captured   bool          `json:"captured"`
	Message    string        `json:"message"`
}

// CaptureResult is returned to the capture caller.
type CaptureResult struct {
	PaymentID      string           `json:"payment_id"`
	Status         GatewayStatus    `json:"status"`
	Captured       bool             `json:"captured"`
	CapturedAmount *decimal.Decimal `json:"captured_amount"`
	Message        string           `json:"message"`
}

// CancelResult is returned to the cancel caller.
type CancelResult struct {
	PaymentID string        `json:"payment_id"`
	Status    GatewayStatus `json:"status"`
	Cancelled bool          `json:"cancelled"`
	Message   string        `json:"message"`
}
