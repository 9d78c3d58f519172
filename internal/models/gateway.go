package models

// GatewayStatus is the normalized gateway-side payment status.
type GatewayStatus string

const (
	GatewayStatusNotFinished GatewayStatus = "NotFinished"
	GatewayStatusAuthorized  GatewayStatus = "Authorized"
	GatewayStatusConfirmed   GatewayStatus = "PaymentConfirmed"
	GatewayStatusDenied      GatewayStatus = "Denied"
	GatewayStatusVoided      GatewayStatus = "Voided"
	GatewayStatusRefunded    GatewayStatus = "Refunded"
	GatewayStatusPending     GatewayStatus = "Pending"
	GatewayStatusAborted     GatewayStatus = "Aborted"
	GatewayStatusScheduled   GatewayStatus = "Scheduled"
)

var gatewayStatusCodes = map[int]GatewayStatus{
	0:  GatewayStatusNotFinished,
	1:  GatewayStatusAuthorized,
	2:  GatewayStatusConfirmed,
	3:  GatewayStatusDenied,
	10: GatewayStatusVoided,
	11: GatewayStatusRefunded,
	12: GatewayStatusPending,
	13: GatewayStatusAborted,
	20: GatewayStatusScheduled,
}

// GatewayStatusFromCode maps the gateway's numeric status. Unknown codes are NotFinished.
func GatewayStatusFromCode(code int) GatewayStatus {
	if s, ok := gatewayStatusCodes[code]; ok {
		return s
	}
	return GatewayStatusNotFinished
}

// AuthorizeGatewayRequest is a sale request in domain terms.
type AuthorizeGatewayRequest struct {
	OrderID        string
	AmountMinor    int64
	Currency       string
	Installments   int
	Capture        bool
	SoftDescriptor string
	CreditCard     CreditCard
	Customer       *Customer
}

// GatewayPaymentResult is the normalized gateway response.
type GatewayPaymentResult struct {
	PaymentID         string        `json:"payment_id"`
	Status            GatewayStatus `json:"status"`
	ReturnCode        string        `json:"return_code,omitempty"`
	ReturnMessage     string        `json:"return_message,omitempty"`
	ProofOfSale       string        `json:"proof_of_sale,omitempty"`
	AuthorizationCode string        `json:"authorization_code,omitempty"`
	TID               string        `json:"tid,omitempty"`
	NSU               string        `json:"nsu,omitempty"`
	Amount            int64         `json:"amount"`
	CapturedAmount    *int64        `json:"captured_amount,omitempty"`
	CapturedDate      string        `json:"captured_date,omitempty"`
	VoidedAmount      *int64        `json:"voided_amount,omitempty"`
	VoidedDate        string        `json:"voided_date,omitempty"`
}
