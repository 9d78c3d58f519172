package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// GatewayClient is the card gateway contract used by the payment service.
type GatewayClient interface {
	Authorize(ctx context.Context, req *models.AuthorizeGatewayRequest) (*models.GatewayPaymentResult, error)
	Capture(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error)
	Cancel(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error)
	QueryStatus(ctx context.Context, paymentID string) (*models.GatewayPaymentResult, error)
}

var _ GatewayClient = (*CieloGatewayClient)(nil)

const (
	queryAttempts  = 3
	queryRetryStep = 100 * time.Millisecond
)

// CieloGatewayClient talks to the Cielo E-Commerce 3.0 REST API.
type CieloGatewayClient struct {
	apiURL         string
	queryURL       string
	merchantID     string
	merchantKey    string
	softDescriptor string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRateWait    time.Duration
	metrics        *metrics.Metrics
	logger         *logging.LoggerV2
}

// NewCieloGatewayClient fails with ErrConfiguration when credentials are missing.
func NewCieloGatewayClient(cfg config.GatewayConfig, logger *logging.LoggerV2, m *metrics.Metrics) (*CieloGatewayClient, error) {
	if cfg.MerchantID == "" || cfg.MerchantKey == "" {
		return nil, errors.New(errors.ErrConfiguration, "gateway credentials are not configured")
	}

	limit := rate.Inf
	if cfg.RateRPS > 0 {
		limit = rate.Limit(cfg.RateRPS)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	apiURL, queryURL := cfg.BaseURLs()
	return &CieloGatewayClient{
		apiURL:         apiURL,
		queryURL:       queryURL,
		merchantID:     cfg.MerchantID,
		merchantKey:    cfg.MerchantKey,
		softDescriptor: cfg.SoftDescriptor,
		httpClient:     &http.Client{Timeout: cfg.CallTimeout()},
		limiter:        rate.NewLimiter(limit, burst),
		maxRateWait:    cfg.RateMaxWait,
		metrics:        m,
		logger:         logger,
	}, nil
}

type cieloCustomer struct {
	Name         string `json:"Name"`
	Email        string `json:"Email,omitempty"`
	Identity     string `json:"Identity,omitempty"`
	IdentityType string `json:"IdentityType,omitempty"`
	Mobile       string `json:"Mobile,omitempty"`
}

type cieloCreditCard struct {
	CardNumber     string `json:"CardNumber"`
	Holder         string `json:"Holder"`
	ExpirationDate string `json:"ExpirationDate"`
	SecurityCode   string `json:"SecurityCode"`
	Brand          string `json:"Brand"`
}

type cieloSalePayment struct {
	Type           string          `json:"Type"`
	Amount         int64           `json:"Amount"`
	Currency       string          `json:"Currency"`
	Country        string          `json:"Country"`
	Installments   int             `json:"Installments"`
	Capture        bool            `json:"Capture"`
	SoftDescriptor string          `json:"SoftDescriptor,omitempty"`
	CreditCard     cieloCreditCard `json:"CreditCard"`
}

type cieloSaleRequest struct {
	MerchantOrderID string           `json:"MerchantOrderId"`
	Customer        *cieloCustomer   `json:"Customer,omitempty"`
	Payment         cieloSalePayment `json:"Payment"`
}

type cieloPayment struct {
	PaymentID         string `json:"PaymentId"`
	Status            int    `json:"Status"`
	ReturnCode        string `json:"ReturnCode"`
	ReturnMessage     string `json:"ReturnMessage"`
	ProofOfSale       string `json:"ProofOfSale"`
	AuthorizationCode string `json:"AuthorizationCode"`
	Tid               string `json:"Tid"`
	Nsu               string `json:"Nsu"`
	Amount            int64  `json:"Amount"`
	CapturedAmount    *int64 `json:"CapturedAmount"`
	CapturedDate      string `json:"CapturedDate"`
	VoidedAmount      *int64 `json:"VoidedAmount"`
	VoidedDate        string `json:"VoidedDate"`
}

type cieloEnvelope struct {
	Payment *cieloPayment `json:"Payment"`
}

type cieloError struct {
	Code    json.RawMessage `json:"Code"`
	Message string          `json:"Message"`
}

// Authorize creates a sale. Capture in the request decides auto-capture.
func (c *CieloGatewayClient) Authorize(ctx context.Context, req *models.AuthorizeGatewayRequest) (*models.GatewayPaymentResult, error) {
	c.logger.WithContext(ctx).Debug("Authorizing payment", logging.Fields{
		"order_id":     req.OrderID,
		"amount":       req.AmountMinor,
		"installments": req.Installments,
		"capture":      req.Capture,
		"brand":        req.CreditCard.Brand,
	})

	body, err := json.Marshal(c.saleRequest(req))
	if err != nil {
		return nil, err
	}

	result, err := c.do(ctx, "authorize", http.MethodPost, c.apiURL+"/1/sales", body)
	if err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).Info("Payment authorized at gateway", logging.Fields{
		"order_id":    req.OrderID,
		"payment_id":  result.PaymentID,
		"status":      result.Status,
		"return_code": result.ReturnCode,
	})
	return result, nil
}

// Capture settles an authorization, fully or partially.
func (c *CieloGatewayClient) Capture(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error) {
	c.logger.WithContext(ctx).Debug("Capturing payment", logging.Fields{"payment_id": paymentID})

	result, err := c.do(ctx, "capture", http.MethodPut, c.saleActionURL(paymentID, "capture", amountMinor), nil)
	if err != nil {
		return nil, err
	}
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	return result, nil
}

// Cancel voids an authorization or refunds a settled payment.
func (c *CieloGatewayClient) Cancel(ctx context.Context, paymentID string, amountMinor *int64) (*models.GatewayPaymentResult, error) {
	c.logger.WithContext(ctx).Debug("Cancelling payment", logging.Fields{"payment_id": paymentID})

	result, err := c.do(ctx, "cancel", http.MethodPut, c.saleActionURL(paymentID, "void", amountMinor), nil)
	if err != nil {
		return nil, err
	}
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	return result, nil
}

// QueryStatus reads the authoritative payment state from the query API.
// Only this read is retried; sale actions are never replayed.
func (c *CieloGatewayClient) QueryStatus(ctx context.Context, paymentID string) (*models.GatewayPaymentResult, error) {
	endpoint := fmt.Sprintf("%s/1/sales/%s", c.queryURL, url.PathEscape(paymentID))

	var lastErr error
	for attempt := 0; attempt < queryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.WithContext(ctx).Warn("Retrying gateway status query", logging.Fields{
				"payment_id": paymentID,
				"attempt":    attempt + 1,
			})
			select {
			case <-ctx.Done():
				return nil, errors.Unreachable("query", ctx.Err())
			case <-time.After(time.Duration(attempt) * queryRetryStep):
			}
		}

		result, err := c.do(ctx, "query", http.MethodGet, endpoint, nil)
		if err == nil {
			if result.PaymentID == "" {
				result.PaymentID = paymentID
			}
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// retryable reports transport failures and gateway 5xx answers.
func retryable(err error) bool {
	var gwErr *errors.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode >= http.StatusInternalServerError
	}
	return errors.Is(err, errors.ErrGatewayUnreachable)
}

func (c *CieloGatewayClient) saleRequest(req *models.AuthorizeGatewayRequest) cieloSaleRequest {
	currency := req.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}
	descriptor := req.SoftDescriptor
	if descriptor == "" {
		descriptor = c.softDescriptor
	}

	sale := cieloSaleRequest{
		MerchantOrderID: req.OrderID,
		Payment: cieloSalePayment{
			Type:           "CreditCard",
			Amount:         req.AmountMinor,
			Currency:       currency,
			Country:        "BRA",
			Installments:   installments,
			Capture:        req.Capture,
			SoftDescriptor: descriptor,
			CreditCard: cieloCreditCard{
				CardNumber:     req.CreditCard.CardNumber,
				Holder:         req.CreditCard.Holder,
				ExpirationDate: req.CreditCard.ExpirationDate,
				SecurityCode:   req.CreditCard.SecurityCode,
				Brand:          string(req.CreditCard.Brand),
			},
		},
	}
	if req.Customer != nil {
		sale.Customer = &cieloCustomer{
			Name:         req.Customer.Name,
			Email:        req.Customer.Email,
			Identity:     req.Customer.Identity,
			IdentityType: req.Customer.IdentityType,
			Mobile:       req.Customer.Mobile,
		}
	}
	return sale
}

func (c *CieloGatewayClient) saleActionURL(paymentID, action string, amountMinor *int64) string {
	endpoint := fmt.Sprintf("%s/1/sales/%s/%s", c.apiURL, url.PathEscape(paymentID), action)
	if amountMinor != nil {
		endpoint += "?amount=" + strconv.FormatInt(*amountMinor, 10)
	}
	return endpoint
}

func (c *CieloGatewayClient) do(ctx context.Context, op, method, endpoint string, body []byte) (*models.GatewayPaymentResult, error) {
	start := time.Now()

	if err := c.waitForSlot(ctx); err != nil {
		c.metrics.ObserveGatewayCall(op, "unreachable", time.Since(start))
		return nil, errors.Unreachable(op, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveGatewayCall(op, "unreachable", time.Since(start))
		c.logger.WithContext(ctx).Error("Gateway request failed", logging.Fields{
			"operation": op,
			"error":     err.Error(),
		})
		return nil, errors.Unreachable(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveGatewayCall(op, "unreachable", time.Since(start))
		return nil, errors.Unreachable(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveGatewayCall(op, "rejected", time.Since(start))
		gwErr := parseGatewayError(resp.StatusCode, raw)
		c.logger.WithContext(ctx).Warn("Gateway rejected request", logging.Fields{
			"operation":   op,
			"status_code": resp.StatusCode,
			"code":        gwErr.Code,
			"message":     gwErr.Message,
		})
		return nil, gwErr
	}

	result, err := parsePayment(raw)
	if err != nil {
		c.metrics.ObserveGatewayCall(op, "unreachable", time.Since(start))
		return nil, errors.Unreachable(op, fmt.Errorf("decode response: %w", err))
	}

	c.metrics.ObserveGatewayCall(op, "ok", time.Since(start))
	return result, nil
}

// waitForSlot queues on the rate limiter for at most maxRateWait.
func (c *CieloGatewayClient) waitForSlot(ctx context.Context) error {
	if c.maxRateWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.maxRateWait)
		defer cancel()
	}
	return c.limiter.Wait(ctx)
}

func (c *CieloGatewayClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MerchantId", c.merchantID)
	req.Header.Set("MerchantKey", c.merchantKey)

	if _, err := uuid.Parse(logging.RequestIDFrom(ctx)); err == nil {
		req.Header.Set("RequestId", logging.RequestIDFrom(ctx))
	} else {
		req.Header.Set("RequestId", uuid.NewString())
	}
}

// parsePayment accepts both the sale/query shape ({"Payment": {...}}) and the
// flat shape returned by capture and void.
func parsePayment(raw []byte) (*models.GatewayPaymentResult, error) {
	var env cieloEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	p := env.Payment
	if p == nil {
		p = &cieloPayment{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
	}

	return &models.GatewayPaymentResult{
		PaymentID:         p.PaymentID,
		Status:            models.GatewayStatusFromCode(p.Status),
		ReturnCode:        p.ReturnCode,
		ReturnMessage:     p.ReturnMessage,
		ProofOfSale:       p.ProofOfSale,
		AuthorizationCode: p.AuthorizationCode,
		TID:               p.Tid,
		NSU:               p.Nsu,
		Amount:            p.Amount,
		CapturedAmount:    p.CapturedAmount,
		CapturedDate:      p.CapturedDate,
		VoidedAmount:      p.VoidedAmount,
		VoidedDate:        p.VoidedDate,
	}, nil
}

func parseGatewayError(status int, raw []byte) *errors.GatewayError {
	gwErr := &errors.GatewayError{
		StatusCode: status,
		Code:       "UNKNOWN_ERROR",
		Message:    "unknown error processing payment",
	}

	var list []cieloError
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return gwErr
	}
	if code := strings.Trim(string(list[0].Code), `"`); code != "" && code != "null" {
		gwErr.Code = code
	}
	if list[0].Message != "" {
		gwErr.Message = list[0].Message
	}
	return gwErr
}
