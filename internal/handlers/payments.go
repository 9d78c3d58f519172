package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const maxWebhookBody = 64 << 10

// requireCaller returns the authenticated caller or writes a 401.
func requireCaller(c *gin.Context) (models.Caller, bool) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		HandleError(c, errors.New(errors.ErrUnauthenticated, "authentication required"))
		return models.Caller{}, false
	}
	return caller, true
}

// AuthorizePayment handles POST /api/payment/authorize
func (h *Handlers) AuthorizePayment(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.AuthorizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind authorize request", logging.Fields{"error": err.Error()})
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.Authorize(c.Request.Context(), caller, &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// CapturePayment handles POST /api/payment/capture
func (h *Handlers) CapturePayment(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.Capture(c.Request.Context(), caller, &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// CancelPayment handles POST /api/payment/cancel
func (h *Handlers) CancelPayment(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.Cancel(c.Request.Context(), caller, &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, result)
}

// CieloWebhook handles POST /api/webhooks/cielo. It always acknowledges so
// the gateway does not retry; reconciliation problems are only logged.
func (h *Handlers) CieloWebhook(c *gin.Context) {
	defer respond(c, http.StatusOK, gin.H{"received": true})

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook payload", logging.Fields{"error": err.Error()})
		return
	}

	var n models.GatewayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		h.logger.Warn("Ignoring malformed webhook payload", logging.Fields{"error": err.Error()})
		return
	}

	h.paymentService.HandleNotification(c.Request.Context(), &n)
}

// CieloWebhookStatus handles GET /api/webhooks/cielo
func (h *Handlers) CieloWebhookStatus(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"message": "cielo webhook is active",
		"path":    c.Request.URL.Path,
	})
}

// ListOrderPayments handles GET /api/orders/:id/payments
func (h *Handlers) ListOrderPayments(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListOrderPayments(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, payments)
}
