package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// CreateOrder handles POST /api/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind order request", logging.Fields{"error": err.Error()})
		badRequest(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), caller, &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

// ListOrders handles GET /api/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), caller)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, orders)
}

// UpdateOrderStatus handles PUT /api/orders/:id
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

// CancelOrder handles DELETE /api/orders/:id
func (h *Handlers) CancelOrder(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}
