package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
)

// Error codes carried in the response envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeGatewayUnreachable = "GATEWAY_UNREACHABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{"success": false, "error": message, "code": code})
}

func badRequest(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": "invalid request body", "code": CodeValidation}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// HandleError writes err as an error envelope with the matching status.
func HandleError(c *gin.Context, err error) {
	var vErr *errors.ValidationError
	if errors.As(err, &vErr) {
		body := gin.H{"success": false, "error": vErr.Message, "code": CodeValidation, "field": vErr.Field}
		if len(vErr.Details) > 0 {
			body["details"] = vErr.Details
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var gErr *errors.GatewayError
	if errors.As(err, &gErr) {
		respondError(c, http.StatusPaymentRequired, gErr.Message, gErr.Code)
		return
	}

	switch {
	case errors.Is(err, errors.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, errors.Message(err), CodeUnauthenticated)
	case errors.Is(err, errors.ErrForbidden):
		respondError(c, http.StatusForbidden, errors.Message(err), CodeForbidden)
	case errors.Is(err, errors.ErrNotFound):
		respondError(c, http.StatusNotFound, errors.Message(err), CodeNotFound)
	case errors.Is(err, errors.ErrInvalidState):
		respondError(c, http.StatusBadRequest, errors.Message(err), CodeInvalidState)
	case errors.Is(err, errors.ErrIllegalTransition):
		respondError(c, http.StatusConflict, errors.Message(err), CodeIllegalTransition)
	case errors.Is(err, errors.ErrGatewayUnreachable):
		respondError(c, http.StatusBadGateway, "payment gateway unavailable", CodeGatewayUnreachable)
	default:
		logging.Error("Unhandled request error", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		respondError(c, http.StatusInternalServerError, "internal server error", CodeInternal)
	}
}
