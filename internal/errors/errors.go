// Package errors defines the error taxonomy shared by the storefront layers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kinds. Match with Is.
var (
	ErrNotFound           = stderrors.New("not found")
	ErrForbidden          = stderrors.New("forbidden")
	ErrUnauthenticated    = stderrors.New("unauthenticated")
	ErrInvalidState       = stderrors.New("invalid state")
	ErrIllegalTransition  = stderrors.New("illegal transition")
	ErrConfiguration      = stderrors.New("configuration error")
	ErrGatewayUnreachable = stderrors.New("gateway unreachable")
	ErrGatewayRejected    = stderrors.New("gateway rejected")
)

// Error is a kind plus a human-readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind carrying msg.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed input rejected before any external call.
type ValidationError struct {
	Field   string            `json:"field"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: map[string]string{field: message},
	}
}

// GatewayError is a non-success response from the payment gateway.
type GatewayError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request (http %d): %s %s", e.StatusCode, e.Code, e.Message)
}

// Is makes every GatewayError match ErrGatewayRejected.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayRejected
}

// Unreachable wraps a transport failure as ErrGatewayUnreachable.
func Unreachable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrGatewayUnreachable, cause)
}

// Message returns the human-readable part of err, without kind prefixes.
func Message(err error) string {
	var e *Error
	if As(err, &e) {
		return e.Message
	}
	var v *ValidationError
	if As(err, &v) {
		return v.Message
	}
	var g *GatewayError
	if As(err, &g) {
		return g.Message
	}
	return err.Error()
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
