package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned when an authorization is requested for
	// a non-positive amount. Checked locally before any remote call.
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")

	// ErrGatewayUnavailable is returned on network errors, gateway 5xx
	// responses, and rate limiting. Transient; safe to retry with backoff
	// before an authorization exists, and bounded-retryable afterwards.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")

	// ErrAuthorizationNotFound is returned when the client reference is
	// unknown to the gateway.
	ErrAuthorizationNotFound = errors.New("payment: authorization not found")

	// ErrInvalidAPIKey is returned when the gateway API key is missing.
	ErrInvalidAPIKey = errors.New("payment: invalid or missing API key")
)

// GatewayError wraps a gateway API error with the context needed for
// debugging without exposing gateway internals to callers.
type GatewayError struct {
	Message     string // Human-readable error message
	Code        string // Gateway error code (e.g., "card_declined")
	DeclineCode string // Card decline reason (if applicable)
	StatusCode  int    // HTTP status code from the gateway
	RequestID   string // Gateway request ID for support tickets
	Err         error  // Original error from the gateway SDK
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("payment: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsDeclined returns true if the error is a card decline rather than an
// infrastructure failure.
func (e *GatewayError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}
