package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider defines the interface to the external payment gateway.
// Implementations can use Stripe, PayPal, Square, etc. Providers hold no
// local state; every call is a remote side effect or lookup.
type Provider interface {
	// CreateAuthorization asks the gateway to authorize a charge for the
	// given amount. The returned Authorization carries the gateway's
	// client reference (used to retrieve status after the redirect) and a
	// client secret for the gateway's own payment UI.
	CreateAuthorization(ctx context.Context, params CreateParams) (*Authorization, error)

	// RetrieveAuthorization reads back an authorization by its client
	// reference, typically after the customer returns from the gateway.
	// Returns ErrAuthorizationNotFound if the reference is unknown and
	// ErrGatewayUnavailable on transient failures; callers retry the
	// latter with bounded backoff.
	RetrieveAuthorization(ctx context.Context, clientReference string) (*Authorization, error)
}

// Status is the gateway-reported lifecycle state of an authorization.
type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusFailed                Status = "failed"
)

// SettledOK reports whether the status is terminal-successful for the
// purpose of creating an order. A processing payment is accepted
// optimistically; the resulting order is simply not marked paid yet.
func (s Status) SettledOK() bool {
	return s == StatusSucceeded || s == StatusProcessing
}

// CreateParams contains parameters for creating an authorization.
type CreateParams struct {
	// AmountMinor is the amount in the currency's smallest unit.
	AmountMinor int64

	// Currency is the lowercase ISO 4217 code, e.g. "usd", "sek".
	Currency string

	// CustomerEmail prefills the gateway's payment sheet and receipt.
	CustomerEmail string

	// Description appears on the customer's statement and the gateway
	// dashboard.
	Description string

	// Metadata must carry enough to correlate the authorization back to
	// the checkout that produced it; at minimum the session fingerprint.
	Metadata map[string]string

	// IdempotencyKey prevents duplicate authorizations on retried
	// submissions of the same checkout form.
	IdempotencyKey string
}

// Authorization is a gateway-tracked request to charge a specific amount.
type Authorization struct {
	// ID is the gateway-assigned identifier, e.g. "pi_...". It doubles as
	// the client reference on the return leg and as the correlation key
	// linking a payment to the order it should produce.
	ID string

	// ClientSecret is consumed by the gateway's frontend library to run
	// the payment UI. Never logged.
	ClientSecret string

	Status      Status
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Metadata keys stamped on every authorization.
const (
	MetadataSessionID   = "checkout_session_id"
	MetadataFingerprint = "cart_fingerprint"
)

// zeroDecimalCurrencies have no minor unit (ISO 4217 exponent 0).
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorUnits converts a decimal money amount to the currency's smallest
// unit, as gateways require. Most currencies have two decimal places.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[currency] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}
