package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// defaultStripeTimeout bounds Stripe API calls when no timeout is configured.
const defaultStripeTimeout = 30 * time.Second

// StripeConfig contains configuration for the Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...).
	APIKey string

	// TimeoutSeconds is the HTTP timeout for Stripe API calls.
	// Default: 30.
	TimeoutSeconds int
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrInvalidAPIKey
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return len(c.APIKey) > 7 && c.APIKey[:8] == "sk_test_"
}

// StripeProvider implements Provider using Stripe Payment Intents.
type StripeProvider struct {
	api    *client.API
	logger zerolog.Logger
}

// NewStripeProvider creates a Stripe payment provider.
func NewStripeProvider(cfg StripeConfig, logger zerolog.Logger) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = defaultStripeTimeout
	}

	api := &client.API{}
	api.Init(cfg.APIKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	return &StripeProvider{
		api:    api,
		logger: logger.With().Str("component", "stripe").Logger(),
	}, nil
}

// CreateAuthorization creates a Payment Intent for the given amount.
func (p *StripeProvider) CreateAuthorization(ctx context.Context, params CreateParams) (*Authorization, error) {
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, params.AmountMinor)
	}

	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, p.mapError(err, "create authorization")
	}

	p.logger.Debug().
		Str("authorization_id", pi.ID).
		Int64("amount_minor", pi.Amount).
		Str("currency", string(pi.Currency)).
		Msg("authorization created")

	return fromPaymentIntent(pi), nil
}

// RetrieveAuthorization reads a Payment Intent back by ID.
func (p *StripeProvider) RetrieveAuthorization(ctx context.Context, clientReference string) (*Authorization, error) {
	if clientReference == "" {
		return nil, ErrAuthorizationNotFound
	}

	pi, err := p.api.PaymentIntents.Get(clientReference, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, p.mapError(err, "retrieve authorization")
	}

	return fromPaymentIntent(pi), nil
}

// mapError converts Stripe SDK errors into the package's typed errors.
// 5xx, connection errors, and rate limits are transient; unknown payment
// intent IDs map to not-found; everything else is wrapped with context.
func (p *StripeProvider) mapError(err error, op string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// No structured error means the request never got a response.
		p.logger.Warn().Err(err).Str("op", op).Msg("gateway connection error")
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case stripeErr.HTTPStatusCode >= 500,
		stripeErr.HTTPStatusCode == 429:
		p.logger.Warn().
			Str("op", op).
			Int("status", stripeErr.HTTPStatusCode).
			Str("request_id", stripeErr.RequestID).
			Msg("gateway unavailable")
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, stripeErr.Msg)

	case stripeErr.Code == stripe.ErrorCodeResourceMissing,
		stripeErr.HTTPStatusCode == 404:
		return fmt.Errorf("%w: %s", ErrAuthorizationNotFound, stripeErr.Msg)
	}

	return &GatewayError{
		Message:     stripeErr.Msg,
		Code:        string(stripeErr.Code),
		DeclineCode: string(stripeErr.DeclineCode),
		StatusCode:  stripeErr.HTTPStatusCode,
		RequestID:   stripeErr.RequestID,
		Err:         err,
	}
}

// fromPaymentIntent converts a Stripe Payment Intent to the provider-neutral
// Authorization.
func fromPaymentIntent(pi *stripe.PaymentIntent) *Authorization {
	return &Authorization{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       fromStripeStatus(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
}

// fromStripeStatus collapses Stripe's intent lifecycle onto the state
// contract the settlement engine switches over.
func fromStripeStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return StatusProcessing
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return StatusRequiresAction
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusRequiresPaymentMethod
	default:
		return StatusFailed
	}
}
