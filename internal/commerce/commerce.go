// Package commerce is the client boundary to the remote commerce backend,
// the system of record for orders and coupons. The checkout engine only
// talks to the backend through the Client interface; the REST
// implementation speaks the backend's JSON API.
package commerce

import (
	"context"
	"errors"

	"github.com/pmorrisey/njord/internal/domain"
)

// Sentinel errors for coupon validation and backend availability.
var (
	ErrCouponNotFound      = errors.New("commerce: coupon not found")
	ErrCouponExpired       = errors.New("commerce: coupon expired")
	ErrCouponNotApplicable = errors.New("commerce: coupon not applicable to this cart")
	ErrOrderNotFound       = errors.New("commerce: order not found")
	ErrBackendUnavailable  = errors.New("commerce: backend unavailable")
)

// CreateOrderParams carries everything the backend needs to record an
// order. TransactionID holds the payment authorization identifier and is
// the correlation key for audit and idempotency; the backend can detect a
// duplicate submission for the same authorization by it.
type CreateOrderParams struct {
	Billing            domain.Address
	Shipping           domain.Address
	Items              []domain.LineItem
	ShippingSelection  domain.ShippingSelection
	PaymentMethod      string
	PaymentMethodTitle string
	CustomerNote       string
	CouponCode         string
	Currency           string

	// SetPaid marks the order paid on creation. It is false when the
	// gateway reported the payment as still processing.
	SetPaid       bool
	TransactionID string
}

// Client is the commerce backend boundary.
type Client interface {
	// CreateOrder records a new order. Called exactly once per settled
	// payment authorization.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error)

	// GetOrder fetches an order by its backend-assigned ID.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// ValidateCoupon checks a coupon code against the backend. Returns
	// the coupon's discount terms on success, or one of the coupon
	// sentinel errors.
	ValidateCoupon(ctx context.Context, code string) (*domain.Coupon, error)
}
