package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrSessionNotFound is returned by session stores when no checkout
// session is present for the caller.
var ErrSessionNotFound = &Error{Code: ENOTFOUND, Message: "Checkout session not found"}

// Address is a billing or shipping address captured on the checkout form.
type Address struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Company    string `json:"company,omitempty"`
	Line1      string `json:"address_1" validate:"required"`
	Line2      string `json:"address_2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postcode" validate:"required"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty"`
}

// ShippingSelection is the shipping method the customer chose from the
// set returned by the rate calculator. Cost is tax-inclusive; it is never
// derived locally.
type ShippingSelection struct {
	MethodID string          `json:"method_id"`
	Label    string          `json:"label"`
	Cost     decimal.Decimal `json:"cost"`
}

// Coupon is a discount code validated by the commerce backend. Validity
// constraints live remotely; locally a coupon is either attached to the
// session or not.
type Coupon struct {
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage bool            `json:"percentage"`
}

// DiscountFor resolves the coupon to an absolute discount amount against
// a tax-inclusive subtotal.
func (c Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if c.Percentage {
		return subtotal.Mul(c.Amount).Div(decimal.NewFromInt(100)).Round(2)
	}
	return c.Amount
}

// CheckoutSession is the client-held record of an in-progress order. It is
// created when the customer submits the checkout form, must survive the
// round trip to the payment gateway, and is destroyed on successful order
// creation or explicit cart clear. Exactly one session is active at a time;
// starting a new checkout overwrites any prior one.
//
// Losing this value after a successful payment is the one unrecoverable
// failure mode in the system, which is why AuthorizationID is stamped on it
// before the redirect: it is the correlation key an operator needs to
// reconcile a paid-but-unlinked order by hand.
type CheckoutSession struct {
	ID                 string            `json:"id"`
	Billing            Address           `json:"billing"`
	Shipping           Address           `json:"shipping"`
	ShippingSelection  ShippingSelection `json:"shipping_selection"`
	PaymentMethod      string            `json:"payment_method"`
	PaymentMethodTitle string            `json:"payment_method_title"`
	Items              []LineItem        `json:"items"`
	Coupon             *Coupon           `json:"coupon,omitempty"`
	CustomerNote       string            `json:"customer_note,omitempty"`

	// AuthorizationID is the payment authorization's gateway identifier,
	// recorded before the redirect so the return leg can verify it came
	// back to the same in-progress order.
	AuthorizationID string `json:"authorization_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
