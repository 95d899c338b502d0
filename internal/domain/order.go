package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the commerce backend's durable record of a settled checkout.
// The backend assigns ID and Number; TransactionID carries the payment
// authorization identifier and is the idempotency and audit correlation
// key linking the order back to the money that paid for it.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Items         []LineItem      `json:"line_items"`
	Billing       Address         `json:"billing"`
	Shipping      Address         `json:"shipping"`
	TransactionID string          `json:"transaction_id"`
	SetPaid       bool            `json:"set_paid"`
	CreatedAt     time.Time       `json:"date_created"`
}
