package domain

import (
	"github.com/shopspring/decimal"
)

// Cart domain errors.
var (
	ErrCartEmpty        = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
)

// TaxClass tags a line item with its tax treatment. The mapping from class
// to rate is fixed at build time and owned by the pricing package; an
// unknown or empty class is priced at the standard rate.
type TaxClass string

const (
	TaxClassStandard TaxClass = "standard"
	TaxClassReduced  TaxClass = "reduced"
	TaxClassZero     TaxClass = "zero"
)

// LineItem is one cart line. UnitPrice is tax-inclusive, as displayed to
// the customer; the pricing calculator backs the tax component out of it.
// Once checkout begins the items are an immutable snapshot.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	VariationID string          `json:"variation_id,omitempty"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TaxClass    TaxClass        `json:"tax_class"`
	WeightGrams int             `json:"weight_grams,omitempty"`
}

// Total returns the tax-inclusive line total (unit price * quantity).
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the client-held cart: an ordered sequence of line items plus an
// optionally attached, remotely validated coupon. Any mutation of the items
// detaches the coupon, forcing re-validation against the new contents.
type Cart struct {
	Items  []LineItem `json:"items"`
	Coupon *Coupon    `json:"coupon,omitempty"`
}

// AddItem appends a line item, merging quantity into an existing line with
// the same product and variation reference. The coupon is detached.
func (c *Cart) AddItem(item LineItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	c.detachCoupon()

	for i, existing := range c.Items {
		if existing.ProductID == item.ProductID && existing.VariationID == item.VariationID {
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// UpdateQuantity sets the quantity of an existing line; zero removes it.
// The coupon is detached.
func (c *Cart) UpdateQuantity(productID, variationID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	c.detachCoupon()

	for i, item := range c.Items {
		if item.ProductID == productID && item.VariationID == variationID {
			if quantity == 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = quantity
			}
			return nil
		}
	}
	return ErrCartItemNotFound
}

// RemoveItem deletes a line. The coupon is detached.
func (c *Cart) RemoveItem(productID, variationID string) error {
	return c.UpdateQuantity(productID, variationID, 0)
}

// ApplyCoupon attaches a coupon that has already been validated by the
// commerce backend. It replaces any previously attached coupon.
func (c *Cart) ApplyCoupon(coupon Coupon) {
	c.Coupon = &coupon
}

// Clear empties the cart and detaches the coupon.
func (c *Cart) Clear() {
	c.Items = nil
	c.Coupon = nil
}

// Subtotal returns the tax-inclusive sum of all line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Total())
	}
	return total
}

// TotalWeightGrams sums the line weights, for shipping rate lookups.
func (c *Cart) TotalWeightGrams() int {
	var grams int
	for _, item := range c.Items {
		grams += item.WeightGrams * item.Quantity
	}
	return grams
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// detachCoupon drops the coupon on any cart-altering event. A discount
// validated against one cart must never be silently kept against another.
func (c *Cart) detachCoupon() {
	c.Coupon = nil
}
