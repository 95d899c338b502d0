// Package pricing computes the authoritative price breakdown for a cart:
// per-rate tax amounts backed out of tax-inclusive prices, shipping,
// discount, and the grand total the payment authorization is created for.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal/domain"
)

// Tax rates in percent, fixed at build time. Unknown or missing tax
// classes resolve to the standard rate.
var (
	rateStandard = decimal.NewFromInt(25)
	rateReduced  = decimal.NewFromInt(12)
	rateZero     = decimal.Zero
)

var rateTable = map[domain.TaxClass]decimal.Decimal{
	domain.TaxClassStandard: rateStandard,
	domain.TaxClassReduced:  rateReduced,
	domain.TaxClassZero:     rateZero,
}

// divisionPrecision is the scale used when backing tax out of an
// inclusive price before the final 2-decimal rounding.
const divisionPrecision = 6

// RateFor resolves a tax class to its percentage rate.
func RateFor(class domain.TaxClass) decimal.Decimal {
	if rate, ok := rateTable[class]; ok {
		return rate
	}
	return rateStandard
}

// TaxLine is the accumulated tax for one distinct rate.
type TaxLine struct {
	// Rate is the percentage rate, e.g. 25 for the standard rate.
	Rate decimal.Decimal `json:"rate"`

	// Amount is the tax collected at this rate across all items.
	Amount decimal.Decimal `json:"amount"`

	// SubtotalExclTax is the rate's share of the tax-exclusive subtotal.
	SubtotalExclTax decimal.Decimal `json:"subtotal_excl_tax"`
}

// Breakdown is the derived price summary for a cart. It is recomputed on
// every cart, shipping, or discount change and never persisted.
//
// Invariant: GrandTotal = SubtotalExclTax + sum(tax amounts) + Shipping - Discount,
// and GrandTotal is never negative.
type Breakdown struct {
	// SubtotalExclTax is the sum of line totals with tax backed out.
	SubtotalExclTax decimal.Decimal `json:"subtotal_excl_tax"`

	// SubtotalInclTax is the sum of line totals as displayed.
	SubtotalInclTax decimal.Decimal `json:"subtotal_incl_tax"`

	// TaxLines holds one entry per distinct rate with a non-zero amount,
	// sorted by rate descending so the general rate renders first.
	TaxLines []TaxLine `json:"tax_lines"`

	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`

	GrandTotal decimal.Decimal `json:"grand_total"`
}

// TotalTax sums the per-rate tax amounts.
func (b *Breakdown) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.TaxLines {
		total = total.Add(line.Amount)
	}
	return total
}

// SingleRate reports whether the whole cart was taxed at one rate, in
// which case the UI renders a simplified tax line instead of a breakdown
// list. The numbers are identical either way.
func (b *Breakdown) SingleRate() bool {
	return len(b.TaxLines) == 1
}

// Compute produces the price breakdown for a cart snapshot plus the chosen
// shipping cost and discount amount (both tax-inclusive, both may be zero).
//
// Displayed unit prices are tax-inclusive, so tax is backed out per item
// (excl = total / (1 + rate/100)) and accumulated per distinct rate; it is
// never added on top a second time. The discount is clamped so the grand
// total cannot go negative.
func Compute(items []domain.LineItem, shipping, discount decimal.Decimal) (*Breakdown, error) {
	const op = "pricing.compute"

	if shipping.IsNegative() {
		return nil, domain.Invalid(op, "shipping cost must not be negative")
	}
	if discount.IsNegative() {
		return nil, domain.Invalid(op, "discount must not be negative")
	}

	inclByRate := make(map[string]decimal.Decimal)
	rates := make(map[string]decimal.Decimal)
	subtotalIncl := decimal.Zero

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.Errorf(domain.EINVALID, op, "invalid quantity %d for product %s", item.Quantity, item.ProductID)
		}
		if item.UnitPrice.IsNegative() {
			return nil, domain.Errorf(domain.EINVALID, op, "negative unit price for product %s", item.ProductID)
		}

		rate := RateFor(item.TaxClass)
		key := rate.String()
		rates[key] = rate
		total := item.Total()
		inclByRate[key] = inclByRate[key].Add(total)
		subtotalIncl = subtotalIncl.Add(total)
	}

	hundred := decimal.NewFromInt(100)
	subtotalExcl := decimal.Zero
	lines := make([]TaxLine, 0, len(inclByRate))

	for key, incl := range inclByRate {
		rate := rates[key]

		// excl = incl / (1 + rate/100), rounded to a money amount; the
		// tax is the exact remainder so that excl + tax == incl and the
		// grand-total invariant holds without drift.
		divisor := decimal.NewFromInt(1).Add(rate.DivRound(hundred, divisionPrecision))
		excl := incl.DivRound(divisor, divisionPrecision).Round(2)
		tax := incl.Sub(excl)

		subtotalExcl = subtotalExcl.Add(excl)
		if !tax.IsZero() {
			lines = append(lines, TaxLine{
				Rate:            rate,
				Amount:          tax,
				SubtotalExclTax: excl,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Rate.GreaterThan(lines[j].Rate)
	})

	grand := subtotalIncl.Add(shipping).Sub(discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return &Breakdown{
		SubtotalExclTax: subtotalExcl,
		SubtotalInclTax: subtotalIncl,
		TaxLines:        lines,
		Shipping:        shipping,
		Discount:        discount,
		GrandTotal:      grand,
	}, nil
}
