package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func item(price string, qty int, class domain.TaxClass) domain.LineItem {
	return domain.LineItem{
		ProductID: "p-" + price,
		Name:      "Test Product",
		UnitPrice: dec(price),
		Quantity:  qty,
		TaxClass:  class,
	}
}

// Two items at distinct rates plus shipping: tax is backed out of the
// inclusive prices, never added on top, and the highest rate sorts first.
func Test_Compute_MixedRatesWithShipping(t *testing.T) {
	items := []domain.LineItem{
		item("100", 1, domain.TaxClassReduced),
		item("50", 1, domain.TaxClassStandard),
	}

	b, err := pricing.Compute(items, dec("30"), decimal.Zero)
	require.NoError(t, err)

	require.Len(t, b.TaxLines, 2, "one entry per distinct rate with non-zero tax")

	assert.True(t, b.TaxLines[0].Rate.Equal(dec("25")), "highest rate first")
	assert.True(t, b.TaxLines[0].SubtotalExclTax.Equal(dec("40.00")), "50 / 1.25 = 40.00")
	assert.True(t, b.TaxLines[0].Amount.Equal(dec("10.00")), "50 - 40.00 = 10.00")

	assert.True(t, b.TaxLines[1].Rate.Equal(dec("12")))
	assert.True(t, b.TaxLines[1].SubtotalExclTax.Equal(dec("89.29")), "100 / 1.12 rounds to 89.29")
	assert.True(t, b.TaxLines[1].Amount.Equal(dec("10.71")), "100 - 89.29 = 10.71")

	assert.True(t, b.GrandTotal.Equal(dec("180")), "100 + 50 + 30, tax already included")
	assert.False(t, b.SingleRate())
}

// The documented invariant must hold for every breakdown:
// grand_total = subtotal_excl_tax + sum(tax) + shipping - discount.
func Test_Compute_Invariant(t *testing.T) {
	tests := []struct {
		name     string
		items    []domain.LineItem
		shipping string
		discount string
	}{
		{
			name:     "single standard item",
			items:    []domain.LineItem{item("19.99", 3, domain.TaxClassStandard)},
			shipping: "4.95",
			discount: "0",
		},
		{
			name: "all three classes",
			items: []domain.LineItem{
				item("12.50", 2, domain.TaxClassStandard),
				item("7.30", 1, domain.TaxClassReduced),
				item("99", 1, domain.TaxClassZero),
			},
			shipping: "0",
			discount: "10",
		},
		{
			name:     "awkward division",
			items:    []domain.LineItem{item("0.99", 7, domain.TaxClassReduced)},
			shipping: "3.33",
			discount: "1.01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := pricing.Compute(tt.items, dec(tt.shipping), dec(tt.discount))
			require.NoError(t, err)

			reconstructed := b.SubtotalExclTax.
				Add(b.TotalTax()).
				Add(b.Shipping).
				Sub(b.Discount)
			assert.True(t, b.GrandTotal.Equal(reconstructed),
				"grand total %s != reconstructed %s", b.GrandTotal, reconstructed)
			assert.False(t, b.GrandTotal.IsNegative())
		})
	}
}

// Backing tax out and putting it back must reproduce the displayed
// inclusive amount exactly for every rate line.
func Test_Compute_RoundTrip(t *testing.T) {
	items := []domain.LineItem{
		item("100", 1, domain.TaxClassReduced),
		item("49.95", 2, domain.TaxClassStandard),
		item("1.13", 9, domain.TaxClassReduced),
	}

	b, err := pricing.Compute(items, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	inclFromLines := decimal.Zero
	for _, line := range b.TaxLines {
		inclFromLines = inclFromLines.Add(line.SubtotalExclTax).Add(line.Amount)
	}
	assert.True(t, inclFromLines.Equal(b.SubtotalInclTax),
		"excl + tax per rate must reproduce the inclusive subtotal, got %s want %s",
		inclFromLines, b.SubtotalInclTax)
}

func Test_Compute_EmptyCart(t *testing.T) {
	b, err := pricing.Compute(nil, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	assert.Empty(t, b.TaxLines)
	assert.True(t, b.SubtotalExclTax.IsZero())
	assert.True(t, b.SubtotalInclTax.IsZero())
	assert.True(t, b.GrandTotal.IsZero())
}

func Test_Compute_SingleRate(t *testing.T) {
	items := []domain.LineItem{
		item("80", 1, domain.TaxClassStandard),
		item("20", 2, domain.TaxClassStandard),
	}

	b, err := pricing.Compute(items, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	require.Len(t, b.TaxLines, 1)
	assert.True(t, b.SingleRate(), "one distinct rate renders the simplified tax line")
	assert.True(t, b.TaxLines[0].Rate.Equal(dec("25")))
	assert.True(t, b.TaxLines[0].Amount.Equal(dec("24.00")), "120 - 120/1.25 = 24.00")
}

// Zero-rated items contribute to the subtotal but never produce a tax line.
func Test_Compute_ZeroRateProducesNoTaxLine(t *testing.T) {
	items := []domain.LineItem{
		item("40", 1, domain.TaxClassZero),
		item("25", 1, domain.TaxClassStandard),
	}

	b, err := pricing.Compute(items, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	require.Len(t, b.TaxLines, 1)
	assert.True(t, b.TaxLines[0].Rate.Equal(dec("25")))
	assert.True(t, b.SubtotalInclTax.Equal(dec("65")))
	assert.True(t, b.SubtotalExclTax.Equal(dec("60.00")), "40 + 25/1.25")
}

// A discount larger than subtotal plus shipping clamps the total at zero
// rather than going negative.
func Test_Compute_DiscountClamped(t *testing.T) {
	items := []domain.LineItem{item("10", 1, domain.TaxClassStandard)}

	b, err := pricing.Compute(items, dec("5"), dec("50"))
	require.NoError(t, err)

	assert.True(t, b.GrandTotal.IsZero(), "discount exceeding subtotal+shipping clamps to zero")
	assert.True(t, b.Discount.Equal(dec("50")), "the breakdown still reports the applied discount")
}

// Unknown tax classes fall back to the standard rate.
func Test_Compute_UnknownClassDefaultsToStandard(t *testing.T) {
	items := []domain.LineItem{item("125", 1, domain.TaxClass("mystery"))}

	b, err := pricing.Compute(items, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	require.Len(t, b.TaxLines, 1)
	assert.True(t, b.TaxLines[0].Rate.Equal(dec("25")))
	assert.True(t, b.TaxLines[0].Amount.Equal(dec("25.00")), "125 - 125/1.25 = 25.00")
}

func Test_Compute_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		items    []domain.LineItem
		shipping string
		discount string
	}{
		{
			name:     "negative shipping",
			items:    []domain.LineItem{item("10", 1, domain.TaxClassStandard)},
			shipping: "-1",
			discount: "0",
		},
		{
			name:     "negative discount",
			items:    []domain.LineItem{item("10", 1, domain.TaxClassStandard)},
			shipping: "0",
			discount: "-1",
		},
		{
			name:     "zero quantity",
			items:    []domain.LineItem{item("10", 0, domain.TaxClassStandard)},
			shipping: "0",
			discount: "0",
		},
		{
			name: "negative unit price",
			items: []domain.LineItem{{
				ProductID: "p-neg",
				UnitPrice: dec("-10"),
				Quantity:  1,
				TaxClass:  domain.TaxClassStandard,
			}},
			shipping: "0",
			discount: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.Compute(tt.items, dec(tt.shipping), dec(tt.discount))
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}
