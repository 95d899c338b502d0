package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// FlatRate defines a single configured flat-rate option.
type FlatRate struct {
	MethodID string
	Label    string
	Cost     decimal.Decimal
	DaysMin  int
	DaysMax  int

	// Countries limits the option to these ISO 3166-1 alpha-2 codes.
	// Empty means the option ships everywhere.
	Countries []string
}

// FlatRateProvider serves a configured set of flat rates, optionally
// upgrading the cheapest option to free shipping above a subtotal
// threshold.
type FlatRateProvider struct {
	rates []FlatRate

	// freeAbove is the tax-inclusive subtotal at which the cheapest
	// applicable rate becomes free. Zero disables free shipping.
	freeAbove decimal.Decimal
}

func NewFlatRateProvider(rates []FlatRate, freeAbove decimal.Decimal) *FlatRateProvider {
	return &FlatRateProvider{rates: rates, freeAbove: freeAbove}
}

func (p *FlatRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if params.Destination.Country == "" {
		return nil, ErrDestinationRequired
	}

	var result []Rate
	for _, fr := range p.rates {
		if !fr.shipsTo(params.Destination.Country) {
			continue
		}
		result = append(result, Rate{
			MethodID: fr.MethodID,
			Label:    fr.Label,
			Cost:     fr.Cost,
			DaysMin:  fr.DaysMin,
			DaysMax:  fr.DaysMax,
		})
	}
	if len(result) == 0 {
		return nil, ErrNotServiceable
	}

	if p.freeAbove.IsPositive() && params.Subtotal.GreaterThanOrEqual(p.freeAbove) {
		cheapest := 0
		for i := range result {
			if result[i].Cost.LessThan(result[cheapest].Cost) {
				cheapest = i
			}
		}
		result[cheapest].Cost = decimal.Zero
		result[cheapest].MethodID = "free_shipping"
		result[cheapest].Label = "Free shipping"
	}

	return result, nil
}

func (fr FlatRate) shipsTo(country string) bool {
	if len(fr.Countries) == 0 {
		return true
	}
	for _, c := range fr.Countries {
		if c == country {
			return true
		}
	}
	return false
}
