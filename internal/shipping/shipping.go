// Package shipping provides shipping rate options for a checkout. Rates are
// offered to the customer before payment; the chosen option's cost feeds the
// pricing breakdown as-is.
package shipping

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal/domain"
)

var (
	// ErrDestinationRequired is returned when rates are requested without
	// a destination country.
	ErrDestinationRequired = errors.New("shipping: destination address required")

	// ErrNotServiceable is returned when no method ships to the
	// destination.
	ErrNotServiceable = errors.New("shipping: destination not serviceable")
)

// Provider returns the shipping options available for a destination and
// cart.
type Provider interface {
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams describes the shipment being priced.
type RateParams struct {
	Destination      domain.Address
	Subtotal         decimal.Decimal
	TotalWeightGrams int
}

// Rate is one shipping option the customer can select.
type Rate struct {
	MethodID string          `json:"method_id"`
	Label    string          `json:"label"`
	Cost     decimal.Decimal `json:"cost"`
	DaysMin  int             `json:"days_min,omitempty"`
	DaysMax  int             `json:"days_max,omitempty"`
}

// Selection converts a rate into the session's shipping selection.
func (r Rate) Selection() domain.ShippingSelection {
	return domain.ShippingSelection{MethodID: r.MethodID, Label: r.Label, Cost: r.Cost}
}
