package payment

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
)

func Test_StripeProvider_MapError(t *testing.T) {
	p := &StripeProvider{logger: zerolog.Nop()}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "no structured error is a connection failure",
			err:  errors.New("dial tcp: connection refused"),
			want: ErrGatewayUnavailable,
		},
		{
			name: "5xx is transient",
			err:  &stripe.Error{HTTPStatusCode: 502, Msg: "bad gateway"},
			want: ErrGatewayUnavailable,
		},
		{
			name: "rate limit is transient",
			err:  &stripe.Error{HTTPStatusCode: 429, Msg: "too many requests"},
			want: ErrGatewayUnavailable,
		},
		{
			name: "resource missing maps to not found",
			err:  &stripe.Error{HTTPStatusCode: 404, Code: stripe.ErrorCodeResourceMissing, Msg: "no such payment_intent"},
			want: ErrAuthorizationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.mapError(tt.err, "retrieve authorization")
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func Test_StripeProvider_MapError_CardDecline(t *testing.T) {
	p := &StripeProvider{logger: zerolog.Nop()}

	got := p.mapError(&stripe.Error{
		HTTPStatusCode: 402,
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		DeclineCode:    "insufficient_funds",
		Msg:            "Your card was declined.",
	}, "create authorization")

	var gw *GatewayError
	assert.ErrorAs(t, got, &gw)
	assert.Equal(t, string(stripe.ErrorCodeCardDeclined), gw.Code)
	assert.Equal(t, "insufficient_funds", gw.DeclineCode)
	assert.NotErrorIs(t, got, ErrGatewayUnavailable)
}
