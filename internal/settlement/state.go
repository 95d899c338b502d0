// Package settlement turns a confirmed payment into a durable order. It
// drives the post-redirect reconciliation flow: read back the payment
// authorization, load the checkout session, create the order at the
// commerce backend, and clear the session.
package settlement

// State is the position of one checkout attempt in the settlement flow.
type State string

const (
	StateIdle                        State = "idle"
	StateAuthorizationRequested      State = "authorization_requested"
	StateAwaitingGatewayConfirmation State = "awaiting_gateway_confirmation"
	StatePaymentSucceeded            State = "payment_succeeded"
	StatePaymentFailed               State = "payment_failed"
	StatePaymentRequiresAction       State = "payment_requires_action"
	StateOrderCreating               State = "order_creating"
	StateOrderCreated                State = "order_created"
	StateOrderCreationFailed         State = "order_creation_failed"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the flow stops at this state. PaymentFailed
// and PaymentRequiresAction are terminal for the attempt; the customer
// recovers by resubmitting or completing the challenge.
func (s State) Terminal() bool {
	switch s {
	case StateOrderCreated, StateOrderCreationFailed, StatePaymentFailed, StatePaymentRequiresAction:
		return true
	}
	return false
}

// transitions is the legal edge set of the settlement flow.
var transitions = map[State][]State{
	StateIdle:                        {StateAuthorizationRequested},
	StateAuthorizationRequested:      {StateAwaitingGatewayConfirmation},
	StateAwaitingGatewayConfirmation: {StatePaymentSucceeded, StatePaymentFailed, StatePaymentRequiresAction},
	StatePaymentSucceeded:            {StateOrderCreating, StateOrderCreationFailed},
	StateOrderCreating:               {StateOrderCreated, StateOrderCreationFailed},
}

// CanTransition reports whether from → to is a legal settlement step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FailureReason classifies why a settlement attempt failed.
type FailureReason string

const (
	// ReasonInvalidReturn means the redirect back from the gateway did
	// not carry a client reference. No backend was contacted.
	ReasonInvalidReturn FailureReason = "invalid_return"

	// ReasonPaymentDeclined means the gateway reported the payment as
	// failed. The customer can retry with another method.
	ReasonPaymentDeclined FailureReason = "payment_declined"

	// ReasonActionRequired means the gateway needs the customer to
	// complete a challenge before the payment can settle.
	ReasonActionRequired FailureReason = "action_required"

	// ReasonSessionLost means the payment settled but the checkout
	// session holding what to order is gone. Manual recovery by the
	// authorization reference is the only path forward.
	ReasonSessionLost FailureReason = "session_lost"

	// ReasonOrderCreateFailed means the payment settled but the commerce
	// backend call to create the order errored.
	ReasonOrderCreateFailed FailureReason = "order_create_failed"
)

// PostPayment reports whether money had already moved when this failure
// occurred. Post-payment failures must surface a recovery reference and
// are never safe to silently drop.
func (r FailureReason) PostPayment() bool {
	return r == ReasonSessionLost || r == ReasonOrderCreateFailed
}

func (r FailureReason) String() string {
	return string(r)
}
