package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/pmorrisey/njord/internal/commerce"
	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/events"
	"github.com/pmorrisey/njord/internal/journal"
	"github.com/pmorrisey/njord/internal/payment"
	"github.com/pmorrisey/njord/internal/session"
	"github.com/pmorrisey/njord/internal/telemetry"
)

// statusRetryBase is the first wait of the fibonacci backoff used when
// the gateway is transiently unavailable during status lookup.
const (
	statusRetryBase = 250 * time.Millisecond
	statusRetryMax  = 4
)

// Config wires the engine's collaborators. Payments, Commerce and Logger
// are required; Journal, Events and Metrics default to inert
// implementations when nil.
type Config struct {
	Payments payment.Provider
	Commerce commerce.Client
	Journal  journal.Journal
	Events   events.Publisher
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// Engine drives a checkout attempt from authorization through order
// creation. It holds no per-attempt state; each attempt's state lives in
// the checkout session and the gateway, so one engine serves all
// requests.
type Engine struct {
	payments payment.Provider
	commerce commerce.Client
	journal  journal.Journal
	events   events.Publisher
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Payments == nil {
		return nil, domain.Errorf(domain.EINVALID, "settlement.new", "payment provider is required")
	}
	if cfg.Commerce == nil {
		return nil, domain.Errorf(domain.EINVALID, "settlement.new", "commerce client is required")
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.NewMemoryJournal()
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}

	return &Engine{
		payments: cfg.Payments,
		commerce: cfg.Commerce,
		journal:  cfg.Journal,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "settlement").Logger(),
	}, nil
}

// BeginParams describes a submitted checkout form, already priced.
type BeginParams struct {
	Session    *domain.CheckoutSession
	GrandTotal decimal.Decimal
	Currency   string
	Email      string
}

// BeginResult hands the frontend what it needs to run the gateway's
// payment UI.
type BeginResult struct {
	AuthorizationID string
	ClientSecret    string
	AmountMinor     int64
	Currency        string
	State           State
}

// Begin creates a payment authorization for exactly the priced total and
// persists the checkout session tagged with the authorization ID, so the
// return leg can correlate the two. Nothing has been charged when Begin
// fails; every failure here is recoverable by resubmitting.
func (e *Engine) Begin(ctx context.Context, store session.Store, params BeginParams) (*BeginResult, error) {
	const op = "settlement.begin"

	if params.Session == nil || len(params.Session.Items) == 0 {
		return nil, domain.Errorf(domain.EINVALID, op, "checkout session has no items")
	}
	if !params.GrandTotal.IsPositive() {
		return nil, domain.Errorf(domain.EINVALID, op, "grand total must be positive")
	}

	state := StateIdle
	state = e.advance(state, StateAuthorizationRequested, params.Session.ID)

	auth, err := e.payments.CreateAuthorization(ctx, payment.CreateParams{
		AmountMinor:   payment.MinorUnits(params.GrandTotal, params.Currency),
		Currency:      params.Currency,
		CustomerEmail: params.Email,
		Description:   "Storefront checkout",
		Metadata: map[string]string{
			payment.MetadataSessionID:   params.Session.ID,
			payment.MetadataFingerprint: cartFingerprint(params.Session.Items),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	params.Session.AuthorizationID = auth.ID
	if err := store.Save(ctx, params.Session); err != nil {
		// The session never persisted, so the return leg would settle
		// into SessionLost. Fail now while the customer can still
		// resubmit safely.
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to persist checkout session")
	}

	state = e.advance(state, StateAwaitingGatewayConfirmation, params.Session.ID)

	if e.metrics != nil {
		e.metrics.CheckoutStarted.Inc()
	}
	e.record(ctx, journal.Entry{
		AuthorizationID: auth.ID,
		State:           state.String(),
		AmountMinor:     auth.AmountMinor,
		Currency:        auth.Currency,
	})

	e.logger.Info().
		Str("authorization_id", auth.ID).
		Str("session_id", params.Session.ID).
		Int64("amount_minor", auth.AmountMinor).
		Str("currency", auth.Currency).
		Msg("Checkout authorization created")

	return &BeginResult{
		AuthorizationID: auth.ID,
		ClientSecret:    auth.ClientSecret,
		AmountMinor:     auth.AmountMinor,
		Currency:        auth.Currency,
		State:           state,
	}, nil
}

// Return is what the gateway redirect carried back.
type Return struct {
	// ClientReference is the authorization identifier from the redirect
	// query. Empty means the redirect was malformed.
	ClientReference string

	// StatusHint is the gateway's advisory status query parameter. It is
	// never trusted; the authoritative status comes from retrieval.
	StatusHint string
}

// Result is the terminal outcome of one settlement attempt.
type Result struct {
	State  State
	Reason FailureReason

	// RecoveryReference is set on post-payment failures. It is the
	// authorization ID the customer or an operator quotes to reconcile a
	// paid-but-orderless checkout by hand.
	RecoveryReference string

	Order         *domain.Order
	Authorization *payment.Authorization
}

// Failed reports whether the attempt ended without an order.
func (r *Result) Failed() bool {
	return r.State != StateOrderCreated
}

// Resume settles a checkout after the customer returns from the gateway.
// It retrieves the authoritative payment status, and on a settled payment
// creates the order and clears the session. The returned Result is
// terminal either way; the error return is reserved for faults where the
// payment state itself could not be determined.
func (e *Engine) Resume(ctx context.Context, store session.Store, ret Return) (*Result, error) {
	const op = "settlement.resume"

	if ret.ClientReference == "" {
		e.logger.Warn().Str("status_hint", ret.StatusHint).Msg("Malformed gateway return, no client reference")
		e.countFailure(ReasonInvalidReturn)
		e.publishFailure(ctx, events.SettlementFailed{Reason: ReasonInvalidReturn.String()})
		return &Result{State: StatePaymentFailed, Reason: ReasonInvalidReturn}, nil
	}

	auth, err := e.retrieveStatus(ctx, ret.ClientReference)
	if errors.Is(err, payment.ErrAuthorizationNotFound) {
		e.logger.Warn().Str("client_reference", ret.ClientReference).Msg("Gateway does not know the returned reference")
		e.countFailure(ReasonInvalidReturn)
		e.publishFailure(ctx, events.SettlementFailed{Reason: ReasonInvalidReturn.String()})
		return &Result{State: StatePaymentFailed, Reason: ReasonInvalidReturn}, nil
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, op, "could not determine payment status")
	}

	if e.metrics != nil {
		e.metrics.PaymentStatuses.WithLabelValues(string(auth.Status)).Inc()
	}

	state := StateAwaitingGatewayConfirmation
	logger := e.logger.With().
		Str("authorization_id", auth.ID).
		Str("payment_status", string(auth.Status)).
		Logger()

	switch {
	case auth.Status.SettledOK():
		state = e.advance(state, StatePaymentSucceeded, auth.ID)
	case auth.Status == payment.StatusRequiresAction:
		state = e.advance(state, StatePaymentRequiresAction, auth.ID)
		logger.Info().Msg("Payment needs a customer challenge, no order created")
		e.failTerminal(ctx, auth, ReasonActionRequired, "")
		return &Result{State: state, Reason: ReasonActionRequired, Authorization: auth}, nil
	default:
		// requires_payment_method and failed both mean the customer was
		// not charged.
		state = e.advance(state, StatePaymentFailed, auth.ID)
		logger.Info().Msg("Payment declined, no order created")
		e.failTerminal(ctx, auth, ReasonPaymentDeclined, "")
		return &Result{State: state, Reason: ReasonPaymentDeclined, Authorization: auth}, nil
	}

	// Money has moved. From here every failure must surface the
	// authorization ID as the recovery reference.
	checkout, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			logger.Error().Err(err).Msg("Session store read failed after settled payment")
		}
		state = e.advance(state, StateOrderCreationFailed, auth.ID)
		logger.Error().Msg("Checkout session lost after settled payment, manual recovery required")
		e.failTerminal(ctx, auth, ReasonSessionLost, auth.ID)
		return &Result{State: state, Reason: ReasonSessionLost, RecoveryReference: auth.ID, Authorization: auth}, nil
	}

	if checkout.AuthorizationID != "" && checkout.AuthorizationID != auth.ID {
		// A stale session from an earlier attempt. Proceeding is
		// preferred to stalling a paid customer; the mismatch is kept
		// visible for audit.
		logger.Warn().
			Str("session_authorization_id", checkout.AuthorizationID).
			Msg("Session correlation mismatch, proceeding with confirmed authorization")
	}

	state = e.advance(state, StateOrderCreating, auth.ID)

	order, err := e.commerce.CreateOrder(ctx, commerce.CreateOrderParams{
		Billing:            checkout.Billing,
		Shipping:           checkout.Shipping,
		Items:              checkout.Items,
		ShippingSelection:  checkout.ShippingSelection,
		PaymentMethod:      checkout.PaymentMethod,
		PaymentMethodTitle: checkout.PaymentMethodTitle,
		CustomerNote:       checkout.CustomerNote,
		CouponCode:         couponCode(checkout),
		Currency:           auth.Currency,
		SetPaid:            auth.Status == payment.StatusSucceeded,
		TransactionID:      auth.ID,
	})
	if err != nil {
		state = e.advance(state, StateOrderCreationFailed, auth.ID)
		logger.Error().Err(err).Msg("Order creation failed after settled payment, manual recovery required")
		e.failTerminal(ctx, auth, ReasonOrderCreateFailed, auth.ID)
		return &Result{State: state, Reason: ReasonOrderCreateFailed, RecoveryReference: auth.ID, Authorization: auth}, nil
	}

	state = e.advance(state, StateOrderCreated, auth.ID)

	// The order exists; a failed session clear must not fail the
	// checkout. Clear is idempotent, so a retry on the next request is
	// harmless.
	if err := store.Clear(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear checkout session after order creation")
	}

	if e.metrics != nil {
		e.metrics.CheckoutCompleted.Inc()
		e.metrics.SettlementResults.WithLabelValues(state.String()).Inc()
		e.metrics.OrderValue.Observe(order.Total.InexactFloat64())
	}
	e.record(ctx, journal.Entry{
		AuthorizationID: auth.ID,
		State:           state.String(),
		OrderID:         order.ID,
		OrderNumber:     order.Number,
		AmountMinor:     auth.AmountMinor,
		Currency:        auth.Currency,
	})
	if err := e.events.PublishOrderCreated(ctx, events.OrderCreated{
		AuthorizationID: auth.ID,
		OrderID:         order.ID,
		OrderNumber:     order.Number,
		AmountMinor:     auth.AmountMinor,
		Currency:        auth.Currency,
		Paid:            order.SetPaid,
		OccurredAt:      time.Now().UTC(),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish order created event")
	}

	logger.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.Number).
		Bool("paid", order.SetPaid).
		Msg("Checkout settled")

	return &Result{State: state, Order: order, Authorization: auth}, nil
}

// retrieveStatus fetches the authoritative authorization status, retrying
// transient gateway failures with a bounded fibonacci backoff.
func (e *Engine) retrieveStatus(ctx context.Context, clientReference string) (*payment.Authorization, error) {
	var auth *payment.Authorization

	backoff := retry.WithMaxRetries(statusRetryMax, retry.NewFibonacci(statusRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		auth, err = e.payments.RetrieveAuthorization(ctx, clientReference)
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			if e.metrics != nil {
				e.metrics.GatewayRetries.Inc()
			}
			e.logger.Warn().Str("client_reference", clientReference).Msg("Gateway unavailable, retrying status lookup")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// advance applies one legal transition, logging any attempt to step off
// the transition table. The table is the authority; a skipped edge is a
// programming error worth a loud log line, not a customer-facing failure.
func (e *Engine) advance(from, to State, ref string) State {
	if !CanTransition(from, to) {
		e.logger.Error().
			Str("from", from.String()).
			Str("to", to.String()).
			Str("ref", ref).
			Msg("Illegal settlement transition")
	}
	return to
}

// failTerminal records a failed terminal state in metrics, the journal
// and the event stream.
func (e *Engine) failTerminal(ctx context.Context, auth *payment.Authorization, reason FailureReason, recoveryRef string) {
	e.countFailure(reason)
	e.record(ctx, journal.Entry{
		AuthorizationID: auth.ID,
		State:           terminalStateFor(reason).String(),
		FailureReason:   reason.String(),
		AmountMinor:     auth.AmountMinor,
		Currency:        auth.Currency,
	})
	e.publishFailure(ctx, events.SettlementFailed{
		AuthorizationID:   auth.ID,
		Reason:            reason.String(),
		RecoveryReference: recoveryRef,
	})
}

func (e *Engine) countFailure(reason FailureReason) {
	if e.metrics == nil {
		return
	}
	e.metrics.SettlementFailed.WithLabelValues(reason.String()).Inc()
	e.metrics.SettlementResults.WithLabelValues(terminalStateFor(reason).String()).Inc()
}

func (e *Engine) record(ctx context.Context, entry journal.Entry) {
	if err := e.journal.Record(ctx, entry); err != nil {
		e.logger.Warn().Err(err).
			Str("authorization_id", entry.AuthorizationID).
			Msg("Failed to record settlement journal entry")
	}
}

func (e *Engine) publishFailure(ctx context.Context, event events.SettlementFailed) {
	event.OccurredAt = time.Now().UTC()
	if err := e.events.PublishSettlementFailed(ctx, event); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to publish settlement failed event")
	}
}

func terminalStateFor(reason FailureReason) State {
	switch reason {
	case ReasonSessionLost, ReasonOrderCreateFailed:
		return StateOrderCreationFailed
	case ReasonActionRequired:
		return StatePaymentRequiresAction
	default:
		return StatePaymentFailed
	}
}

// cartFingerprint hashes the line items into a stable identifier stamped
// on the authorization's metadata, so a payment can be matched to the
// cart contents it was created for.
func cartFingerprint(items []domain.LineItem) string {
	payload, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func couponCode(s *domain.CheckoutSession) string {
	if s.Coupon == nil {
		return ""
	}
	return s.Coupon.Code
}
