package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrisey/njord/internal/commerce"
	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/events"
	"github.com/pmorrisey/njord/internal/journal"
	"github.com/pmorrisey/njord/internal/payment"
	"github.com/pmorrisey/njord/internal/session"
	"github.com/pmorrisey/njord/internal/settlement"
)

type fixture struct {
	engine   *settlement.Engine
	payments *payment.MockProvider
	backend  *commerce.MockClient
	journal  *journal.MemoryJournal
	events   *events.RecordingPublisher
	store    *session.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		payments: payment.NewMockProvider(),
		backend:  commerce.NewMockClient(),
		journal:  journal.NewMemoryJournal(),
		events:   &events.RecordingPublisher{},
		store:    session.NewMemoryStore(),
	}

	engine, err := settlement.NewEngine(settlement.Config{
		Payments: f.payments,
		Commerce: f.backend,
		Journal:  f.journal,
		Events:   f.events,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func checkoutSession() *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID: "sess_1",
		Billing: domain.Address{
			FirstName: "Astrid", LastName: "Berg",
			Line1: "Storgata 1", City: "Oslo", PostalCode: "0155", Country: "NO",
			Email: "astrid@example.com",
		},
		Shipping: domain.Address{
			FirstName: "Astrid", LastName: "Berg",
			Line1: "Storgata 1", City: "Oslo", PostalCode: "0155", Country: "NO",
		},
		ShippingSelection: domain.ShippingSelection{
			MethodID: "flat_rate_standard", Label: "Standard shipping", Cost: decimal.NewFromInt(30),
		},
		PaymentMethod:      "njord",
		PaymentMethodTitle: "Card",
		Items: []domain.LineItem{
			{ProductID: "42", Name: "Dark roast 250g", UnitPrice: decimal.NewFromInt(100), Quantity: 1, TaxClass: domain.TaxClassReduced},
			{ProductID: "43", Name: "Mug", UnitPrice: decimal.NewFromInt(50), Quantity: 1, TaxClass: domain.TaxClassStandard},
		},
	}
}

// begin runs Begin and settles the mock gateway to the given status, as
// the customer would at the gateway's own UI.
func (f *fixture) begin(t *testing.T, status payment.Status) *settlement.BeginResult {
	t.Helper()

	res, err := f.engine.Begin(context.Background(), f.store, settlement.BeginParams{
		Session:    checkoutSession(),
		GrandTotal: decimal.NewFromInt(180),
		Currency:   "nok",
		Email:      "astrid@example.com",
	})
	require.NoError(t, err)
	f.payments.Settle(res.AuthorizationID, status)
	return res
}

func TestEngine_Begin(t *testing.T) {
	f := newFixture(t)
	res := f.begin(t, payment.StatusRequiresPaymentMethod)

	assert.NotEmpty(t, res.AuthorizationID)
	assert.NotEmpty(t, res.ClientSecret)
	assert.Equal(t, int64(18000), res.AmountMinor, "180 NOK in minor units")
	assert.Equal(t, settlement.StateAwaitingGatewayConfirmation, res.State)

	// The persisted session carries the authorization ID for the return leg.
	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.AuthorizationID, stored.AuthorizationID)

	// The authorization carries the correlation metadata.
	auth := f.payments.Authorizations[res.AuthorizationID]
	require.NotNil(t, auth)
	assert.Equal(t, "sess_1", auth.Metadata[payment.MetadataSessionID])
	assert.NotEmpty(t, auth.Metadata[payment.MetadataFingerprint])
}

func TestEngine_Begin_RejectsInvalidParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Begin(ctx, f.store, settlement.BeginParams{
		Session: &domain.CheckoutSession{}, GrandTotal: decimal.NewFromInt(10), Currency: "nok",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "empty cart must be rejected")

	_, err = f.engine.Begin(ctx, f.store, settlement.BeginParams{
		Session: checkoutSession(), GrandTotal: decimal.Zero, Currency: "nok",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "non-positive total must be rejected")

	assert.Empty(t, f.payments.CallLog, "no gateway call for invalid params")
}

func TestEngine_Resume_SucceededCreatesOrderAndClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin := f.begin(t, payment.StatusSucceeded)

	res, err := f.engine.Resume(ctx, f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StateOrderCreated, res.State)
	assert.False(t, res.Failed())
	require.NotNil(t, res.Order)
	assert.Equal(t, begin.AuthorizationID, res.Order.TransactionID)
	assert.True(t, res.Order.SetPaid)

	// Session is gone afterward, and clearing again stays a no-op.
	_, err = f.store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoError(t, f.store.Clear(ctx))

	// Order created event published with the correlation reference.
	require.Len(t, f.events.Created, 1)
	assert.Equal(t, begin.AuthorizationID, f.events.Created[0].AuthorizationID)
	assert.True(t, f.events.Created[0].Paid)
}

func TestEngine_Resume_ProcessingCreatesUnpaidOrder(t *testing.T) {
	f := newFixture(t)
	begin := f.begin(t, payment.StatusProcessing)

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StateOrderCreated, res.State)
	require.NotNil(t, res.Order)
	assert.False(t, res.Order.SetPaid, "a processing payment settles the order unpaid")
}

func TestEngine_Resume_DeclinedNeverCreatesOrder(t *testing.T) {
	f := newFixture(t)
	begin := f.begin(t, payment.StatusRequiresPaymentMethod)

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StatePaymentFailed, res.State)
	assert.Equal(t, settlement.ReasonPaymentDeclined, res.Reason)
	assert.Empty(t, f.backend.Calls(), "no order call for a failed payment")

	// The session survives so the customer can retry.
	_, err = f.store.Load(context.Background())
	assert.NoError(t, err)
}

func TestEngine_Resume_RequiresAction(t *testing.T) {
	f := newFixture(t)
	begin := f.begin(t, payment.StatusRequiresAction)

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StatePaymentRequiresAction, res.State)
	assert.Equal(t, settlement.ReasonActionRequired, res.Reason)
	assert.Empty(t, f.backend.Calls())
}

func TestEngine_Resume_LostSessionAfterSettledPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin := f.begin(t, payment.StatusSucceeded)

	// The browser lost its storage between redirect out and return.
	require.NoError(t, f.store.Clear(ctx))

	res, err := f.engine.Resume(ctx, f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StateOrderCreationFailed, res.State)
	assert.Equal(t, settlement.ReasonSessionLost, res.Reason)
	assert.Equal(t, begin.AuthorizationID, res.RecoveryReference,
		"the paid customer must get the authorization ID as their recovery key")
	assert.Empty(t, f.backend.Calls(), "nothing to order without the session")

	// The failure is durable in the journal for operator recovery.
	failures, err := f.journal.ListFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, begin.AuthorizationID, failures[0].AuthorizationID)
	assert.Equal(t, settlement.ReasonSessionLost.String(), failures[0].FailureReason)

	require.Len(t, f.events.Failed, 1)
	assert.Equal(t, begin.AuthorizationID, f.events.Failed[0].RecoveryReference)
}

func TestEngine_Resume_OrderCreationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin := f.begin(t, payment.StatusSucceeded)

	f.backend.CreateOrderFunc = func(ctx context.Context, params commerce.CreateOrderParams) (*domain.Order, error) {
		return nil, commerce.ErrBackendUnavailable
	}

	res, err := f.engine.Resume(ctx, f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StateOrderCreationFailed, res.State)
	assert.Equal(t, settlement.ReasonOrderCreateFailed, res.Reason)
	assert.Equal(t, begin.AuthorizationID, res.RecoveryReference)

	// The session is kept; with the authorization ID an operator can
	// still reconstruct the order.
	_, err = f.store.Load(ctx)
	assert.NoError(t, err)

	failures, err := f.journal.ListFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, settlement.ReasonOrderCreateFailed.String(), failures[0].FailureReason)
}

func TestEngine_Resume_CorrelationMismatchStillSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin := f.begin(t, payment.StatusSucceeded)

	// A stale session from an earlier attempt points elsewhere.
	stale, err := f.store.Load(ctx)
	require.NoError(t, err)
	stale.AuthorizationID = "pi_stale"
	require.NoError(t, f.store.Save(ctx, stale))

	res, err := f.engine.Resume(ctx, f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, settlement.StateOrderCreated, res.State,
		"a paid customer is settled even when the session points at an older authorization")
	assert.Equal(t, begin.AuthorizationID, res.Order.TransactionID)
}

func TestEngine_Resume_MissingClientReference(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{StatusHint: "succeeded"})
	require.NoError(t, err)

	assert.Equal(t, settlement.StatePaymentFailed, res.State)
	assert.Equal(t, settlement.ReasonInvalidReturn, res.Reason)
	assert.Empty(t, f.payments.CallLog, "a malformed return must not contact the gateway")
	assert.Empty(t, f.backend.Calls())
}

func TestEngine_Resume_UnknownReference(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: "pi_unknown"})
	require.NoError(t, err)

	assert.Equal(t, settlement.StatePaymentFailed, res.State)
	assert.Equal(t, settlement.ReasonInvalidReturn, res.Reason)
}

func TestEngine_Resume_RetriesTransientGatewayFailure(t *testing.T) {
	f := newFixture(t)
	begin := f.begin(t, payment.StatusSucceeded)

	attempts := 0
	f.payments.RetrieveAuthorizationFunc = func(ctx context.Context, ref string) (*payment.Authorization, error) {
		attempts++
		if attempts < 3 {
			return nil, payment.ErrGatewayUnavailable
		}
		return f.payments.Authorizations[ref], nil
	}

	res, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.NoError(t, err)

	assert.Equal(t, 3, attempts, "transient failures are retried")
	assert.Equal(t, settlement.StateOrderCreated, res.State)
}

func TestEngine_Resume_GatewayStaysDown(t *testing.T) {
	f := newFixture(t)
	begin := f.begin(t, payment.StatusSucceeded)

	attempts := 0
	f.payments.RetrieveAuthorizationFunc = func(ctx context.Context, ref string) (*payment.Authorization, error) {
		attempts++
		return nil, payment.ErrGatewayUnavailable
	}

	_, err := f.engine.Resume(context.Background(), f.store, settlement.Return{ClientReference: begin.AuthorizationID})
	require.Error(t, err, "an undeterminable payment state is an error, not a terminal result")
	assert.True(t, errors.Is(err, payment.ErrGatewayUnavailable))
	assert.Equal(t, 5, attempts, "initial attempt plus four bounded retries")
	assert.Empty(t, f.backend.Calls())
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := settlement.NewEngine(settlement.Config{Commerce: commerce.NewMockClient()})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = settlement.NewEngine(settlement.Config{Payments: payment.NewMockProvider()})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
