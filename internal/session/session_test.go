package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorrisey/njord/internal/crypto"
	"github.com/pmorrisey/njord/internal/domain"
	"github.com/pmorrisey/njord/internal/session"
)

func testSession() *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID: "sess_test_1",
		Billing: domain.Address{
			FirstName:  "Astrid",
			LastName:   "Berg",
			Line1:      "Storgata 1",
			City:       "Oslo",
			PostalCode: "0155",
			Country:    "NO",
			Email:      "astrid@example.com",
		},
		PaymentMethod:      "card",
		PaymentMethodTitle: "Credit card",
		Items: []domain.LineItem{
			{ProductID: "11", Name: "Dark roast 250g", UnitPrice: decimal.NewFromInt(129), Quantity: 2, TaxClass: domain.TaxClassReduced},
		},
		AuthorizationID: "pi_test_123",
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	// Empty store reports no session.
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound,
		"loading before save should report session not found")

	want := testSession()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.AuthorizationID, got.AuthorizationID)
	assert.Len(t, got.Items, 1)

	// Mutating the loaded copy must not affect the stored session.
	got.AuthorizationID = "pi_other"
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_123", again.AuthorizationID,
		"store should hand out copies, not shared state")
}

func TestMemoryStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	require.NoError(t, store.Save(ctx, testSession()))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing an empty store should succeed")

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func newEncryptor(t *testing.T) crypto.Encryptor {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)
	return enc
}

// echoContext builds an echo context for req and returns it with its recorder.
func echoContext(t *testing.T, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestCookieStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	enc := newEncryptor(t)

	// Save on the first request.
	saveCtx, rec := echoContext(t, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	store := session.NewCookieStore(saveCtx, enc, true)

	want := testSession()
	require.NoError(t, store.Save(ctx, want))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, session.SessionCookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Zero(t, cookie.MaxAge, "session cookie must not carry an expiry")

	// Load on a later request, as the browser would send it back after
	// the gateway redirect.
	req := httptest.NewRequest(http.MethodGet, "/checkout/return", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	loadCtx, _ := echoContext(t, req)

	got, err := session.NewCookieStore(loadCtx, enc, true).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.AuthorizationID, got.AuthorizationID)
	assert.Equal(t, want.Billing.Email, got.Billing.Email)
	require.Len(t, got.Items, 1)
	assert.True(t, want.Items[0].UnitPrice.Equal(got.Items[0].UnitPrice))
}

func TestCookieStore_MissingCookie(t *testing.T) {
	c, _ := echoContext(t, httptest.NewRequest(http.MethodGet, "/checkout/return", nil))
	store := session.NewCookieStore(c, newEncryptor(t), true)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCookieStore_TamperedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/checkout/return", nil)
	req.AddCookie(&http.Cookie{Name: session.SessionCookieName, Value: "bm90IGEgcmVhbCBzZXNzaW9u"})
	c, _ := echoContext(t, req)

	_, err := session.NewCookieStore(c, newEncryptor(t), true).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound,
		"a cookie that fails decryption should behave like a missing one")
}

func TestCookieStore_ClearExpiresCookie(t *testing.T) {
	c, rec := echoContext(t, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	store := session.NewCookieStore(c, newEncryptor(t), true)

	require.NoError(t, store.Clear(context.Background()))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestGenerateSessionID(t *testing.T) {
	a, err := session.GenerateSessionID()
	require.NoError(t, err)
	b, err := session.GenerateSessionID()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
