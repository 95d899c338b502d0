package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pmorrisey/njord/internal/crypto"
	"github.com/pmorrisey/njord/internal/domain"
)

// CookieStore persists the checkout session as AES-256-GCM-encrypted JSON
// in a browser-session cookie scoped to the storefront origin. The cookie
// survives the full-page round trip to the payment gateway but is gone
// with the browser session, matching the session's intended lifetime.
//
// A CookieStore is constructed per request; it reads from and writes to
// the request's echo context.
type CookieStore struct {
	c      echo.Context
	enc    crypto.Encryptor
	secure bool
}

// NewCookieStore creates a cookie-backed session store bound to one request.
func NewCookieStore(c echo.Context, enc crypto.Encryptor, secure bool) *CookieStore {
	return &CookieStore{c: c, enc: enc, secure: secure}
}

// Save seals the session and sets it as the checkout cookie, overwriting
// any prior session.
func (s *CookieStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "session.save", "failed to serialize checkout session")
	}

	sealed, err := s.enc.Encrypt(payload)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "session.save", "failed to encrypt checkout session")
	}

	s.c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    string(sealed),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Load reads the checkout cookie and unseals the session. A missing,
// undecryptable, or malformed cookie reports domain.ErrSessionNotFound:
// a tampered session is as unusable as an absent one.
func (s *CookieStore) Load(ctx context.Context) (*domain.CheckoutSession, error) {
	cookie, err := s.c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrSessionNotFound
	}

	payload, err := s.enc.Decrypt([]byte(cookie.Value))
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// Clear expires the checkout cookie. Clearing an absent cookie is a no-op.
func (s *CookieStore) Clear(ctx context.Context) error {
	s.c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
