// Package session holds the in-progress checkout between the submit of the
// checkout form and the return from the payment gateway. The store survives
// a full-page redirect away from and back to the origin, which rules out
// plain process memory in production; implementations are an encrypted
// cookie, a Redis-backed entry keyed by a short-lived ID, and an in-memory
// holder for tests.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/pmorrisey/njord/internal/domain"
)

// Store is the checkout session port. Exactly one session is active per
// customer at a time: Save overwrites any prior session, Load returns
// domain.ErrSessionNotFound when absent, and Clear is idempotent.
//
// The reconciliation engine only sees this interface; whether the session
// rides a cookie, Redis, or test memory is the caller's wiring decision.
type Store interface {
	Save(ctx context.Context, session *domain.CheckoutSession) error
	Load(ctx context.Context) (*domain.CheckoutSession, error)
	Clear(ctx context.Context) error
}

// Cookie names used by the session implementations.
const (
	// SessionCookieName carries the encrypted checkout session itself.
	SessionCookieName = "njord_checkout"

	// SessionIDCookieName carries the opaque ID for server-side stores.
	SessionIDCookieName = "njord_checkout_id"
)

// GenerateSessionID generates a cryptographically secure session ID.
// Uses 32 bytes of random data encoded as a base64 URL-safe string.
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return base64.URLEncoding.EncodeToString(b), nil
}
