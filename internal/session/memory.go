package session

import (
	"context"
	"sync"

	"github.com/pmorrisey/njord/internal/domain"
)

// MemoryStore holds a single checkout session in process memory. It does
// not survive a redirect, so it is only suitable for tests and local
// development.
type MemoryStore struct {
	mu      sync.Mutex
	session *domain.CheckoutSession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save overwrites any prior session.
func (s *MemoryStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.session = &copied
	return nil
}

// Load returns the stored session or domain.ErrSessionNotFound.
func (s *MemoryStore) Load(ctx context.Context) (*domain.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, domain.ErrSessionNotFound
	}
	copied := *s.session
	return &copied, nil
}

// Clear drops the stored session; clearing an empty store is a no-op.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
