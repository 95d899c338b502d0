package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is an in-memory payment provider for testing. It simulates
// the gateway's authorization lifecycle without any remote calls.
type MockProvider struct {
	// CreateAuthorizationFunc allows customizing creation behavior.
	CreateAuthorizationFunc func(ctx context.Context, params CreateParams) (*Authorization, error)

	// RetrieveAuthorizationFunc allows customizing retrieval behavior.
	RetrieveAuthorizationFunc func(ctx context.Context, clientReference string) (*Authorization, error)

	// Authorizations stores created authorizations for retrieval.
	Authorizations map[string]*Authorization

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Authorizations: make(map[string]*Authorization),
	}
}

// CreateAuthorization creates a mock authorization.
func (m *MockProvider) CreateAuthorization(ctx context.Context, params CreateParams) (*Authorization, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateAuthorization(%d, %s)", params.AmountMinor, params.Currency))

	if m.CreateAuthorizationFunc != nil {
		return m.CreateAuthorizationFunc(ctx, params)
	}

	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, params.AmountMinor)
	}

	auth := &Authorization{
		ID:           "pi_" + uuid.New().String(),
		ClientSecret: "pi_secret_" + uuid.New().String(),
		Status:       StatusRequiresPaymentMethod,
		AmountMinor:  params.AmountMinor,
		Currency:     params.Currency,
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.Authorizations[auth.ID] = auth
	return auth, nil
}

// RetrieveAuthorization returns a stored mock authorization.
func (m *MockProvider) RetrieveAuthorization(ctx context.Context, clientReference string) (*Authorization, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("RetrieveAuthorization(%s)", clientReference))

	if m.RetrieveAuthorizationFunc != nil {
		return m.RetrieveAuthorizationFunc(ctx, clientReference)
	}

	auth, ok := m.Authorizations[clientReference]
	if !ok {
		return nil, ErrAuthorizationNotFound
	}
	return auth, nil
}

// Settle marks a stored authorization with the given terminal status.
// Test helper mirroring the customer completing payment at the gateway.
func (m *MockProvider) Settle(clientReference string, status Status) {
	if auth, ok := m.Authorizations[clientReference]; ok {
		auth.Status = status
	}
}
