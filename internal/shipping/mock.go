package shipping

import "context"

// MockProvider implements Provider for tests.
type MockProvider struct {
	GetRatesFunc func(ctx context.Context, params RateParams) ([]Rate, error)

	// Calls counts GetRates invocations.
	Calls int
}

func (m *MockProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	m.Calls++
	if m.GetRatesFunc != nil {
		return m.GetRatesFunc(ctx, params)
	}
	return nil, ErrNotServiceable
}
