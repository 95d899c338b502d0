package commerce

import (
	"context"
	"fmt"
	"sync"

	"github.com/pmorrisey/njord/internal/domain"
)

// MockClient implements Client for tests. Set the function fields to
// control behavior; unset fields fall back to a simple in-memory backend.
type MockClient struct {
	CreateOrderFunc    func(ctx context.Context, params CreateOrderParams) (*domain.Order, error)
	GetOrderFunc       func(ctx context.Context, id int64) (*domain.Order, error)
	ValidateCouponFunc func(ctx context.Context, code string) (*domain.Coupon, error)

	mu      sync.Mutex
	nextID  int64
	Orders  map[int64]*domain.Order
	Coupons map[string]*domain.Coupon

	// CallLog records method invocations in order.
	CallLog []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Orders:  make(map[int64]*domain.Order),
		Coupons: make(map[string]*domain.Coupon),
	}
}

func (m *MockClient) log(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

// Calls returns a copy of the call log.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.CallLog))
	copy(out, m.CallLog)
	return out
}

func (m *MockClient) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	m.log("CreateOrder")
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	order := &domain.Order{
		ID:            m.nextID,
		Number:        fmt.Sprintf("%d", 10000+m.nextID),
		Status:        "processing",
		Currency:      params.Currency,
		Items:         params.Items,
		Billing:       params.Billing,
		Shipping:      params.Shipping,
		TransactionID: params.TransactionID,
		SetPaid:       params.SetPaid,
	}
	m.Orders[order.ID] = order
	return order, nil
}

func (m *MockClient) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.log("GetOrder")
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.Orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (m *MockClient) ValidateCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	m.log("ValidateCoupon")
	if m.ValidateCouponFunc != nil {
		return m.ValidateCouponFunc(ctx, code)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	coupon, ok := m.Coupons[code]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return coupon, nil
}
