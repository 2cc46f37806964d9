package http

import (
	"context"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/service"
)

// MockCheckoutService implements service.CheckoutService for testing
type MockCheckoutService struct {
	Result     *service.Result
	Order      *domain.Order
	Err        error
	Submission map[string]any
	Ack        map[string]any
	OrderID    string
}

func (m *MockCheckoutService) Checkout(_ context.Context, raw map[string]any, ack map[string]any) (*service.Result, error) {
	m.Submission = raw
	m.Ack = ack
	return m.Result, m.Err
}

func (m *MockCheckoutService) Commit(context.Context, *domain.CheckoutPayload, domain.PaymentAck) (*service.Result, error) {
	return m.Result, m.Err
}

func (m *MockCheckoutService) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.OrderID = id
	return m.Order, m.Err
}
