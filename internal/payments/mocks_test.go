package payments

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/localchefbazaar/bazaar/internal/orders"
)

type OrderServiceMock struct {
	mock.Mock
}

func (m *OrderServiceMock) CheckoutOrder(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *OrderServiceMock) ConfirmPayment(ctx context.Context, id string, c orders.Confirmation) (*orders.Order, bool, error) {
	args := m.Called(ctx, id, c)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*orders.Order), args.Bool(1), args.Error(2)
}

type ProcessorMock struct {
	mock.Mock
}

func (m *ProcessorMock) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Session), args.Error(1)
}

func (m *ProcessorMock) ParseEvent(payload []byte, signature string) (Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(Event), args.Error(1)
}

type MarkerMock struct {
	mock.Mock
}

func (m *MarkerMock) Seen(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MarkerMock) Mark(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
