package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/checkout/internal/bus"
	databaseMocks "github.com/allisson/checkout/internal/database/mocks"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
	"github.com/allisson/checkout/internal/metrics"
	"github.com/allisson/checkout/internal/testutil"
)

// MockReservationUseCase is a mock implementation of usecase.ReservationUseCase
type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) Reserve(ctx context.Context, req domain.ReserveRequest) (*domain.Reservation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) Confirm(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) Release(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ExpireDue(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationUseCase) RunSweeper(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReservationUseCase) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*domain.Stock, error) {
	args := m.Called(ctx, variantID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stock), args.Error(1)
}

type noLedger struct{}

func (noLedger) AlreadyProcessed(context.Context, string, string) (bool, error) { return false, nil }
func (noLedger) MarkProcessed(context.Context, string, string) error            { return nil }

func newRouter(t *testing.T, reservations *MockReservationUseCase) *bus.Router {
	router := bus.NewRouter("inventory", noLedger{}, databaseMocks.NewMockTxManager(t).Passthrough(),
		metrics.NewNoOpBusinessMetrics(), testutil.DiscardLogger())
	NewHandler(reservations).Register(router)
	return router
}

func TestHandler_ReserveRequest(t *testing.T) {
	reservations := &MockReservationUseCase{}
	router := newRouter(t, reservations)

	orderID := uuid.Must(uuid.NewV7())
	variantID := uuid.Must(uuid.NewV7())
	expiresAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	reservations.On("Reserve", mock.Anything, domain.ReserveRequest{
		OrderID:   orderID,
		Items:     []domain.ReservationItem{{VariantID: variantID, Quantity: 2}},
		ExpiresAt: expiresAt,
	}).Return(&domain.Reservation{}, nil).Once()

	payload := `{"order_id":"` + orderID.String() + `","items":[{"variant_id":"` + variantID.String() +
		`","quantity":2}],"expires_at":"2024-03-01T12:30:00Z"}`
	err := router.Dispatch(context.Background(), bus.Message{
		Exchange:   "inventory",
		RoutingKey: "inventory.reserve.request",
		Headers:    map[string]string{"message_id": "m-1"},
		Payload:    []byte(payload),
	})

	require.NoError(t, err)
	reservations.AssertExpectations(t)
}

func TestHandler_OrderEvents(t *testing.T) {
	reservations := &MockReservationUseCase{}
	router := newRouter(t, reservations)
	orderID := uuid.Must(uuid.NewV7())
	payload := []byte(`{"order_id":"` + orderID.String() + `"}`)

	reservations.On("Confirm", mock.Anything, orderID).Return(&domain.Reservation{}, nil).Once()
	reservations.On("Release", mock.Anything, orderID).Return(&domain.Reservation{}, nil).Once()

	for i, key := range []string{"order.paid", "order.cancelled"} {
		err := router.Dispatch(context.Background(), bus.Message{
			Exchange:   "orders",
			RoutingKey: key,
			Headers:    map[string]string{"message_id": "m-" + string(rune('a'+i))},
			Payload:    payload,
		})
		require.NoError(t, err)
	}

	reservations.AssertExpectations(t)
}

func TestHandler_PaymentFailedKeepsTheHold(t *testing.T) {
	reservations := &MockReservationUseCase{}
	router := newRouter(t, reservations)
	orderID := uuid.Must(uuid.NewV7())
	payload := []byte(`{"order_id":"` + orderID.String() + `"}`)

	reservations.On("Confirm", mock.Anything, orderID).Return(&domain.Reservation{}, nil).Once()

	for i, key := range []string{"order.payment_failed", "order.paid"} {
		err := router.Dispatch(context.Background(), bus.Message{
			Exchange:   "orders",
			RoutingKey: key,
			Headers:    map[string]string{"message_id": "f-" + string(rune('a'+i))},
			Payload:    payload,
		})
		require.NoError(t, err)
	}

	reservations.AssertExpectations(t)
	reservations.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestHandler_PaidBeforeReservationIsAccepted(t *testing.T) {
	reservations := &MockReservationUseCase{}
	router := newRouter(t, reservations)
	orderID := uuid.Must(uuid.NewV7())

	reservations.On("Confirm", mock.Anything, orderID).Return(nil, nil).Once()

	err := router.Dispatch(context.Background(), bus.Message{
		Exchange:   "orders",
		RoutingKey: "order.paid",
		Headers:    map[string]string{"message_id": "p-1"},
		Payload:    []byte(`{"order_id":"` + orderID.String() + `"}`),
	})

	require.NoError(t, err)
	reservations.AssertExpectations(t)
}

func TestDecodeOrderID(t *testing.T) {
	_, err := decodeOrderID(bus.Message{Payload: []byte(`not json`)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = decodeOrderID(bus.Message{Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHandler_MalformedReserveRequestIsDiscarded(t *testing.T) {
	reservations := &MockReservationUseCase{}
	router := newRouter(t, reservations)

	err := router.Dispatch(context.Background(), bus.Message{
		RoutingKey: "inventory.reserve.request",
		Headers:    map[string]string{"message_id": "m-1"},
		Payload:    []byte(`{`),
	})

	assert.NoError(t, err)
	reservations.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}
