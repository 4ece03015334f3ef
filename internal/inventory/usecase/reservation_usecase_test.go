package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	databaseMocks "github.com/allisson/checkout/internal/database/mocks"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
	"github.com/allisson/checkout/internal/testutil"
)

type fixture struct {
	stock        *memoryStock
	reservations *memoryReservations
	outbox       *recordingOutbox
	ledger       *memoryLedger
	uc           *reservationUseCase
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stock:        newMemoryStock(),
		reservations: newMemoryReservations(),
		outbox:       &recordingOutbox{},
		ledger:       newMemoryLedger(),
		now:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	uc := NewReservationUseCase(
		Config{TTL: 30 * time.Minute, SweepInterval: 10 * time.Millisecond, SweepBatch: 10},
		databaseMocks.NewMockTxManager(t).Passthrough(),
		f.stock,
		f.reservations,
		f.outbox,
		f.ledger,
		testutil.DiscardLogger(),
	).(*reservationUseCase)
	uc.now = func() time.Time { return f.now }
	f.uc = uc
	return f
}

func request(orderID uuid.UUID, items ...domain.ReservationItem) domain.ReserveRequest {
	return domain.ReserveRequest{OrderID: orderID, Items: items}
}

func TestReserve_HoldsEveryItem(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	f.stock.set(a, 5, 0)
	f.stock.set(b, 1, 0)
	orderID := uuid.Must(uuid.NewV7())

	r, err := f.uc.Reserve(context.Background(),
		request(orderID, domain.ReservationItem{VariantID: a, Quantity: 2}, domain.ReservationItem{VariantID: b, Quantity: 1}))

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReserved, r.Status)
	assert.Equal(t, f.now.Add(30*time.Minute), r.ExpiresAt)
	assert.Equal(t, 2, f.stock.snapshot(a).Reserved)
	assert.Equal(t, 1, f.stock.snapshot(b).Reserved)
	assert.Equal(t, []string{"inventory.reservation.reserved"}, f.outbox.routingKeys())
}

func TestReserve_ShortageGivesBackHeldItems(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	f.stock.set(a, 5, 0)
	f.stock.set(b, 1, 1)

	r, err := f.uc.Reserve(context.Background(), request(uuid.Must(uuid.NewV7()),
		domain.ReservationItem{VariantID: a, Quantity: 2}, domain.ReservationItem{VariantID: b, Quantity: 1}))

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, r.Status)
	assert.Equal(t, 0, f.stock.snapshot(a).Reserved)
	assert.Equal(t, 1, f.stock.snapshot(b).Reserved)
	assert.Equal(t, []string{"inventory.reservation.failed"}, f.outbox.routingKeys())
}

func TestReserve_IsIdempotentPerOrder(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	req := request(uuid.Must(uuid.NewV7()), domain.ReservationItem{VariantID: variant, Quantity: 2})

	first, err := f.uc.Reserve(context.Background(), req)
	require.NoError(t, err)
	second, err := f.uc.Reserve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, f.stock.snapshot(variant).Reserved)
	assert.Len(t, f.outbox.routingKeys(), 1)
}

func TestReserve_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Reserve(context.Background(), request(uuid.Must(uuid.NewV7()),
		domain.ReservationItem{VariantID: uuid.Must(uuid.NewV7()), Quantity: 0}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, f.outbox.routingKeys())
}

func TestReserve_AdjusterError(t *testing.T) {
	f := newFixture(t)
	f.stock.fail = errors.New("db down")

	_, err := f.uc.Reserve(context.Background(), request(uuid.Must(uuid.NewV7()),
		domain.ReservationItem{VariantID: uuid.Must(uuid.NewV7()), Quantity: 1}))
	assert.ErrorIs(t, err, f.stock.fail)
	assert.Empty(t, f.outbox.routingKeys())
}

// TestReserve_ConcurrentOrdersNeverOversell races two orders for 3 units each
// of a variant with 5 in stock.
func TestReserve_ConcurrentOrdersNeverOversell(t *testing.T) {
	for range 50 {
		f := newFixture(t)
		variant := uuid.Must(uuid.NewV7())
		f.stock.set(variant, 5, 0)

		var (
			wg       sync.WaitGroup
			statuses = make([]domain.ReservationStatus, 2)
		)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := f.uc.Reserve(context.Background(),
					request(uuid.Must(uuid.NewV7()), domain.ReservationItem{VariantID: variant, Quantity: 3}))
				if assert.NoError(t, err) {
					statuses[i] = r.Status
				}
			}()
		}
		wg.Wait()

		assert.ElementsMatch(t, []domain.ReservationStatus{domain.ReservationReserved, domain.ReservationReleased}, statuses)
		stock := f.stock.snapshot(variant)
		assert.Equal(t, 3, stock.Reserved)
		assert.LessOrEqual(t, stock.Reserved, stock.TotalStock)
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	orderID := uuid.Must(uuid.NewV7())

	_, err := f.uc.Reserve(context.Background(), request(orderID, domain.ReservationItem{VariantID: variant, Quantity: 2}))
	require.NoError(t, err)

	r, err := f.uc.Confirm(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, r.Status)
	assert.Equal(t, domain.Stock{VariantID: variant, TotalStock: 3, Reserved: 0}, f.stock.snapshot(variant))

	_, err = f.uc.Confirm(context.Background(), orderID)
	assert.ErrorIs(t, err, domain.ErrInvalidReservationTransition)
	_, err = f.uc.Release(context.Background(), orderID)
	assert.ErrorIs(t, err, domain.ErrInvalidReservationTransition)
	assert.Equal(t, 3, f.stock.snapshot(variant).TotalStock)

	assert.Equal(t, []string{"inventory.reservation.reserved", "inventory.reservation.confirmed"}, f.outbox.routingKeys())
}

func TestConfirm_BeforeReserveIsAppliedOnReserve(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	orderID := uuid.Must(uuid.NewV7())

	r, err := f.uc.Confirm(context.Background(), orderID)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Empty(t, f.outbox.routingKeys())

	r, err = f.uc.Reserve(context.Background(), request(orderID, domain.ReservationItem{VariantID: variant, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, r.Status)
	assert.Equal(t, domain.Stock{VariantID: variant, TotalStock: 3, Reserved: 0}, f.stock.snapshot(variant))
	assert.Equal(t, []string{"inventory.reservation.reserved", "inventory.reservation.confirmed"}, f.outbox.routingKeys())

	f.now = f.now.Add(time.Hour)
	expired, err := f.uc.ExpireDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, domain.Stock{VariantID: variant, TotalStock: 3, Reserved: 0}, f.stock.snapshot(variant))
}

func TestConfirm_BeforeReserveWithShortage(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 1, 0)
	orderID := uuid.Must(uuid.NewV7())

	_, err := f.uc.Confirm(context.Background(), orderID)
	require.NoError(t, err)

	r, err := f.uc.Reserve(context.Background(), request(orderID, domain.ReservationItem{VariantID: variant, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, r.Status)
	assert.Equal(t, domain.Stock{VariantID: variant, TotalStock: 1, Reserved: 0}, f.stock.snapshot(variant))
	assert.Equal(t, []string{"inventory.reservation.failed"}, f.outbox.routingKeys())
}

func TestRelease_BeforeReserveNeverHoldsStock(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	orderID := uuid.Must(uuid.NewV7())

	r, err := f.uc.Release(context.Background(), orderID)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = f.uc.Reserve(context.Background(), request(orderID, domain.ReservationItem{VariantID: variant, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, r.Status)
	assert.Equal(t, domain.Stock{VariantID: variant, TotalStock: 5, Reserved: 0}, f.stock.snapshot(variant))
	assert.Equal(t, []string{"inventory.reservation.released"}, f.outbox.routingKeys())
}

func TestTransition_LedgerError(t *testing.T) {
	f := newFixture(t)
	failing := &failingLedger{err: errors.New("db down")}
	f.uc.outcomes = failing

	_, err := f.uc.Confirm(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, failing.err)
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	orderID := uuid.Must(uuid.NewV7())

	_, err := f.uc.Reserve(context.Background(), request(orderID, domain.ReservationItem{VariantID: variant, Quantity: 4}))
	require.NoError(t, err)

	r, err := f.uc.Release(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, r.Status)
	assert.Equal(t, 0, f.stock.snapshot(variant).Reserved)
	assert.Equal(t, 5, f.stock.snapshot(variant).TotalStock)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)

	dueOrder := uuid.Must(uuid.NewV7())
	_, err := f.uc.Reserve(context.Background(), domain.ReserveRequest{
		OrderID:   dueOrder,
		Items:     []domain.ReservationItem{{VariantID: variant, Quantity: 2}},
		ExpiresAt: f.now.Add(time.Minute),
	})
	require.NoError(t, err)

	laterOrder := uuid.Must(uuid.NewV7())
	_, err = f.uc.Reserve(context.Background(), domain.ReserveRequest{
		OrderID:   laterOrder,
		Items:     []domain.ReservationItem{{VariantID: variant, Quantity: 1}},
		ExpiresAt: f.now.Add(time.Hour),
	})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	expired, err := f.uc.ExpireDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	due, _ := f.reservations.GetByOrderID(context.Background(), dueOrder)
	later, _ := f.reservations.GetByOrderID(context.Background(), laterOrder)
	assert.Equal(t, domain.ReservationExpired, due.Status)
	assert.Equal(t, domain.ReservationReserved, later.Status)
	assert.Equal(t, 1, f.stock.snapshot(variant).Reserved)
	assert.Contains(t, f.outbox.routingKeys(), "inventory.reservation.expired")
}

func TestRunSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())
	f.stock.set(variant, 5, 0)
	orderID := uuid.Must(uuid.NewV7())
	_, err := f.uc.Reserve(context.Background(), domain.ReserveRequest{
		OrderID:   orderID,
		Items:     []domain.ReservationItem{{VariantID: variant, Quantity: 2}},
		ExpiresAt: f.now.Add(-time.Second),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.uc.RunSweeper(ctx) }()

	assert.Eventually(t, func() bool {
		return f.stock.snapshot(variant).Reserved == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRestock(t *testing.T) {
	f := newFixture(t)
	variant := uuid.Must(uuid.NewV7())

	stock, err := f.uc.Restock(context.Background(), variant, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, stock.TotalStock)

	stock, err = f.uc.Restock(context.Background(), variant, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Available())

	_, err = f.uc.Restock(context.Background(), variant, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.uc.Restock(context.Background(), uuid.Nil, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
