// Package usecase implements the inventory reservation consumer: holding,
// confirming, releasing and expiring stock reservations.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/inventory/domain"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// InventoryAdjuster is the atomic stock guard. TryReserve must be a single
// conditional update that changes nothing when it returns false.
type InventoryAdjuster interface {
	TryReserve(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	ReleaseReserved(ctx context.Context, variantID uuid.UUID, qty int) error
	CommitReserved(ctx context.Context, variantID uuid.UUID, qty int) error
	Restock(ctx context.Context, variantID uuid.UUID, qty int) error
	Get(ctx context.Context, variantID uuid.UUID) (*domain.Stock, error)
}

// ReservationRepository defines reservation persistence operations
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	Update(ctx context.Context, reservation *domain.Reservation) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
}

// EventEnqueuer appends aggregate events to the outbox.
type EventEnqueuer interface {
	EnqueueEvents(ctx context.Context, events []outboxDomain.Event) error
}

// OutcomeLedger remembers order outcomes that arrived before the reservation
// they apply to.
type OutcomeLedger interface {
	AlreadyProcessed(ctx context.Context, source, key string) (bool, error)
	MarkProcessed(ctx context.Context, source, key string) error
}

// ReservationUseCase defines the reservation operations. Confirm and Release
// return a nil reservation when the order has none yet; the outcome is then
// recorded and applied by the Reserve call that creates it.
type ReservationUseCase interface {
	Reserve(ctx context.Context, req domain.ReserveRequest) (*domain.Reservation, error)
	Confirm(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error)
	Release(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
	RunSweeper(ctx context.Context) error
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (*domain.Stock, error)
}
