// Package domain defines the inventory reservation aggregate and the stock
// counters it is held against.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/checkout/internal/errors"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// ExchangeInventory is the bus exchange of inventory events.
const ExchangeInventory = "inventory"

// Routing keys of inventory events.
const (
	RoutingKeyReserveRequest      = "inventory.reserve.request"
	RoutingKeyReservationPrefix   = "inventory.reservation."
	RoutingKeyReservationFailed   = RoutingKeyReservationPrefix + "failed"
	RoutingKeyReservationReserved = RoutingKeyReservationPrefix + "reserved"
)

// SourceEarlyOutcome is the ledger source of order outcomes that arrived
// before the reserve request of their order.
const SourceEarlyOutcome = "inventory:early-outcome"

// Order outcomes a reservation can receive ahead of its creation.
const (
	OutcomePaid   = "paid"
	OutcomeClosed = "closed"
)

// EarlyOutcomeKey is the ledger key of an outcome recorded for orderID.
func EarlyOutcomeKey(orderID uuid.UUID, outcome string) string {
	return orderID.String() + ":" + outcome
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

// Reservation statuses. CONFIRMED, RELEASED and EXPIRED are terminal.
const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is possible.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationConfirmed, ReservationReleased, ReservationExpired:
		return true
	default:
		return false
	}
}

// Reservation errors.
var (
	ErrInvalidReservationTransition = apperrors.Wrap(apperrors.ErrDomainState, "invalid reservation transition")
	ErrInvalidReservationItem       = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid reservation item")
	ErrInvalidReservation           = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid reservation")
	ErrReservationNotFound          = apperrors.Wrap(apperrors.ErrNotFound, "reservation not found")
)

// ReservationItem is one variant held by a reservation.
type ReservationItem struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// NewReservationItem validates and builds an item. The variant must be set and
// the quantity strictly positive.
func NewReservationItem(variantID uuid.UUID, quantity int) (ReservationItem, error) {
	if variantID == uuid.Nil {
		return ReservationItem{}, apperrors.Wrap(ErrInvalidReservationItem, "variant id is required")
	}
	if quantity <= 0 {
		return ReservationItem{}, apperrors.Wrap(ErrInvalidReservationItem,
			fmt.Sprintf("quantity must be positive, got %d", quantity))
	}
	return ReservationItem{VariantID: variantID, Quantity: quantity}, nil
}

// Reservation is a provisional hold against stock for one order. The
// aggregate tracks intent only; stock counters are enforced by InventoryAdjuster.
type Reservation struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Items     []ReservationItem
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	events []outboxDomain.Event
}

// NewPendingReservation creates a PENDING reservation.
func NewPendingReservation(orderID uuid.UUID, items []ReservationItem, expiresAt, now time.Time) (*Reservation, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.Wrap(ErrInvalidReservation, "order id is required")
	}
	if len(items) == 0 {
		return nil, apperrors.Wrap(ErrInvalidReservation, "at least one item is required")
	}
	for _, item := range items {
		if _, err := NewReservationItem(item.VariantID, item.Quantity); err != nil {
			return nil, err
		}
	}

	now = now.UTC()
	return &Reservation{
		ID:        uuid.Must(uuid.NewV7()),
		OrderID:   orderID,
		Items:     append([]ReservationItem(nil), items...),
		Status:    ReservationPending,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkReserved moves PENDING to RESERVED once every item is held.
func (r *Reservation) MarkReserved(now time.Time) error {
	if r.Status != ReservationPending {
		return r.rejectTransition("mark reserved")
	}
	r.transition(ReservationReserved, now)
	return nil
}

// Confirm moves RESERVED to CONFIRMED; stock is then physically decremented.
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != ReservationReserved {
		return r.rejectTransition("confirm")
	}
	r.transition(ReservationConfirmed, now)
	return nil
}

// Release moves PENDING or RESERVED to RELEASED.
func (r *Reservation) Release(now time.Time) error {
	if r.Status != ReservationPending && r.Status != ReservationReserved {
		return r.rejectTransition("release")
	}
	r.transition(ReservationReleased, now)
	return nil
}

// Reject releases a PENDING reservation whose stock could not be held and
// announces it as failed.
func (r *Reservation) Reject(now time.Time, reason string) error {
	if r.Status != ReservationPending {
		return r.rejectTransition("reject")
	}
	r.Status = ReservationReleased
	r.UpdatedAt = now.UTC()
	r.record(RoutingKeyReservationFailed, reason)
	return nil
}

// Expire moves PENDING or RESERVED to EXPIRED when now is at or past ExpiresAt.
func (r *Reservation) Expire(now time.Time) error {
	if r.Status != ReservationPending && r.Status != ReservationReserved {
		return r.rejectTransition("expire")
	}
	if now.Before(r.ExpiresAt) {
		return apperrors.Wrap(ErrInvalidReservationTransition,
			fmt.Sprintf("reservation %s expires at %s", r.ID, r.ExpiresAt.Format(time.RFC3339)))
	}
	r.transition(ReservationExpired, now)
	return nil
}

// IsExpired reports whether the hold is past its expiry at now.
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// PullEvents returns the buffered events and clears the buffer.
func (r *Reservation) PullEvents() []outboxDomain.Event {
	events := r.events
	r.events = nil
	return events
}

func (r *Reservation) transition(to ReservationStatus, now time.Time) {
	r.Status = to
	r.UpdatedAt = now.UTC()
	r.record(RoutingKeyReservationPrefix+strings.ToLower(string(to)), "")
}

func (r *Reservation) record(routingKey, reason string) {
	r.events = append(r.events, outboxDomain.Event{
		Exchange:    ExchangeInventory,
		RoutingKey:  routingKey,
		AggregateID: r.OrderID.String(),
		Payload: ReservationEvent{
			ReservationID: r.ID,
			OrderID:       r.OrderID,
			Status:        r.Status,
			Items:         append([]ReservationItem(nil), r.Items...),
			Reason:        reason,
			OccurredAt:    r.UpdatedAt,
		},
	})
}

func (r *Reservation) rejectTransition(op string) error {
	return apperrors.Wrap(ErrInvalidReservationTransition, fmt.Sprintf("cannot %s a %s reservation", op, r.Status))
}

// ReservationEvent is the payload of inventory.reservation.* events.
type ReservationEvent struct {
	ReservationID uuid.UUID         `json:"reservation_id"`
	OrderID       uuid.UUID         `json:"order_id"`
	Status        ReservationStatus `json:"status"`
	Items         []ReservationItem `json:"items"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// ReserveRequest is the payload of inventory.reserve.request, published at checkout.
type ReserveRequest struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Items     []ReservationItem `json:"items"`
	ExpiresAt time.Time         `json:"expires_at"`
}
