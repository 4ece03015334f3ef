// Package consumer wires inventory reservations to bus messages: reserve
// requests from checkout and order status changes from payments.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/bus"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
	"github.com/allisson/checkout/internal/inventory/usecase"
)

// Order routing keys the reservation consumer reacts to. order.payment_failed
// is not one of them: a failed order can still be paid, so its hold stays
// until the order is cancelled or the reservation expires.
const (
	RoutingKeyOrderPaid      = "order.paid"
	RoutingKeyOrderCancelled = "order.cancelled"
)

// Handler turns bus messages into reservation use case calls.
type Handler struct {
	reservations usecase.ReservationUseCase
}

// NewHandler creates a new Handler
func NewHandler(reservations usecase.ReservationUseCase) *Handler {
	return &Handler{reservations: reservations}
}

// Register adds the handler routes to router.
func (h *Handler) Register(router *bus.Router) {
	router.Handle(domain.RoutingKeyReserveRequest, h.HandleReserveRequest)
	router.Handle(RoutingKeyOrderPaid, h.HandleOrderPaid)
	router.Handle(RoutingKeyOrderCancelled, h.HandleOrderCancelled)
}

// HandleReserveRequest holds stock for a checked out order.
func (h *Handler) HandleReserveRequest(ctx context.Context, msg bus.Message) error {
	var req domain.ReserveRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "malformed reserve request: "+err.Error())
	}
	_, err := h.reservations.Reserve(ctx, req)
	return err
}

// HandleOrderPaid confirms the reservation of a paid order.
func (h *Handler) HandleOrderPaid(ctx context.Context, msg bus.Message) error {
	orderID, err := decodeOrderID(msg)
	if err != nil {
		return err
	}
	_, err = h.reservations.Confirm(ctx, orderID)
	return err
}

// HandleOrderCancelled releases the reservation of a cancelled order.
func (h *Handler) HandleOrderCancelled(ctx context.Context, msg bus.Message) error {
	orderID, err := decodeOrderID(msg)
	if err != nil {
		return err
	}
	_, err = h.reservations.Release(ctx, orderID)
	return err
}

func decodeOrderID(msg bus.Message) (uuid.UUID, error) {
	var payload struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed order event: "+err.Error())
	}
	if payload.OrderID == uuid.Nil {
		return uuid.Nil, apperrors.Wrap(apperrors.ErrInvalidInput, "order event without order_id")
	}
	return payload.OrderID, nil
}
